package lrucache

import "sync"

// EvictionBuffer is the Removed-Items Buffer: a stack-scoped list
// owned by the calling goroutine that an on-delete hook appends to
// instead of invoking a flush callback directly. The caller installs
// the buffer, performs its cache mutation under the cache lock, releases
// the lock, then calls Flush to run the callbacks — after the lock is
// gone, so a callback that re-enters the same cache (e.g. CacheResponse
// during a Quota refresh) cannot deadlock against it.
//
// A tagged payload keeps the intent of each buffered item explicit:
// most evictees should simply be dispatched outbound (Drop), but the
// Quota refresh-in-place path tags its items "this one refreshes".
// Flush hands each item's tag back to its callback alongside the
// payload; the Quota aggregator's flush dispatches both kinds the same
// way.
type EvictionBuffer[T any] struct {
	mu    sync.Mutex
	items []bufferedItem[T]
}

// BufferKind tags why an item was placed in the buffer.
type BufferKind int

const (
	// Drop means the evictee's payload should be dispatched outbound
	// and not touched again.
	Drop BufferKind = iota
	// Refresh means the evictee was re-inserted into the cache under
	// the same key and the payload is a refresh request whose response
	// will later replace the entry via CacheResponse.
	Refresh
)

type bufferedItem[T any] struct {
	kind    BufferKind
	payload T
}

// NewEvictionBuffer returns an empty buffer ready to receive hook output.
func NewEvictionBuffer[T any]() *EvictionBuffer[T] {
	return &EvictionBuffer[T]{}
}

// Append stashes one evictee payload. Called from inside an on-delete
// hook, which means it runs with the cache lock held — Append itself
// must never block or attempt to take that lock.
func (b *EvictionBuffer[T]) Append(kind BufferKind, payload T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, bufferedItem[T]{kind: kind, payload: payload})
}

// Len reports how many items are currently buffered.
func (b *EvictionBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Flush invokes fn once per buffered item, in append order, then
// clears the buffer. The caller must not hold the cache lock when
// calling Flush — fn is free to call back into the aggregator that
// owns this buffer.
func (b *EvictionBuffer[T]) Flush(fn func(kind BufferKind, payload T)) {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()

	for _, it := range items {
		fn(it.kind, it.payload)
	}
}
