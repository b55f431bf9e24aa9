// Package lrucache implements the bounded associative store shared by
// the three aggregator caches: capacity eviction via LRU, an
// additional wall-clock-age eviction axis, and a per-entry on-delete
// hook that always fires with the cache's lock held.
package lrucache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/cloudendpoints/service-control-client-go/pkg/signature"
)

// EvictReason distinguishes why an entry's on-delete hook fired.
type EvictReason int

const (
	EvictCapacity EvictReason = iota
	EvictAge
	EvictExplicit
	EvictAll
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictAge:
		return "age"
	case EvictAll:
		return "all"
	default:
		return "explicit"
	}
}

// OnEvict is called once per evicted entry, with the cache's lock
// held. Implementations must not re-enter the cache that owns them;
// the Removed-Items Buffer (EvictionBuffer) exists precisely so hooks
// can stash work instead of acting on it directly. A nil hook is a
// valid no-op.
type OnEvict[V any] func(key signature.Signature, value V, reason EvictReason)

// Cache is a generic LRU-with-age cache keyed by signature.Signature.
// One mutex guards both the LRU index and age bookkeeping; no
// operation suspends while holding it. Every mutating method takes
// the on-delete hook to invoke for that call, rather than fixing one
// at construction, so a caller can install a fresh per-call
// EvictionBuffer-backed hook for each mutation (see pkg/lrucache's
// package doc and spec §4.5's Removed-Items Buffer discipline).
type Cache[V any] struct {
	mu      sync.Mutex
	inner   *lru.Cache
	touched map[signature.Signature]time.Time
	maxIdle time.Duration

	activeHook   OnEvict[V]
	activeReason EvictReason
}

// New builds a Cache with the given capacity. A capacity ≤ 0 means
// unbounded: no capacity eviction ever fires, only age and explicit
// removal (callers of the three spec-level aggregators instead treat
// capacity ≤ 0 as "caching disabled" one layer up).
func New[V any](capacity int) *Cache[V] {
	c := &Cache[V]{
		touched: make(map[signature.Signature]time.Time),
	}
	if capacity < 0 {
		capacity = 0
	}
	c.inner = &lru.Cache{MaxEntries: capacity}
	c.inner.OnEvicted = func(key lru.Key, value interface{}) {
		sig := key.(signature.Signature)
		delete(c.touched, sig)
		if c.activeHook != nil {
			c.activeHook(sig, value.(V), c.activeReason)
		}
	}
	return c
}

// SetAgeBasedEviction sets the maximum idle duration an entry may
// reach before RemoveExpiredEntries evicts it. Zero disables age
// eviction entirely.
func (c *Cache[V]) SetAgeBasedEviction(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxIdle = d
}

// Lookup returns the entry for key and marks it most-recently-used.
// The second return value is false on a miss.
func (c *Cache[V]) Lookup(key signature.Signature) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.inner.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Insert adds or replaces the entry for key. If key already holds an
// entry, the prior entry is evicted (hook fires with EvictExplicit)
// before the new one is inserted. If the cache is then over capacity,
// the least-recently-used entries are evicted (hook fires with
// EvictCapacity) until it is not.
func (c *Cache[V]) Insert(key signature.Signature, value V, hook OnEvict[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeHook = hook
	if _, exists := c.inner.Get(key); exists {
		c.activeReason = EvictExplicit
		c.inner.Remove(key)
	}
	c.activeReason = EvictCapacity
	c.inner.Add(key, value)
	c.touched[key] = time.Now()
	c.activeHook = nil
}

// Remove evicts the entry for key, if present; its hook fires with
// EvictExplicit.
func (c *Cache[V]) Remove(key signature.Signature, hook OnEvict[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeHook = hook
	c.activeReason = EvictExplicit
	c.inner.Remove(key)
	c.activeHook = nil
}

// RemoveExpiredEntries evicts every entry whose age (time since last
// Insert or Reinsert) exceeds the configured max idle duration. Called
// by the facade's periodic flush. The hook may call Reinsert on this
// same Cache to implement refresh-in-place (Quota's eviction
// strategy); that call is safe specifically because it happens
// synchronously inside this locked section, on this goroutine.
func (c *Cache[V]) RemoveExpiredEntries(hook OnEvict[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxIdle <= 0 {
		return
	}

	now := time.Now()
	var expired []signature.Signature
	for key, t := range c.touched {
		if now.Sub(t) >= c.maxIdle {
			expired = append(expired, key)
		}
	}

	c.activeHook = hook
	c.activeReason = EvictAge
	for _, key := range expired {
		c.inner.Remove(key)
	}
	c.activeHook = nil
}

// RemoveAll evicts every entry; used at shutdown. Unlike Remove, this
// is a real destruction rather than an internal replace, so the hook
// fires with EvictAll rather than EvictExplicit — callers that treat
// EvictExplicit as "don't dispatch, the caller already carried pending
// state forward" must still dispatch on EvictAll.
func (c *Cache[V]) RemoveAll(hook OnEvict[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeHook = hook
	c.activeReason = EvictAll
	for c.inner.Len() > 0 {
		c.inner.RemoveOldest()
	}
	c.activeHook = nil
}

// Len returns the current entry count.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}

// Reinsert re-adds value under key from inside an on-delete hook
// invoked by this same Cache (the Quota refresh-in-place path). It
// must only be called while the calling goroutine is already inside
// that hook — i.e. while c.mu is held by this same goroutine's
// in-progress RemoveExpiredEntries or Remove call — which is exactly
// the reentrant case a second Lock() would deadlock on, so Reinsert
// does not take c.mu itself.
func (c *Cache[V]) Reinsert(key signature.Signature, value V) {
	c.activeReason = EvictCapacity
	c.inner.Add(key, value)
	c.touched[key] = time.Now()
}
