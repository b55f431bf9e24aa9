package lrucache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvictionBuffer_FlushRunsInAppendOrderThenClears(t *testing.T) {
	b := NewEvictionBuffer[string]()
	b.Append(Drop, "one")
	b.Append(Refresh, "two")
	require.Equal(t, 2, b.Len())

	var got []string
	var kinds []BufferKind
	b.Flush(func(kind BufferKind, payload string) {
		kinds = append(kinds, kind)
		got = append(got, payload)
	})

	require.Equal(t, []string{"one", "two"}, got)
	require.Equal(t, []BufferKind{Drop, Refresh}, kinds)
	require.Equal(t, 0, b.Len())
}

func TestEvictionBuffer_FlushOnEmptyBufferCallsNothing(t *testing.T) {
	b := NewEvictionBuffer[int]()
	called := false
	b.Flush(func(BufferKind, int) { called = true })
	require.False(t, called)
}

// Reentrancy: a Flush callback that appends to a *different* buffer and
// calls back into a cache must not deadlock — this models the
// aggregator pattern of installing a fresh buffer per cache mutation
// and flushing only after the cache lock is released.
func TestEvictionBuffer_FlushCallbackCanReenterCache(t *testing.T) {
	c := New[int](10)
	c.Insert(sigFor("a"), 1, nil)

	b := NewEvictionBuffer[int]()
	b.Append(Drop, 1)

	b.Flush(func(_ BufferKind, payload int) {
		c.Insert(sigFor("b"), payload+1, nil)
	})

	v, ok := c.Lookup(sigFor("b"))
	require.True(t, ok)
	require.Equal(t, 2, v)
}
