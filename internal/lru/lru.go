// Package lru provides a capacity-bounded, insertion-ordered map with an
// optional eviction callback. It is the foundation every cache and store in
// this module composes: client/server correlation stores, the session
// store, and the inbound-dedup caches all wrap a Map.
package lru

import (
	hashlru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// EvictFunc is invoked with the (key, value) pair that was removed to make
// room for a new entry. Its failure must never propagate into the caller of
// Set; implementations should recover and log instead.
type EvictFunc[V any] func(key string, value V)

// Map is a bounded, MRU-ordered map keyed by string. All methods are safe
// for the caller to serialize externally; Map itself does no locking, so
// cache operations never suspend and stay confined to their owning store's
// critical section.
type Map[V any] struct {
	inner   *hashlru.LRU[string, V]
	onEvict EvictFunc[V]
}

// New creates a Map with the given positive capacity and optional eviction
// callback. A nil onEvict is allowed; evictions are then silent.
func New[V any](capacity int, onEvict EvictFunc[V]) *Map[V] {
	if capacity <= 0 {
		capacity = 1
	}
	m := &Map[V]{onEvict: onEvict}
	inner, err := hashlru.NewLRU[string, V](capacity, m.handleEvict)
	if err != nil {
		// simplelru.NewLRU only errors on non-positive size, which we just
		// guarded against above.
		panic("lru: unreachable construction error: " + err.Error())
	}
	m.inner = inner
	return m
}

func (m *Map[V]) handleEvict(key string, value V) {
	if m.onEvict == nil {
		return
	}
	defer func() {
		// an eviction callback must never propagate a panic into Set.
		_ = recover()
	}()
	m.onEvict(key, value)
}

// Get returns the value for key and promotes it to most-recently-used.
func (m *Map[V]) Get(key string) (V, bool) {
	return m.inner.Get(key)
}

// Has reports membership without reordering.
func (m *Map[V]) Has(key string) bool {
	return m.inner.Contains(key)
}

// Set inserts or updates key. If the map is at capacity and key is new, the
// least-recently-used entry is evicted first and onEvict is invoked with it.
func (m *Map[V]) Set(key string, value V) {
	m.inner.Add(key, value)
}

// Delete removes key if present and reports whether it was found. onEvict is
// reserved for capacity eviction (see EvictFunc); simplelru.LRU.Remove also
// calls back into it, so that's silenced here the same way Clear does.
func (m *Map[V]) Delete(key string) bool {
	saved := m.onEvict
	m.onEvict = nil
	ok := m.inner.Remove(key)
	m.onEvict = saved
	return ok
}

// Clear removes every entry without invoking onEvict. simplelru.LRU.Purge
// itself calls back into onEvict for every remaining entry, so this
// silences the callback for the duration of the purge rather than relying
// on the underlying library's behavior.
func (m *Map[V]) Clear() {
	saved := m.onEvict
	m.onEvict = nil
	m.inner.Purge()
	m.onEvict = saved
}

// Size returns the current number of entries.
func (m *Map[V]) Size() int {
	return m.inner.Len()
}

// Entries returns (key, value) pairs ordered most-recently-used first.
func (m *Map[V]) Entries() []Entry[V] {
	keys := m.inner.Keys()
	out := make([]Entry[V], 0, len(keys))
	// simplelru.Keys returns oldest-to-newest; reverse for MRU-first.
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		if v, ok := m.inner.Peek(k); ok {
			out = append(out, Entry[V]{Key: k, Value: v})
		}
	}
	return out
}

// Entry is a single (key, value) pair returned by Entries.
type Entry[V any] struct {
	Key   string
	Value V
}

// Peek returns the value for key without promoting it.
func (m *Map[V]) Peek(key string) (V, bool) {
	return m.inner.Peek(key)
}
