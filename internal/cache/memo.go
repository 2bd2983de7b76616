// Package cache provides the in-memory memoization caches used by the
// fetchers. Caches are constructed objects owned by the composition root, not
// package-level state.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"immo-explorer/internal/observability"
)

type store[V any] interface {
	Get(key string) (V, bool)
	Add(key string, value V) bool
	Len() int
}

// Memo is a small LRU memoization cache. Entries leave only by capacity
// eviction, or by TTL when one is configured.
type Memo[V any] struct {
	name  string
	store store[V]
}

// NewMemo builds a cache holding at most size entries. A ttl of zero means
// entries never expire.
func NewMemo[V any](name string, size int, ttl time.Duration) *Memo[V] {
	if size <= 0 {
		size = 32
	}
	var s store[V]
	if ttl > 0 {
		s = expirable.NewLRU[string, V](size, nil, ttl)
	} else {
		c, _ := lru.New[string, V](size)
		s = c
	}
	return &Memo[V]{name: name, store: s}
}

func (m *Memo[V]) Get(key string) (V, bool) {
	v, ok := m.store.Get(key)
	if ok {
		observability.IncCacheHit(m.name)
	} else {
		observability.IncCacheMiss(m.name)
	}
	return v, ok
}

func (m *Memo[V]) Add(key string, v V) {
	m.store.Add(key, v)
}

func (m *Memo[V]) Len() int {
	return m.store.Len()
}
