// Package cache provides a small in-memory TTL store keyed by query
// fingerprint. Entries are evicted lazily on lookup; concurrent misses
// for the same key collapse into one upstream call.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Store caches values for TTL. The zero MaxItems means unbounded.
type Store[V any] struct {
	ttl      time.Duration
	maxItems int

	mu    sync.RWMutex
	items map[string]entry[V]
	sf    singleflight.Group
}

func New[V any](ttl time.Duration, maxItems int) *Store[V] {
	return &Store[V]{
		ttl:      ttl,
		maxItems: maxItems,
		items:    make(map[string]entry[V]),
	}
}

// Get returns the cached value for key when it is still within TTL.
// Expired entries are removed on lookup and never served.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	if s == nil || s.ttl <= 0 {
		return zero, false
	}
	now := time.Now()

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if now.Sub(e.insertedAt) >= s.ttl {
		s.mu.Lock()
		// Re-check: a concurrent refresh may have replaced the entry.
		if e2, ok2 := s.items[key]; ok2 && now.Sub(e2.insertedAt) >= s.ttl {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Do returns the cached value for key or, on a miss, runs fn once even
// under concurrent callers and stores its result. Errors are shared
// with all waiters and never cached.
func (s *Store[V]) Do(key string, fn func() (V, error)) (V, error) {
	if s == nil || s.ttl <= 0 {
		return fn()
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		if cached, ok := s.Get(key); ok {
			return cached, nil
		}
		fresh, err := fn()
		if err != nil {
			return nil, err
		}
		s.set(key, fresh)
		return fresh, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (s *Store[V]) set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[V]{value: value, insertedAt: time.Now()}

	// best-effort cap: drop expired entries first, then arbitrary keys
	if s.maxItems > 0 && len(s.items) > s.maxItems {
		now := time.Now()
		for k, e := range s.items {
			if now.Sub(e.insertedAt) >= s.ttl {
				delete(s.items, k)
			}
			if len(s.items) <= s.maxItems {
				return
			}
		}
		for k := range s.items {
			if len(s.items) <= s.maxItems {
				return
			}
			if k == key {
				continue
			}
			delete(s.items, k)
		}
	}
}

// Len reports the current number of entries, expired or not.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
