// Package cache provides a small in-process TTL cache with a capacity bound.
// It exists so that tenant lookups and dashboard rollups share one injected,
// testable cache instead of ad-hoc package-level maps.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache caches values for a fixed TTL and evicts the entry closest to
// expiry once capacity is reached. The zero value is not usable; construct
// with New.
type TTLCache[V any] struct {
	mu       sync.Mutex
	entries  map[string]entry[V]
	capacity int
	ttl      time.Duration
	now      func() time.Time // injectable for tests
}

// New creates a cache holding at most capacity entries, each valid for ttl.
func New[V any](capacity int, ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		entries:  make(map[string]entry[V], capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached value for key and whether it is present and fresh.
// Expired entries are removed on access.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. When the cache is full and key is new, the
// entry with the earliest expiry is evicted first.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes key, used to invalidate after a write that changes the
// underlying data (e.g. reconcile then stats).
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries currently held, including any expired
// ones not yet touched.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache[V]) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
