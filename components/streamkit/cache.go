package streamkit

import (
	"sync"
	"time"
)

// TTLCache is an in-memory cache whose entries expire after a fixed TTL.
// A zero TTL disables caching. Expired entries are dropped on read and by Sweep.
type TTLCache[V any] struct {
	ttl     time.Duration
	limit   int
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cachedEntry[V]
}

type cachedEntry[V any] struct {
	value   V
	expires time.Time
}

// NewTTLCache builds a cache with the provided TTL.
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedEntry[V]),
	}
}

// NewBoundedTTLCache builds a cache holding at most limit entries. When full,
// expired entries are swept first and then the entry closest to expiry is evicted.
func NewBoundedTTLCache[V any](ttl time.Duration, limit int) *TTLCache[V] {
	c := NewTTLCache[V](ttl)
	c.limit = limit
	return c
}

// GetOrLoad returns a fresh cached entry or loads and stores a new one.
// Failed loads are not cached.
func (c *TTLCache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, value)
	return value, nil
}

// Get returns the entry if present and fresh.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if now := c.now(); now.After(entry.expires) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && now.After(current.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key.
func (c *TTLCache[V]) Set(key string, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && c.limit > 0 && len(c.entries) >= c.limit {
		c.sweepLocked(now)
		if len(c.entries) >= c.limit {
			c.evictOldestLocked()
		}
	}
	c.entries[key] = cachedEntry[V]{
		value:   value,
		expires: now.Add(c.ttl),
	}
}

// Sweep drops expired entries and reports how many were removed.
func (c *TTLCache[V]) Sweep() int {
	if c == nil {
		return 0
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TTLCache[V]) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *TTLCache[V]) evictOldestLocked() {
	var (
		oldest  string
		expires time.Time
		found   bool
	)
	for key, entry := range c.entries {
		if !found || entry.expires.Before(expires) {
			oldest, expires, found = key, entry.expires, true
		}
	}
	if found {
		delete(c.entries, oldest)
	}
}

// Invalidate drops every entry.
func (c *TTLCache[V]) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedEntry[V])
	c.mu.Unlock()
}
