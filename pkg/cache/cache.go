// Package cache provides the process-wide response cache used by the
// gateway client. Entries are keyed by endpoint plus canonicalized params
// and expire after a TTL; mutating calls evict related entries by pattern.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry is a cached value with its expiry.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Cache is a TTL cache with pattern invalidation. Safe for concurrent
// use; reads within the TTL are served without touching the network.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key if it has not expired. An expired
// entry is treated as a miss and evicted lazily.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.Value, true
}

// Set stores value under key with the given TTL. A non-positive TTL is a
// no-op: such an entry would already be expired.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Invalidate evicts every entry whose key contains any of the given
// patterns and returns how many were removed. Patterns are plain
// substrings; an endpoint prefix like "/api/materials" evicts all cached
// variants of that endpoint.
func (c *Cache) Invalidate(patterns ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		for _, pattern := range patterns {
			if pattern != "" && strings.Contains(key, pattern) {
				delete(c.entries, key)
				removed++
				break
			}
		}
	}
	return removed
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SetClock replaces the time source. Test hook.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
