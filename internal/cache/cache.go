// Package cache is a small TTL cache. The tracking endpoint uses it to
// suppress repeat pixel fetches inside a burst window.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	data      interface{}
	expiresAt time.Time
}

// Cache is an in-memory key value store with per-entry expiry.
type Cache struct {
	mu    sync.Mutex
	items map[string]entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{items: make(map[string]entry)}
}

// Get returns the value for key if present and not expired. Expired
// entries are dropped on access.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return item.data, true
}

// Set stores value under key for ttl.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{data: value, expiresAt: time.Now().Add(ttl)}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}
