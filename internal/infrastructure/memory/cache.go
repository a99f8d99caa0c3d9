// Package memory provides the process-local cache, object pools, and memory
// telemetry used by the control plane. The cache is an LRU with per-entry TTL;
// the manager samples runtime memory and reacts to pressure.
package memory

import (
	"container/list"
	"path"
	"strings"
	"sync"
	"time"
)

// CacheStats tracks cache effectiveness counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Size      int
	Capacity  int
}

// HitRate returns the fraction of lookups served from cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type cacheEntry struct {
	key        string
	value      interface{}
	insertedAt time.Time
	accessedAt time.Time
	expiresAt  time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a thread-safe LRU cache with TTL support. Expired entries are
// treated as absent on read and removed by the periodic sweep. When an
// insertion would exceed capacity, expired entries are evicted first, then
// the least-recently-used entry.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	stats    CacheStats
}

// NewCache creates a cache bounded to capacity entries.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Set stores a value under key. A zero ttl means the entry never expires.
// Eviction runs before insertion so the capacity bound holds at steady state.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.insertedAt = now
		entry.accessedAt = now
		entry.expiresAt = expiry(now, ttl)
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictLocked(now)
	}

	entry := &cacheEntry{
		key:        key,
		value:      value,
		insertedAt: now,
		accessedAt: now,
		expiresAt:  expiry(now, ttl),
	}
	c.items[key] = c.order.PushFront(entry)
}

// Get returns the value for key, refreshing its recency. Expired entries are
// deleted and reported as absent.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	entry := el.Value.(*cacheEntry)
	now := time.Now()
	if entry.expired(now) {
		c.removeLocked(el)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}

	entry.accessedAt = now
	c.order.MoveToFront(el)
	c.stats.Hits++
	return entry.value, true
}

// Delete removes key from the cache. Returns true if the key was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeLocked(el)
	return true
}

// InvalidatePattern removes all keys matching a shell-style pattern,
// e.g. "query:users:*". Returns the number of entries removed.
func (c *Cache) InvalidatePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.items {
		if matchPattern(pattern, key) {
			c.removeLocked(el)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Sweep removes all expired entries and returns the count removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*cacheEntry).expired(now) {
			c.removeLocked(el)
			c.stats.Expired++
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	stats.Capacity = c.capacity
	return stats
}

// evictLocked frees one slot: expired entries first, then the LRU tail.
func (c *Cache) evictLocked(now time.Time) {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		if el.Value.(*cacheEntry).expired(now) {
			c.removeLocked(el)
			c.stats.Expired++
			return
		}
	}
	if back := c.order.Back(); back != nil {
		c.removeLocked(back)
		c.stats.Evictions++
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	delete(c.items, entry.key)
	c.order.Remove(el)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if ok, err := path.Match(pattern, key); err == nil && ok {
		return true
	}
	// path.Match stops "*" at separators; fall back to prefix matching for
	// the common "prefix:*" form.
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
