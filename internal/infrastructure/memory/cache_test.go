package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(10)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(3)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	// Touch "a" so "b" becomes the LRU entry.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4, 0)

	_, ok = c.Get("b")
	assert.False(t, ok, "least-recently-used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("d")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestCache_ExpiredEvictedBeforeLRU(t *testing.T) {
	c := NewCache(2)

	c.Set("stale", 1, time.Millisecond)
	c.Set("fresh", 2, time.Minute)
	time.Sleep(5 * time.Millisecond)

	c.Set("new", 3, time.Minute)

	_, ok := c.Get("stale")
	assert.False(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok, "unexpired entry should survive when an expired one can be evicted")
}

func TestCache_ExpiredTreatedAsAbsent(t *testing.T) {
	c := NewCache(10)

	c.Set("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be deleted on read")
}

func TestCache_CapacityHolds(t *testing.T) {
	c := NewCache(5)

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, 0)
	}
	assert.LessOrEqual(t, c.Len(), 5)
}

func TestCache_InvalidatePattern(t *testing.T) {
	c := NewCache(10)

	c.Set("query:users:1", 1, 0)
	c.Set("query:users:2", 2, 0)
	c.Set("query:clans:1", 3, 0)

	removed := c.InvalidatePattern("query:users:*")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("query:clans:1")
	assert.True(t, ok)

	removed = c.InvalidatePattern("*")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Sweep(t *testing.T) {
	c := NewCache(10)

	c.Set("a", 1, time.Millisecond)
	c.Set("b", 2, time.Millisecond)
	c.Set("c", 3, time.Minute)
	time.Sleep(5 * time.Millisecond)

	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Stats(t *testing.T) {
	c := NewCache(10)

	c.Set("a", 1, 0)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.66, stats.HitRate(), 0.01)
}
