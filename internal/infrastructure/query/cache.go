package query

import (
	"time"

	"github.com/natebag/Testsite-sub005/internal/infrastructure/memory"
)

// ResultCache is the narrow cache surface the optimizer needs. The memory
// manager's cache satisfies it through the adapter below; an external cache
// can be substituted.
type ResultCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	InvalidatePattern(pattern string) int
	Clear()
}

// memoryCacheAdapter adapts *memory.Cache to ResultCache.
type memoryCacheAdapter struct {
	cache *memory.Cache
}

// NewMemoryResultCache wraps the memory manager's cache for query results.
func NewMemoryResultCache(cache *memory.Cache) ResultCache {
	return &memoryCacheAdapter{cache: cache}
}

func (a *memoryCacheAdapter) Get(key string) (interface{}, bool) {
	return a.cache.Get(key)
}

func (a *memoryCacheAdapter) Set(key string, value interface{}, ttl time.Duration) {
	a.cache.Set(key, value, ttl)
}

func (a *memoryCacheAdapter) InvalidatePattern(pattern string) int {
	return a.cache.InvalidatePattern(pattern)
}

func (a *memoryCacheAdapter) Clear() {
	a.cache.Clear()
}
