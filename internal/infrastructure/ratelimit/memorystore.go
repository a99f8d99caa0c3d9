package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/natebag/Testsite-sub005/internal/infrastructure/memory"
)

type bucketCounter struct {
	hits      int64
	windowEnd time.Time
}

// MemoryStore implements Store on the in-process memory cache. It is used in
// tests and in single-instance deployments where a shared Redis is not
// available. A store-level mutex makes multi-bucket admission atomic.
type MemoryStore struct {
	mu    sync.Mutex
	cache *memory.Cache
}

// NewMemoryStore creates a store backed by the given cache. Pass nil to use a
// private cache.
func NewMemoryStore(cache *memory.Cache) *MemoryStore {
	if cache == nil {
		cache = memory.NewCache(4096)
	}
	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Consume(ctx context.Context, checks []BucketCheck) (bool, int, []BucketState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	counters := make([]*bucketCounter, len(checks))

	for i, c := range checks {
		counter := s.counter(c.Key, c.Window, now)
		if counter.hits >= int64(c.Limit) {
			state := BucketState{Hits: counter.hits, TTL: counter.windowEnd.Sub(now)}
			return false, i, []BucketState{state}, nil
		}
		counters[i] = counter
	}

	states := make([]BucketState, len(checks))
	for i, counter := range counters {
		counter.hits++
		s.cache.Set(checks[i].Key, counter, counters[i].windowEnd.Sub(now))
		states[i] = BucketState{Hits: counter.hits, TTL: counter.windowEnd.Sub(now)}
	}
	return true, -1, states, nil
}

func (s *MemoryStore) Peek(ctx context.Context, key string) (BucketState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key)
	if !ok {
		return BucketState{}, false, nil
	}
	counter := v.(*bucketCounter)
	now := time.Now()
	if !now.Before(counter.windowEnd) {
		return BucketState{}, false, nil
	}
	return BucketState{Hits: counter.hits, TTL: counter.windowEnd.Sub(now)}, true, nil
}

func (s *MemoryStore) SetBlock(ctx context.Context, key string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, blocked := s.cache.Get(blockKey(key)); blocked {
		return nil
	}
	s.cache.Set(blockKey(key), time.Now().Add(d), d)
	return nil
}

func (s *MemoryStore) BlockTTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(blockKey(key))
	if !ok {
		return 0, nil
	}
	until := v.(time.Time)
	ttl := time.Until(until)
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(key)
	s.cache.Delete(blockKey(key))
	return nil
}

func (s *MemoryStore) counter(key string, window time.Duration, now time.Time) *bucketCounter {
	if v, ok := s.cache.Get(key); ok {
		counter := v.(*bucketCounter)
		if now.Before(counter.windowEnd) {
			return counter
		}
	}
	return &bucketCounter{windowEnd: now.Add(window)}
}
