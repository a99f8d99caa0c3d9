package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// consumeScript checks every bucket before consuming any, so a rejection
// never increments a counter and admission is atomic across buckets.
var consumeScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
  local limit = tonumber(ARGV[2*i-1])
  local cnt = tonumber(redis.call('GET', key) or '0')
  if cnt >= limit then
    local ttl = redis.call('PTTL', key)
    return {0, i, cnt, ttl}
  end
end
local results = {}
for i, key in ipairs(KEYS) do
  local windowMs = tonumber(ARGV[2*i])
  local cnt = redis.call('INCR', key)
  if cnt == 1 then
    redis.call('PEXPIRE', key, windowMs)
  end
  results[i] = cnt
end
return {1, 0, unpack(results)}
`)

// RedisStore implements Store on a shared Redis instance so quotas hold
// across application instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed bucket store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Consume(ctx context.Context, checks []BucketCheck) (bool, int, []BucketState, error) {
	if len(checks) == 0 {
		return true, -1, nil, nil
	}

	keys := make([]string, len(checks))
	argv := make([]interface{}, 0, len(checks)*2)
	for i, c := range checks {
		keys[i] = c.Key
		argv = append(argv, c.Limit, c.Window.Milliseconds())
	}

	raw, err := consumeScript.Run(ctx, s.client, keys, argv...).Slice()
	if err != nil {
		return false, -1, nil, apperrors.NewStoreError("redis", "consume", err)
	}
	if len(raw) < 2 {
		return false, -1, nil, apperrors.NewStoreError("redis", "consume", fmt.Errorf("unexpected script reply: %v", raw))
	}

	allowed := toInt64(raw[0]) == 1
	if !allowed {
		idx := int(toInt64(raw[1])) - 1
		hits := toInt64(raw[2])
		ttlMs := toInt64(raw[3])
		state := BucketState{Hits: hits}
		if ttlMs > 0 {
			state.TTL = time.Duration(ttlMs) * time.Millisecond
		}
		return false, idx, []BucketState{state}, nil
	}

	states := make([]BucketState, len(checks))
	for i := range checks {
		if 2+i < len(raw) {
			states[i] = BucketState{Hits: toInt64(raw[2+i]), TTL: checks[i].Window}
		}
	}
	return true, -1, states, nil
}

func (s *RedisStore) Peek(ctx context.Context, key string) (BucketState, bool, error) {
	cnt, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return BucketState{}, false, nil
	}
	if err != nil {
		return BucketState{}, false, apperrors.NewStoreError("redis", "peek", err)
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return BucketState{}, false, apperrors.NewStoreError("redis", "peek", err)
	}
	state := BucketState{Hits: cnt}
	if ttl > 0 {
		state.TTL = ttl
	}
	return state, true, nil
}

func (s *RedisStore) SetBlock(ctx context.Context, key string, d time.Duration) error {
	// NX keeps an existing block's expiry; a blocked principal stays blocked
	// for the original duration regardless of new requests.
	ok, err := s.client.SetNX(ctx, blockKey(key), 1, d).Result()
	if err != nil {
		return apperrors.NewStoreError("redis", "set_block", err)
	}
	_ = ok
	return nil
}

func (s *RedisStore) BlockTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, blockKey(key)).Result()
	if err != nil {
		return 0, apperrors.NewStoreError("redis", "block_ttl", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key, blockKey(key)).Err(); err != nil {
		return apperrors.NewStoreError("redis", "reset", err)
	}
	return nil
}

func blockKey(key string) string {
	return key + ":blocked"
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		var out int64
		fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}
