package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(ctx)
		client.Close()
	})

	return client
}

func TestRedisStore_ConsumeWithinLimit(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	checks := []BucketCheck{
		{Key: "ws_global_rl:test", Limit: 3, Window: time.Minute},
	}

	for i := 0; i < 3; i++ {
		allowed, _, states, err := store.Consume(ctx, checks)
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d should be allowed", i+1)
		require.Len(t, states, 1)
		assert.Equal(t, int64(i+1), states[0].Hits)
	}

	allowed, failedIdx, states, err := store.Consume(ctx, checks)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, failedIdx)
	require.Len(t, states, 1)
	assert.Equal(t, int64(3), states[0].Hits)
	assert.Greater(t, states[0].TTL, time.Duration(0))
}

func TestRedisStore_RejectionLeavesOtherBucketsUntouched(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	checks := []BucketCheck{
		{Key: "ws_global_rl:multi", Limit: 100, Window: time.Minute},
		{Key: "ws_event_vote_rl:multi", Limit: 1, Window: time.Minute},
	}

	allowed, _, _, err := store.Consume(ctx, checks)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, failedIdx, _, err := store.Consume(ctx, checks)
	require.NoError(t, err)
	require.False(t, allowed)
	assert.Equal(t, 1, failedIdx)

	// The global counter must still be 1: the rejected attempt consumed nothing.
	count, err := client.Get(ctx, "ws_global_rl:multi").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisStore_BlockLifecycle(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	ttl, err := store.BlockTTL(ctx, "ws_user_rl:u1")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)

	require.NoError(t, store.SetBlock(ctx, "ws_user_rl:u1", 10*time.Second))

	ttl, err = store.BlockTTL(ctx, "ws_user_rl:u1")
	require.NoError(t, err)
	assert.Greater(t, ttl, 5*time.Second)

	// A second SetBlock must not extend the original penalty.
	require.NoError(t, store.SetBlock(ctx, "ws_user_rl:u1", time.Hour))
	ttl, err = store.BlockTTL(ctx, "ws_user_rl:u1")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 10*time.Second)

	require.NoError(t, store.Reset(ctx, "ws_user_rl:u1"))
	ttl, err = store.BlockTTL(ctx, "ws_user_rl:u1")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}
