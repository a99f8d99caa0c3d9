package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
)

func testConfig() *sharedConfig.RateLimitConfig {
	return &sharedConfig.RateLimitConfig{
		Global: sharedConfig.BucketConfig{Points: 100, Duration: 60, BlockDuration: 0},
		User:   sharedConfig.BucketConfig{Points: 50, Duration: 60, BlockDuration: 0},
		Events: map[string]sharedConfig.BucketConfig{
			"chat_message": {Points: 10, Duration: 60, BlockDuration: 0},
			"cast_vote":    {Points: 5, Duration: 60, BlockDuration: 30},
		},
		RoleMultipliers: map[string]float64{
			"moderator": 2.0,
			"admin":     5.0,
		},
		Whitelist: []string{"trusted-user"},
		Blacklist: []string{"banned-user", "10.0.0.66"},
		FailOpen:  true,
	}
}

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	return NewLimiter(NewMemoryStore(nil), testConfig(), nil)
}

func TestLimiter_EventBucketBurst(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	req := Request{IP: "1.2.3.4", Identity: "user-1", Event: "chat_message"}

	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "event %d should be admitted", i+1)
	}

	d, err := l.Allow(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeEvent, d.Rejected)
	assert.Equal(t, 0, d.RemainingPoints)
	assert.Equal(t, 11, d.TotalHits)
	assert.Greater(t, d.MsBeforeNext, int64(0))

	rlErr := d.AsError()
	require.Error(t, rlErr)
}

func TestLimiter_RejectionConsumesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Global = sharedConfig.BucketConfig{Points: 5, Duration: 60}
	cfg.User = sharedConfig.BucketConfig{Points: 3, Duration: 60}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	req := Request{IP: "1.2.3.4", Identity: "user-2", Event: "plain"}

	// The user bucket runs out after 3 admissions, consuming 3 of 5 global points.
	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// Repeated rejections at the user scope must not touch the global bucket.
	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		require.False(t, d.Allowed)
		require.Equal(t, ScopeUser, d.Rejected)
	}

	// A fresh user on the same IP still has the remaining 2 global points.
	fresh := Request{IP: "1.2.3.4", Identity: "user-3", Event: "plain"}
	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, fresh)
		require.NoError(t, err)
		require.True(t, d.Allowed, "global bucket was drained by rejections")
	}

	d, err := l.Allow(ctx, fresh)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeGlobal, d.Rejected)
}

func TestLimiter_BlockPersistsUntilExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.Events["cast_vote"] = sharedConfig.BucketConfig{Points: 1, Duration: 1, BlockDuration: 60}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	req := Request{IP: "1.2.3.4", Identity: "user-4", Event: "cast_vote"}

	d, err := l.Allow(ctx, req)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Allow(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// New requests during the block stay rejected even after the window rolls.
	time.Sleep(1100 * time.Millisecond)
	d, err = l.Allow(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "principal must stay blocked for the block duration")
	assert.Greater(t, d.MsBeforeNext, int64(0))
}

func TestLimiter_StandingBlockReportsCounters(t *testing.T) {
	cfg := testConfig()
	cfg.Events["cast_vote"] = sharedConfig.BucketConfig{Points: 2, Duration: 60, BlockDuration: 30}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	req := Request{IP: "1.2.3.4", Identity: "user-5", Event: "cast_vote"}

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// Exhaustion starts the block.
	d, err := l.Allow(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// A standing-block rejection still reports the bucket counters.
	d, err = l.Allow(ctx, req)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, ScopeEvent, d.Rejected)
	assert.Equal(t, 2, d.TotalHits)
	assert.Equal(t, 0, d.RemainingPoints)
	assert.Greater(t, d.MsBeforeNext, int64(0))
}

func TestLimiter_RoleMultiplier(t *testing.T) {
	cfg := testConfig()
	cfg.User = sharedConfig.BucketConfig{Points: 2, Duration: 60}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	// moderator multiplier 2.0 doubles the user quota to 4.
	req := Request{IP: "9.9.9.9", Identity: "mod-1", Roles: []string{"moderator"}, Event: "plain"}
	for i := 0; i < 4; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "event %d within multiplied quota", i+1)
	}

	d, err := l.Allow(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ScopeUser, d.Rejected)
}

func TestLimiter_HighestRoleWins(t *testing.T) {
	cfg := testConfig()
	cfg.User = sharedConfig.BucketConfig{Points: 2, Duration: 60}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	req := Request{IP: "9.9.9.8", Identity: "admin-1", Roles: []string{"moderator", "admin"}, Event: "plain"}
	for i := 0; i < 10; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "admin multiplier 5.0 allows 10 events")
	}

	d, err := l.Allow(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_WhitelistBypassesQuotas(t *testing.T) {
	cfg := testConfig()
	cfg.User = sharedConfig.BucketConfig{Points: 1, Duration: 60}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	req := Request{IP: "1.1.1.1", Identity: "trusted-user", Event: "chat_message"}
	for i := 0; i < 100; i++ {
		d, err := l.Allow(ctx, req)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
}

func TestLimiter_BlacklistRejectsUnconditionally(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	d, err := l.Allow(ctx, Request{IP: "1.1.1.1", Identity: "banned-user", Event: "chat_message"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.Forbidden)

	d, err = l.Allow(ctx, Request{IP: "10.0.0.66", Identity: "someone", Event: "chat_message"})
	require.NoError(t, err)
	assert.True(t, d.Forbidden)
}

func TestLimiter_SystemEventsNeverLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Global = sharedConfig.BucketConfig{Points: 1, Duration: 60}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		d, err := l.Allow(ctx, Request{IP: "2.2.2.2", Event: "heartbeat"})
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = l.Allow(ctx, Request{IP: "2.2.2.2", Event: "system:notice"})
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
}

func TestLimiter_ExecEvenlySmoothsBursts(t *testing.T) {
	cfg := testConfig()
	cfg.User = sharedConfig.BucketConfig{Points: 60, Duration: 60, ExecEvenly: true}
	l := NewLimiter(NewMemoryStore(nil), cfg, nil)
	ctx := context.Background()

	req := Request{IP: "3.3.3.3", Identity: "user-5", Event: "plain"}

	// Smoothed to one event per second: the second immediate event is rejected.
	d, err := l.Allow(ctx, req)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Allow(ctx, req)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}
