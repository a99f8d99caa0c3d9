package ratelimit

import (
	"context"
	"time"
)

// BucketCheck describes one bucket consulted during admission.
type BucketCheck struct {
	Key    string
	Limit  int
	Window time.Duration
}

// BucketState is the observed state of a consulted bucket.
type BucketState struct {
	Hits int64
	TTL  time.Duration
}

// Store is the shared counter store behind the limiter. Consume must be
// atomic across all checks: either every bucket is incremented or none is.
type Store interface {
	// Consume checks every bucket against its limit. When all have headroom
	// it increments them all and returns allowed=true. When any bucket is
	// depleted it increments nothing and returns the index of the failing
	// check together with its observed state.
	Consume(ctx context.Context, checks []BucketCheck) (allowed bool, failedIdx int, states []BucketState, err error)

	// Peek reads the current state of one bucket without consuming. The bool
	// reports whether the bucket has live state.
	Peek(ctx context.Context, key string) (BucketState, bool, error)

	// SetBlock marks key as blocked for the given duration. An existing block
	// is never shortened.
	SetBlock(ctx context.Context, key string, d time.Duration) error

	// BlockTTL returns the remaining block duration for key, or zero when the
	// key is not blocked.
	BlockTTL(ctx context.Context, key string) (time.Duration, error)

	// Reset clears the bucket and block state for key.
	Reset(ctx context.Context, key string) error
}
