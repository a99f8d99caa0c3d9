package privacy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

// withRetry reruns op with exponential backoff while the failure looks
// transient. Store errors are retried; typed domain errors are permanent.
func withRetry(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if permanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(maxElapsed))
	return err
}

func permanent(err error) bool {
	if errors.IsStoreError(err) {
		return false
	}
	return true
}
