package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/natebag/Testsite-sub005/internal/shared/errors"
)

const lockKeyPrefix = "migration_lock:"

// Lock serializes batches across processes. One lock per target version;
// a held lock means a batch is in progress somewhere.
type Lock interface {
	Acquire(ctx context.Context, targetVersion, owner string, ttl time.Duration) error
	Release(ctx context.Context, targetVersion, owner string) error
}

// RedisLock implements Lock with SET NX and an owner-checked release.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, targetVersion, owner string, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+targetVersion, owner, ttl).Result()
	if err != nil {
		return errors.NewStoreError("redis", "acquire migration lock", err)
	}
	if !ok {
		return errors.NewMigrationError("lock", targetVersion,
			fmt.Errorf("another batch already holds the lock"))
	}
	return nil
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLock) Release(ctx context.Context, targetVersion, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKeyPrefix + targetVersion}, owner).Err(); err != nil && err != redis.Nil {
		return errors.NewStoreError("redis", "release migration lock", err)
	}
	return nil
}

// localLock is a single-process fallback for tests and dev environments
// without Redis.
type localLock struct {
	held chan struct{}
}

// NewLocalLock returns an in-process Lock.
func NewLocalLock() Lock {
	l := &localLock{held: make(chan struct{}, 1)}
	return l
}

func (l *localLock) Acquire(_ context.Context, targetVersion, _ string, _ time.Duration) error {
	select {
	case l.held <- struct{}{}:
		return nil
	default:
		return errors.NewMigrationError("lock", targetVersion,
			fmt.Errorf("another batch already holds the lock"))
	}
}

func (l *localLock) Release(_ context.Context, _, _ string) error {
	select {
	case <-l.held:
	default:
	}
	return nil
}
