package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRetryInterval = 50 * time.Millisecond

// RedisLocker holds record locks in Redis so several replicas serialize on
// the same record.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedisLocker builds a locker over an existing go-redis client. ttl must
// outlast the longest critical section, downstream calls included.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(client),
		ttl:    ttl,
		retry:  defaultRetryInterval,
		logger: logger,
	}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	obtainCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}

	held, err := l.client.Obtain(obtainCtx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		// A context ending mid round trip surfaces as a redis error.
		if errors.Is(err, redislock.ErrNotObtained) || obtainCtx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrNotObtained, key)
		}
		return fmt.Errorf("obtain lock %s: %w", key, err)
	}
	defer func() {
		// Release with a fresh context: the caller's may already be done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}()

	return fn(ctx)
}
