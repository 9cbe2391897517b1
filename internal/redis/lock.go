package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/doctor-availability-scheduling/internal/lock"
)

const lockRetryInterval = 25 * time.Millisecond

type redisLocker struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	wait      time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key. A busy
// key is retried until wait elapses.
func NewRedisSlotLocker(client *redis.Client, ttl, wait time.Duration) lock.Locker {
	return &redisLocker{
		client:    client,
		namespace: "slot",
		ttl:       ttl,
		wait:      wait,
	}
}

// NewRedisJobLocker guards singleton background jobs. It never waits: a held
// key means another process is already running the job.
func NewRedisJobLocker(client *redis.Client, ttl time.Duration) lock.Locker {
	return &redisLocker{
		client:    client,
		namespace: "job",
		ttl:       ttl,
	}
}

func lockKey(namespace, key string) string {
	return fmt.Sprintf("lock:%s:%s", namespace, key)
}

func (l *redisLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := lockKey(l.namespace, key)
	token := uuid.NewString()

	if err := l.acquire(ctx, redisKey, token); err != nil {
		return err
	}

	defer func() {
		// release even if ctx was cancelled mid critical section
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, redisKey, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire %s lock: %w", l.namespace, err)
		}
		if ok {
			return nil
		}
		if time.Now().Add(lockRetryInterval).After(deadline) {
			return lock.ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s lock: %w", l.namespace, err)
	}
	return nil
}
