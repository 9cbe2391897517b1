package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow bumps the counter for the current window and sets its expiry on
// first use, atomically.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// decrWindow takes one unit back, never going below zero.
var decrWindow = redis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// WindowLimiter is a fixed window counter shared by every worker process.
type WindowLimiter struct {
	client *redis.Client
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(client *redis.Client, name string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		client: client,
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *WindowLimiter) windowKey(key string) string {
	bucket := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("ratelimit:%s:%s:%d", l.name, key, bucket)
}

// Allow consumes one unit for key and reports whether it fit in the window.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	n, err := incrWindow.Run(ctx, l.client, []string{l.windowKey(key)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", l.name, err)
	}
	return n <= int64(l.limit), nil
}

// Refund gives back one unit in key's current window.
func (l *WindowLimiter) Refund(ctx context.Context, key string) error {
	if l.limit <= 0 {
		return nil
	}
	if err := decrWindow.Run(ctx, l.client, []string{l.windowKey(key)}).Err(); err != nil {
		return fmt.Errorf("rate limit refund %s: %w", l.name, err)
	}
	return nil
}

func (l *WindowLimiter) Name() string {
	return l.name
}
