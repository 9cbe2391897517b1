package reminder

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates sends per recipient. The Redis window limiter satisfies it
// for multi-process deployments.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Name() string
}

// Refunder is implemented by limiters that can hand back a unit they granted
// when a later limiter rejects the same send.
type Refunder interface {
	Refund(ctx context.Context, key string) error
}

// LocalLimiter is an in-process limiter allowing limit sends per window for
// each key, refilling evenly across the window.
type LocalLimiter struct {
	name   string
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*localBucket
}

type localBucket struct {
	limiter  *rate.Limiter
	last     *rate.Reservation
	lastSeen time.Time
}

func NewLocalLimiter(name string, limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		name:   name,
		limit:  limit,
		window: window,
		now:    time.Now,
		keys:   make(map[string]*localBucket),
	}
}

func (l *LocalLimiter) Name() string {
	return l.name
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	b, ok := l.keys[key]
	if !ok {
		b = &localBucket{
			limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit),
		}
		l.keys[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, nil
	}
	if r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return false, nil
	}
	b.last = r
	return true, nil
}

// Refund cancels the most recent unit granted to key.
func (l *LocalLimiter) Refund(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.keys[key]
	if !ok || b.last == nil {
		return nil
	}
	b.last.CancelAt(l.now())
	b.last = nil
	return nil
}

// prune forgets keys idle for a full window, whose buckets are full again.
func (l *LocalLimiter) prune(now time.Time) {
	for k, b := range l.keys {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.keys, k)
		}
	}
}
