// Package lock serializes critical sections per slot key. Contention on one
// key never blocks another.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotAcquired = errors.New("slot lock not acquired")

// Locker is used by the booking ledger to guard the check-then-insert for a
// single slot.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is an in-process Locker. Callers wait up to the configured duration
// for a busy key before giving up with ErrNotAcquired.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
	wait time.Duration
}

func NewLocal(wait time.Duration) *Local {
	return &Local{
		keys: make(map[string]*entry),
		wait: wait,
	}
}

func (l *Local) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := l.acquireEntry(key)
	defer l.releaseEntry(key, e)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
	case <-timer.C:
		return ErrNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *Local) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
