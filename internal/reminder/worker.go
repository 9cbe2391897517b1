package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/lock"
)

const dispatchJobKey = "reminder-dispatch"

type WorkerOptions struct {
	Interval   time.Duration
	BatchSize  int
	RunTimeout time.Duration
}

// Worker polls for due reminders on a fixed interval. Several workers may run
// against one store; the guard lets only one of them dispatch per tick.
type Worker struct {
	scheduler *Scheduler
	guard     lock.Locker
	interval  time.Duration
	batch     int
	timeout   time.Duration
}

func NewWorker(scheduler *Scheduler, guard lock.Locker, opts WorkerOptions) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 20 * time.Second
	}
	return &Worker{
		scheduler: scheduler,
		guard:     guard,
		interval:  opts.Interval,
		batch:     opts.BatchSize,
		timeout:   opts.RunTimeout,
	}
}

// Run dispatches once at startup and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("reminder worker started")

	w.runLogged(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reminder worker stopping")
			return
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *Worker) runLogged(ctx context.Context) {
	start := time.Now()
	report, ran, err := w.RunOnce(ctx)

	logger := zerolog.Ctx(ctx)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("reminder run failed")
	case !ran:
		logger.Debug().Msg("reminder run skipped, another worker holds the guard")
	case report.Due > 0:
		logger.Info().
			Int("due", report.Due).
			Int("sent", report.Sent).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Dur("took", time.Since(start)).
			Msg("reminder run complete")
	}
}

// RunOnce performs a single dispatch pass. ran is false when another process
// held the guard.
func (w *Worker) RunOnce(ctx context.Context) (report DispatchReport, ran bool, err error) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if w.guard == nil {
		report, err = w.scheduler.DispatchDue(runCtx, w.batch)
		return report, true, err
	}

	err = w.guard.WithSlotLock(runCtx, dispatchJobKey, func(ctx context.Context) error {
		ran = true
		var derr error
		report, derr = w.scheduler.DispatchDue(ctx, w.batch)
		return derr
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return DispatchReport{}, false, nil
	}
	return report, ran, err
}
