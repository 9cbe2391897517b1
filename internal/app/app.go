// Package app assembles the services shared by the api-server and the
// reminder-worker from a loaded config.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/api"
	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
	"github.com/hackgods/doctor-availability-scheduling/internal/lock"
	redisclient "github.com/hackgods/doctor-availability-scheduling/internal/redis"
	"github.com/hackgods/doctor-availability-scheduling/internal/reminder"
	"github.com/hackgods/doctor-availability-scheduling/internal/scheduling"
)

const webhookTimeout = 5 * time.Second

type App struct {
	Config       config.Config
	Availability *availability.Service
	Booking      *booking.Service
	Scheduling   *scheduling.Service
	Reminders    *reminder.Scheduler
	Worker       *reminder.Worker

	Pool  *pgxpool.Pool // nil with the memory driver
	Redis *redis.Client // nil with the memory driver
}

type stores struct {
	avail    availability.Repository
	appts    booking.Repository
	events   reminder.Repository
	locker   lock.Locker
	guard    lock.Locker
	limiters []reminder.Limiter
}

// Build connects to the configured backends and wires every service. The
// caller owns the result and must Close it.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger := zerolog.Ctx(ctx)
	a := &App{Config: cfg}

	var s stores
	if cfg.UsesRedis() {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		logger.Info().Msg("connected to Postgres")

		rdb, err := redisclient.NewRedisClient(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rdb
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		s = stores{
			avail:    availability.NewPgRepository(pool),
			appts:    booking.NewPgRepository(pool),
			events:   reminder.NewPgRepository(pool),
			locker:   redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait),
			guard:    redisclient.NewRedisJobLocker(rdb, cfg.WorkerInterval),
			limiters: []reminder.Limiter{redisclient.NewWindowLimiter(rdb, "notify-hourly", cfg.NotifyHourlyLimit, time.Hour)},
		}
		if cfg.NotifyWebhookURL != "" {
			s.limiters = append(s.limiters, redisclient.NewWindowLimiter(rdb, "webhook-minute", cfg.WebhookMinuteLimit, time.Minute))
		}
	} else {
		logger.Warn().Msg("memory storage driver: state is lost on restart")
		s = stores{
			avail:    availability.NewMemoryRepository(),
			appts:    booking.NewMemoryRepository(),
			events:   reminder.NewMemoryRepository(),
			locker:   lock.NewLocal(cfg.LockWait),
			limiters: []reminder.Limiter{reminder.NewLocalLimiter("notify-hourly", cfg.NotifyHourlyLimit, time.Hour)},
		}
		if cfg.NotifyWebhookURL != "" {
			s.limiters = append(s.limiters, reminder.NewLocalLimiter("webhook-minute", cfg.WebhookMinuteLimit, time.Minute))
		}
	}

	a.wire(cfg, s)
	return a, nil
}

func (a *App) wire(cfg config.Config, s stores) {
	var dispatcher reminder.Dispatcher = reminder.LogDispatcher{}
	if cfg.NotifyWebhookURL != "" {
		dispatcher = reminder.NewWebhookDispatcher(cfg.NotifyWebhookURL, webhookTimeout)
	}

	a.Availability = availability.NewService(s.avail, cfg.DefaultSlotMinutes)
	a.Reminders = reminder.NewScheduler(s.events, dispatcher, reminder.Options{
		Location:       cfg.Location,
		DefaultOffsets: cfg.ReminderOffsets,
		Limiters:       s.limiters,
		Parallelism:    cfg.WorkerParallel,
	})
	a.Booking = booking.NewService(s.appts, s.locker, a.Availability, booking.Options{
		Location:   cfg.Location,
		CancelHook: a.Reminders,
	})
	a.Scheduling = scheduling.NewService(a.Availability, a.Booking, a.Reminders, scheduling.Options{
		AutoConfirm: cfg.AutoConfirm,
	})
	a.Worker = reminder.NewWorker(a.Reminders, s.guard, reminder.WorkerOptions{
		Interval:  cfg.WorkerInterval,
		BatchSize: cfg.WorkerBatchSize,
	})
}

// Router builds the HTTP handler over the wired services.
func (a *App) Router(logger zerolog.Logger, version string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Availability:    a.Availability,
		Scheduling:      a.Scheduling,
		ReminderOffsets: a.Config.ReminderOffsets,
		Logger:          logger,
		PgPool:          a.Pool,
		Redis:           a.Redis,
		Env:             a.Config.Env,
		Version:         version,
	})
}

func (a *App) Close() error {
	var err error
	if a.Redis != nil {
		if cerr := a.Redis.Close(); cerr != nil {
			err = fmt.Errorf("close redis: %w", cerr)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return err
}
