package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/app"
	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("reminder-worker", cfg.Env, cfg.LogLevel)
	if !cfg.UsesRedis() {
		logger.Fatal().Msg("reminder-worker needs STORAGE_DRIVER=postgres; the api-server dispatches in process with the memory driver")
	}

	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("batch", cfg.WorkerBatchSize).
		Int("concurrency", cfg.WorkerParallel).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = logger.WithContext(rootCtx)

	a, err := app.Build(rootCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing backends")
		}
	}()

	a.Worker.Run(rootCtx)
	logger.Info().Msg("reminder-worker stopped")
}
