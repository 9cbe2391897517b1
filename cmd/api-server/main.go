package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/app"
	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("version", version).
		Msg("api-server starting up")

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

	// The memory driver cannot be shared with a separate reminder-worker,
	// so reminders are dispatched in process.
	workerDone := make(chan struct{})
	if !cfg.UsesRedis() {
		go func() {
			defer close(workerDone)
			a.Worker.Run(rootCtx)
		}()
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           a.Router(logger, version),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-workerDone

	logger.Info().Msg("api-server stopped")
}
