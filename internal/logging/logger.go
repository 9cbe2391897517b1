package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// New builds the process logger. Dev gets a console writer, everything else
// gets JSON lines with caller info.
func New(service, env, level string) zerolog.Logger {
	return newWithWriter(os.Stdout, service, env, level)
}

func newWithWriter(out io.Writer, service, env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(lvl).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Logger()
}

// FromContext returns the request scoped logger with trace ids attached when
// a span is active. Falls back to zerolog's disabled logger if none was set.
func FromContext(ctx context.Context) *zerolog.Logger {
	logger := zerolog.Ctx(ctx)

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}

	l := logger.With().
		Str("trace_id", span.SpanContext().TraceID().String()).
		Str("span_id", span.SpanContext().SpanID().String()).
		Logger()
	return &l
}
