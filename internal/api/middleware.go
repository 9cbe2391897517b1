package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// LoggerMiddleware puts a per request copy of logger into the context, where
// zerolog.Ctx and hlog.FromRequest find it.
func LoggerMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return hlog.NewHandler(logger)
}

// RequestIDMiddleware echoes or assigns X-Request-ID and tags the request
// logger with it.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", requestID)
		})

		next.ServeHTTP(w, r)
	})
}

// AccessLogMiddleware logs method, path, status and duration once per request.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")
				writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// actorID is the caller identity forwarded by the gateway.
func actorID(r *http.Request, fallback string) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return fallback
}
