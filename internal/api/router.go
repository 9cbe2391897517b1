package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Availability    *availability.Service
	Scheduling      *scheduling.Service
	ReminderOffsets []int
	Logger          zerolog.Logger
	PgPool          *pgxpool.Pool // nil with the memory driver
	Redis           *redis.Client // nil with the memory driver
	Env             string
	Version         string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(LoggerMiddleware(cfg.Logger))
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware)
	r.Use(RecoverMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability endpoints
	r.Route("/doctors/{doctorID}/hospitals/{hospitalID}", func(r chi.Router) {
		r.Get("/availability", getAvailabilityHandler(cfg.Availability))
		r.Put("/availability/weekly", saveWeeklyTemplateHandler(cfg.Availability))
		r.Put("/availability/dates/{date}", upsertSpecificDateHandler(cfg.Availability))
		r.Delete("/availability/dates/{date}", removeSpecificDateHandler(cfg.Availability))
		r.Put("/availability/exceptions/{date}", blockDateHandler(cfg.Availability))
		r.Delete("/availability/exceptions/{date}", unblockDateHandler(cfg.Availability))

		r.Get("/slots", openSlotsHandler(cfg.Scheduling))
	})

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Scheduling, cfg.ReminderOffsets))
		r.Get("/", listAppointmentsHandler(cfg.Scheduling))
		r.Get("/{id}", getAppointmentHandler(cfg.Scheduling))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Scheduling))
		r.Post("/{id}/status", transitionStatusHandler(cfg.Scheduling))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Scheduling))
		r.Get("/{id}/reminders", listRemindersHandler(cfg.Scheduling))
	})

	return r
}
