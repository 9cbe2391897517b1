package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
)

var tracer = otel.Tracer("github.com/hackgods/doctor-availability-scheduling/internal/reminder")

type Options struct {
	Location       *time.Location
	Now            func() time.Time
	DefaultOffsets []int
	Resolver       RecipientResolver
	Limiters       []Limiter
	Parallelism    int
}

// Scheduler derives reminder events from appointments and dispatches the
// ones that come due.
type Scheduler struct {
	repo       Repository
	dispatcher Dispatcher
	resolver   RecipientResolver
	limiters   []Limiter
	loc        *time.Location
	now        func() time.Time
	offsets    []int
	parallel   int
}

func NewScheduler(repo Repository, dispatcher Dispatcher, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Resolver == nil {
		opts.Resolver = PatientIDResolver{}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		resolver:   opts.Resolver,
		limiters:   opts.Limiters,
		loc:        opts.Location,
		now:        opts.Now,
		offsets:    opts.DefaultOffsets,
		parallel:   opts.Parallelism,
	}
}

// ScheduleReminders persists the pending events for appt. Calling it again
// for the same appointment creates nothing new.
func (s *Scheduler) ScheduleReminders(ctx context.Context, appt *booking.Appointment) ([]Event, error) {
	events := Derive(appt, s.loc, s.offsets)
	if len(events) == 0 {
		return []Event{}, nil
	}

	created, err := s.repo.CreateEvents(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("schedule reminders: %w", err)
	}

	now := s.now()
	pastDue := 0
	for _, ev := range created {
		if !ev.ScheduledFor.After(now) {
			pastDue++
		}
	}

	zerolog.Ctx(ctx).Debug().
		Str("appointment_id", appt.ID.String()).
		Int("created", len(created)).
		Int("past_due", pastDue).
		Msg("reminders scheduled")

	return created, nil
}

// AppointmentCancelled cancels every reminder not yet dispatched.
func (s *Scheduler) AppointmentCancelled(ctx context.Context, appt *booking.Appointment) error {
	n, err := s.repo.CancelPending(ctx, appt.ID, s.now())
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().
		Str("appointment_id", appt.ID.String()).
		Int("cancelled", n).
		Msg("reminders cancelled")
	return nil
}

func (s *Scheduler) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Event, error) {
	events, err := s.repo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return events, nil
}

type DispatchReport struct {
	Due     int
	Sent    int
	Failed  int
	Skipped int
}

// DispatchDue sends up to batch due events and records each outcome. A
// failed send is marked failed and never retried here. The returned error
// reports storage problems only.
func (s *Scheduler) DispatchDue(ctx context.Context, batch int) (DispatchReport, error) {
	ctx, span := tracer.Start(ctx, "reminder.DispatchDue")
	defer span.End()

	now := s.now()
	due, err := s.repo.ListDue(ctx, now, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list due")
		return DispatchReport{}, fmt.Errorf("list due reminders: %w", err)
	}

	report := DispatchReport{Due: len(due)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.parallel)

	for i := range due {
		ev := due[i]
		g.Go(func() error {
			status, err := s.dispatchOne(ctx, &ev)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrEventNotPending):
				report.Skipped++
				return nil
			case err != nil:
				report.Skipped++
				return err
			case status == StatusSent:
				report.Sent++
			default:
				report.Failed++
			}
			return nil
		})
	}

	err = g.Wait()

	span.SetAttributes(
		attribute.Int("reminder.due", report.Due),
		attribute.Int("reminder.sent", report.Sent),
		attribute.Int("reminder.failed", report.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark result")
		return report, err
	}
	return report, nil
}

func (s *Scheduler) dispatchOne(ctx context.Context, ev *Event) (Status, error) {
	logger := logging.FromContext(ctx).With().
		Str("event_id", ev.ID.String()).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("channel", string(ev.Channel)).
		Logger()

	status, reason := s.send(ctx, ev)

	if _, err := s.repo.MarkResult(ctx, ev.ID, status, reason, s.now()); err != nil {
		if errors.Is(err, ErrEventNotPending) {
			logger.Debug().Msg("reminder changed state during dispatch")
			return "", err
		}
		logger.Error().Err(err).Msg("failed to record reminder result")
		return "", err
	}

	if status == StatusFailed {
		logger.Warn().Str("reason", reason).Msg("reminder dispatch failed")
	}
	return status, nil
}

func (s *Scheduler) send(ctx context.Context, ev *Event) (Status, string) {
	recipient, err := s.resolver.Resolve(ctx, ev.PatientID, ev.Channel)
	if err != nil {
		return StatusFailed, "resolve recipient: " + err.Error()
	}

	granted := make([]Limiter, 0, len(s.limiters))
	for _, l := range s.limiters {
		ok, err := l.Allow(ctx, recipient)
		if err != nil {
			s.refund(ctx, granted, recipient)
			return StatusFailed, "rate limiter " + l.Name() + ": " + err.Error()
		}
		if !ok {
			s.refund(ctx, granted, recipient)
			return StatusFailed, ReasonRateLimited + ":" + l.Name()
		}
		granted = append(granted, l)
	}

	err = s.dispatcher.Dispatch(ctx, Notification{
		EventID:       ev.ID,
		AppointmentID: ev.AppointmentID,
		Channel:       ev.Channel,
		Recipient:     recipient,
		Message:       renderMessage(ev),
		ScheduledFor:  ev.ScheduledFor,
	})
	if err != nil {
		return StatusFailed, err.Error()
	}
	return StatusSent, ""
}

// refund returns the units spent on limiters that admitted a send which a
// later limiter then rejected.
func (s *Scheduler) refund(ctx context.Context, granted []Limiter, recipient string) {
	for _, l := range granted {
		r, ok := l.(Refunder)
		if !ok {
			continue
		}
		if err := r.Refund(ctx, recipient); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("limiter", l.Name()).Msg("rate limit refund failed")
		}
	}
}
