// Package scheduling composes the availability store, the booking ledger and
// the reminder scheduler into the operations the API exposes.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
	"github.com/hackgods/doctor-availability-scheduling/internal/reminder"
)

const MaxRangeDays = 31

var tracer = otel.Tracer("github.com/hackgods/doctor-availability-scheduling/internal/scheduling")

// Reminders is the part of the reminder scheduler used here.
type Reminders interface {
	ScheduleReminders(ctx context.Context, appt *booking.Appointment) ([]reminder.Event, error)
	ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]reminder.Event, error)
}

type Options struct {
	AutoConfirm bool
	Now         func() time.Time
}

type Service struct {
	avail       *availability.Service
	ledger      *booking.Service
	reminders   Reminders
	autoConfirm bool
	now         func() time.Time
}

func NewService(avail *availability.Service, ledger *booking.Service, reminders Reminders, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		avail:       avail,
		ledger:      ledger,
		reminders:   reminders,
		autoConfirm: opts.AutoConfirm,
		now:         opts.Now,
	}
}

// DaySlots is the open slot list of one date.
type DaySlots struct {
	Date  string              `json:"date"`
	Slots []availability.Slot `json:"slots"`
}

func slotAttrs(doctorID, hospitalID, date string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("doctor.id", doctorID),
		attribute.String("hospital.id", hospitalID),
		attribute.String("slot.date", date),
	)
}

func parseDate(field, date string) (time.Time, error) {
	d, err := availability.ParseDate(date)
	if err != nil {
		return time.Time{}, &availability.ValidationError{
			Field: field,
			Err:   availability.ErrInvalidDate,
			Msg:   fmt.Sprintf("%q is not YYYY-MM-DD", date),
		}
	}
	return d, nil
}

// GetOpenSlots returns the slots of date that are neither booked nor already
// started.
func (s *Service) GetOpenSlots(ctx context.Context, doctorID, hospitalID, date string) ([]availability.Slot, error) {
	ctx, span := tracer.Start(ctx, "scheduling.GetOpenSlots", slotAttrs(doctorID, hospitalID, date))
	defer span.End()

	day, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}

	rec, candidates, err := s.avail.Slots(ctx, doctorID, hospitalID, day)
	if err != nil {
		return nil, err
	}

	open, err := s.openSlots(ctx, rec, date, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open slots")
		return nil, err
	}
	span.SetAttributes(attribute.Int("slot.open", len(open)))
	return open, nil
}

// OpenSlotsRange returns open slots for every date in [from, to].
func (s *Service) OpenSlotsRange(ctx context.Context, doctorID, hospitalID, from, to string) ([]DaySlots, error) {
	ctx, span := tracer.Start(ctx, "scheduling.OpenSlotsRange", slotAttrs(doctorID, hospitalID, from))
	defer span.End()

	start, err := parseDate("from", from)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("to", to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, &availability.ValidationError{Field: "to", Err: availability.ErrInvalidDate, Msg: "must not be before from"}
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return nil, &availability.ValidationError{Field: "to", Err: availability.ErrInvalidDate, Msg: fmt.Sprintf("range covers %d days, max is %d", days, MaxRangeDays)}
	}

	rec, err := s.avail.GetAvailability(ctx, doctorID, hospitalID)
	if err != nil {
		return nil, err
	}

	var out []DaySlots
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format(availability.DateLayout)
		open, err := s.openSlots(ctx, rec, date, availability.SlotsForDate(rec, day))
		if err != nil {
			return nil, err
		}
		out = append(out, DaySlots{Date: date, Slots: open})
	}
	return out, nil
}

func (s *Service) openSlots(ctx context.Context, rec *availability.Record, date string, candidates []availability.Slot) ([]availability.Slot, error) {
	if len(candidates) == 0 {
		return []availability.Slot{}, nil
	}

	taken, err := s.ledger.BookedTimes(ctx, rec.DoctorID, rec.HospitalID, date)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loc := s.ledger.Location()

	open := make([]availability.Slot, 0, len(candidates))
	for _, slot := range candidates {
		if taken[slot.Time] {
			continue
		}
		starts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+slot.Time, loc)
		if err != nil || !starts.After(now) {
			continue
		}
		open = append(open, slot)
	}
	return open, nil
}

// RequestBooking re-derives the open slots, books the requested one and then
// schedules its reminders. A reminder failure is logged and never fails the
// booking.
func (s *Service) RequestBooking(ctx context.Context, req booking.BookRequest) (*booking.Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.RequestBooking", slotAttrs(req.DoctorID, req.HospitalID, req.Date))
	defer span.End()
	span.SetAttributes(attribute.String("slot.time", req.Time))

	appt, err := s.book(ctx, req)
	if err != nil {
		if !isExpected(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "book")
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID.String()))
	return appt, nil
}

func (s *Service) book(ctx context.Context, req booking.BookRequest) (*booking.Appointment, error) {
	logger := logging.FromContext(ctx)
	slot := booking.SlotKey{DoctorID: req.DoctorID, HospitalID: req.HospitalID, Date: req.Date, Time: req.Time}

	// Malformed input is reported by the ledger with the field name.
	if _, err := availability.ParseDate(req.Date); err == nil {
		open, err := s.GetOpenSlots(ctx, req.DoctorID, req.HospitalID, req.Date)
		switch {
		case errors.Is(err, availability.ErrNotFound):
			return nil, &booking.SlotNotAvailableError{Slot: slot, Reason: "doctor has no schedule at this hospital"}
		case err != nil:
			return nil, err
		}
		if !containsSlot(open, req.Time) {
			return nil, s.closedSlotError(ctx, slot)
		}
	}

	appt, err := s.ledger.BookSlot(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.autoConfirm {
		confirmed, err := s.ledger.Confirm(ctx, appt.ID, req.ActorID)
		if err != nil {
			logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("auto confirm failed")
		} else {
			appt = confirmed
		}
	}

	if s.reminders != nil {
		if _, err := s.reminders.ScheduleReminders(ctx, appt); err != nil {
			logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to schedule reminders")
		}
	}

	return appt, nil
}

// closedSlotError tells a booked slot apart from one outside the schedule.
func (s *Service) closedSlotError(ctx context.Context, slot booking.SlotKey) error {
	taken, err := s.ledger.BookedTimes(ctx, slot.DoctorID, slot.HospitalID, slot.Date)
	if err == nil && taken[slot.Time] {
		return &booking.SlotTakenError{Slot: slot}
	}
	return &booking.SlotNotAvailableError{Slot: slot, Reason: "slot is not open"}
}

func containsSlot(slots []availability.Slot, clock string) bool {
	for _, s := range slots {
		if s.Time == clock {
			return true
		}
	}
	return false
}

func isExpected(err error) bool {
	return errors.Is(err, booking.ErrSlotTaken) ||
		errors.Is(err, booking.ErrSlotNotAvailable) ||
		errors.Is(err, booking.ErrInvalidRequest)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID string) (*booking.Appointment, error) {
	return s.ledger.Cancel(ctx, id, actorID)
}

func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to booking.AppointmentStatus, actorID string) (*booking.Appointment, error) {
	return s.ledger.Transition(ctx, id, to, actorID)
}

// Reschedule books date/time for the same patient and only then cancels the
// original. If the old appointment can no longer be cancelled the new one is
// released again and the original stands.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date, clock, actorID string) (*booking.Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Reschedule", trace.WithAttributes(
		attribute.String("appointment.id", id.String()),
		attribute.String("slot.date", date),
		attribute.String("slot.time", clock),
	))
	defer span.End()

	old, err := s.ledger.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status.Terminal() {
		return nil, &booking.TransitionError{From: old.Status, To: booking.StatusCancelled, Err: booking.ErrAlreadyTerminal}
	}
	if old.Date == date && old.Time == clock {
		return nil, &booking.ValidationError{Field: "time", Msg: "new slot is the current slot"}
	}

	next, err := s.RequestBooking(ctx, booking.BookRequest{
		DoctorID:            old.DoctorID,
		HospitalID:          old.HospitalID,
		PatientID:           old.PatientID,
		Date:                date,
		Time:                clock,
		Type:                old.Type,
		Notes:               old.Notes,
		ReminderPreferences: old.ReminderPreferences,
		ActorID:             actorID,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Cancel(ctx, old.ID, actorID); err != nil {
		if _, rbErr := s.ledger.Cancel(ctx, next.ID, actorID); rbErr != nil {
			logging.FromContext(ctx).Error().Err(rbErr).
				Str("appointment_id", next.ID.String()).
				Msg("failed to release rescheduled slot")
		}
		span.RecordError(err)
		return nil, err
	}

	logging.FromContext(ctx).Info().
		Str("from_appointment_id", old.ID.String()).
		Str("to_appointment_id", next.ID.String()).
		Msg("appointment rescheduled")

	return next, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*booking.Appointment, error) {
	return s.ledger.GetAppointment(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]booking.Appointment, error) {
	return s.ledger.ListAppointmentsByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListForDay(ctx context.Context, doctorID, hospitalID, date string) ([]booking.Appointment, error) {
	return s.ledger.ListForDay(ctx, doctorID, hospitalID, date)
}

// Reminders lists the reminder events of an existing appointment.
func (s *Service) Reminders(ctx context.Context, id uuid.UUID) ([]reminder.Event, error) {
	if _, err := s.ledger.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	if s.reminders == nil {
		return []reminder.Event{}, nil
	}
	return s.reminders.ListForAppointment(ctx, id)
}
