package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/lock"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

const (
	maxReminderOffsetHours = 24 * 30
	maxNotesLength         = 2000
	maxCASAttempts         = 3
)

// AvailabilitySource is the slice of the availability store the ledger reads.
type AvailabilitySource interface {
	GetAvailability(ctx context.Context, doctorID, hospitalID string) (*availability.Record, error)
}

// CancelHook is told about every committed cancellation.
type CancelHook interface {
	AppointmentCancelled(ctx context.Context, appt *Appointment) error
}

type Options struct {
	Location   *time.Location
	Now        func() time.Time
	CancelHook CancelHook
}

type BookRequest struct {
	DoctorID            string
	HospitalID          string
	PatientID           string
	Date                string
	Time                string
	Type                string
	Notes               string
	ReminderPreferences ReminderPreferences
	ActorID             string
}

type Service struct {
	repo     Repository
	locker   lock.Locker
	avail    AvailabilitySource
	loc      *time.Location
	now      func() time.Time
	onCancel CancelHook
}

func NewService(repo Repository, locker lock.Locker, avail AvailabilitySource, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		avail:    avail,
		loc:      opts.Location,
		now:      opts.Now,
		onCancel: opts.CancelHook,
	}
}

// SetCancelHook wires the reminder cascade after construction.
func (s *Service) SetCancelHook(h CancelHook) {
	s.onCancel = h
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func validateBookRequest(req *BookRequest) error {
	switch {
	case strings.TrimSpace(req.DoctorID) == "":
		return &ValidationError{Field: "doctorId", Msg: "must not be empty"}
	case strings.TrimSpace(req.HospitalID) == "":
		return &ValidationError{Field: "hospitalId", Msg: "must not be empty"}
	case strings.TrimSpace(req.PatientID) == "":
		return &ValidationError{Field: "patientId", Msg: "must not be empty"}
	}
	if _, err := availability.ParseDate(req.Date); err != nil {
		return &ValidationError{Field: "date", Msg: fmt.Sprintf("%q is not YYYY-MM-DD", req.Date)}
	}
	if _, err := availability.ParseClock(req.Time); err != nil {
		return &ValidationError{Field: "time", Msg: fmt.Sprintf("%q is not HH:MM", req.Time)}
	}
	if len(req.Notes) > maxNotesLength {
		return &ValidationError{Field: "notes", Msg: fmt.Sprintf("must be at most %d characters", maxNotesLength)}
	}
	if len(req.ReminderPreferences.Intervals) == 0 {
		req.ReminderPreferences.Intervals = append([]int(nil), DefaultReminderOffsets...)
	}
	for _, h := range req.ReminderPreferences.Intervals {
		if h <= 0 || h > maxReminderOffsetHours {
			return &ValidationError{Field: "reminderPreferences.intervals", Msg: fmt.Sprintf("%d must be between 1 and %d hours", h, maxReminderOffsetHours)}
		}
	}
	if req.Type == "" {
		req.Type = TypeConsultation
	}
	return nil
}

// BookSlot creates a pending appointment. The existence check and the insert
// run under a per slot lock, and the repository's unique constraint backs
// that up, so concurrent attempts on one slot yield exactly one success and
// SlotTaken for the rest.
func (s *Service) BookSlot(ctx context.Context, req BookRequest) (*Appointment, error) {
	if err := validateBookRequest(&req); err != nil {
		return nil, err
	}

	slot := SlotKey{DoctorID: req.DoctorID, HospitalID: req.HospitalID, Date: req.Date, Time: req.Time}

	rec, err := s.avail.GetAvailability(ctx, req.DoctorID, req.HospitalID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return nil, &SlotNotAvailableError{Slot: slot, Reason: "doctor has no schedule at this hospital"}
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}

	date, _ := availability.ParseDate(req.Date)
	if !availability.HasSlot(rec, date, req.Time) {
		return nil, &SlotNotAvailableError{Slot: slot, Reason: "outside the doctor's hours for that date"}
	}

	draft := &Appointment{
		PatientID:           req.PatientID,
		DoctorID:            req.DoctorID,
		HospitalID:          req.HospitalID,
		Date:                req.Date,
		Time:                req.Time,
		Status:              StatusPending,
		Type:                req.Type,
		Notes:               req.Notes,
		ReminderPreferences: req.ReminderPreferences,
	}
	if !draft.StartsAt(s.loc).After(s.now()) {
		return nil, &SlotNotAvailableError{Slot: slot, Reason: "slot start is in the past"}
	}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, slot.String(), func(lockCtx context.Context) error {
		var ierr error
		created, ierr = s.insertIfFree(lockCtx, slot, draft, req.ActorID)
		return ierr
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		// The holder is still inside its critical section. The unique slot
		// constraint decides the outcome without the lock.
		created, err = s.insertIfFree(ctx, slot, draft, req.ActorID)
	}
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("appointment_id", created.ID.String()).
		Str("slot", slot.String()).
		Msg("slot booked")

	return created, nil
}

// insertIfFree re-checks the slot and inserts the draft. A duplicate reported
// by the repository is the same outcome as an existing appointment.
func (s *Service) insertIfFree(ctx context.Context, slot SlotKey, draft *Appointment, actorID string) (*Appointment, error) {
	existing, err := s.repo.FindActiveBySlot(ctx, slot)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return nil, fmt.Errorf("check active appointment: %w", err)
	}
	if existing != nil {
		return nil, &SlotTakenError{Slot: slot}
	}

	appt, err := s.repo.CreateAppointment(ctx, draft)
	if err != nil {
		if errors.Is(err, errDuplicateSlot) {
			return nil, &SlotTakenError{Slot: slot}
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, actorID, EventAppointmentBooked, map[string]any{
		"doctor_id":   slot.DoctorID,
		"hospital_id": slot.HospitalID,
		"date":        slot.Date,
		"time":        slot.Time,
		"patient_id":  draft.PatientID,
	})
	return appt, nil
}

// Transition applies a non-cancel status change. Cancellation goes through
// Cancel so the reminder cascade runs.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, actorID string) (*Appointment, error) {
	if !to.Valid() {
		return nil, &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", to)}
	}
	if to == StatusCancelled {
		return s.Cancel(ctx, id, actorID)
	}
	return s.transition(ctx, id, to, actorID)
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, actorID)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, actorID)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, actorID)
}

// Cancel releases the slot. Only allowed before the appointment starts.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID string) (*Appointment, error) {
	updated, err := s.transition(ctx, id, StatusCancelled, actorID)
	if err != nil {
		return nil, err
	}

	if s.onCancel != nil {
		if err := s.onCancel.AppointmentCancelled(ctx, updated); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("appointment_id", id.String()).
				Msg("cancel cascade failed")
		}
	}

	return updated, nil
}

func (s *Service) checkTiming(appt *Appointment, to AppointmentStatus) error {
	started := !s.now().Before(appt.StartsAt(s.loc))

	switch to {
	case StatusConfirmed, StatusCancelled:
		if started {
			return &TransitionError{From: appt.Status, To: to, Err: ErrAppointmentStarted}
		}
	case StatusCompleted, StatusNoShow:
		if !started {
			return &TransitionError{From: appt.Status, To: to, Err: ErrAppointmentUpcoming}
		}
	}
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus, actorID string) (*Appointment, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load appointment: %w", err)
		}

		if appt.Status.Terminal() {
			return nil, &TransitionError{From: appt.Status, To: to, Err: ErrAlreadyTerminal}
		}
		if !CanTransition(appt.Status, to) {
			return nil, &TransitionError{From: appt.Status, To: to, Err: ErrInvalidTransition}
		}
		if err := s.checkTiming(appt, to); err != nil {
			return nil, err
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to, actorID, s.now())
		if errors.Is(err, ErrAppointmentNotFound) {
			// status moved under us, re-evaluate against the fresh row
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update appointment status: %w", err)
		}

		s.logEvent(ctx, updated.ID, actorID, eventFor(to), map[string]any{
			"from": appt.Status,
			"to":   to,
		})
		return updated, nil
	}

	return nil, fmt.Errorf("update appointment %s: status kept changing", id)
}

func eventFor(to AppointmentStatus) string {
	switch to {
	case StatusConfirmed:
		return EventAppointmentConfirmed
	case StatusCancelled:
		return EventAppointmentCancelled
	case StatusCompleted:
		return EventAppointmentCompleted
	default:
		return EventAppointmentNoShow
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, actorID, eventType string, payload map[string]any) {
	logger := zerolog.Ctx(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		ActorID:       actorID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		logger.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID string, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// BookedTimes returns the set of slot start times held on date.
func (s *Service) BookedTimes(ctx context.Context, doctorID, hospitalID, date string) (map[string]bool, error) {
	appts, err := s.repo.ListActiveForDay(ctx, doctorID, hospitalID, date)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	taken := make(map[string]bool, len(appts))
	for _, a := range appts {
		taken[a.Time] = true
	}
	return taken, nil
}

// ListForDay returns the active appointments of one doctor on date.
func (s *Service) ListForDay(ctx context.Context, doctorID, hospitalID, date string) ([]Appointment, error) {
	if _, err := availability.ParseDate(date); err != nil {
		return nil, &ValidationError{Field: "date", Msg: fmt.Sprintf("%q is not YYYY-MM-DD", date)}
	}
	appts, err := s.repo.ListActiveForDay(ctx, doctorID, hospitalID, date)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}
	return appts, nil
}
