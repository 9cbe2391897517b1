package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service validates schedule edits at the boundary before touching the
// repository, so a rejected request never partially applies.
type Service struct {
	repo            Repository
	defaultDuration int
}

func NewService(repo Repository, defaultDuration int) *Service {
	return &Service{
		repo:            repo,
		defaultDuration: defaultDuration,
	}
}

// GetAvailability returns ErrNotFound when the doctor never saved a schedule
// at this hospital. Callers decide any fallback; none is fabricated here.
func (s *Service) GetAvailability(ctx context.Context, doctorID, hospitalID string) (*Record, error) {
	if err := validateIDs(doctorID, hospitalID); err != nil {
		return nil, err
	}
	rec, err := s.repo.Get(ctx, doctorID, hospitalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return rec, nil
}

// SaveWeeklyTemplate replaces the whole template. durationMinutes of 0 leaves
// the slot length unchanged.
func (s *Service) SaveWeeklyTemplate(ctx context.Context, doctorID, hospitalID string, tpl WeeklyTemplate, durationMinutes int) (*Record, error) {
	if err := validateIDs(doctorID, hospitalID); err != nil {
		return nil, err
	}
	if tpl == nil {
		tpl = WeeklyTemplate{}
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	if durationMinutes != 0 {
		if err := validateDuration(durationMinutes); err != nil {
			return nil, err
		}
	}

	rec, err := s.repo.SaveWeeklyTemplate(ctx, doctorID, hospitalID, tpl, durationMinutes, s.defaultDuration)
	if err != nil {
		return nil, fmt.Errorf("save weekly template: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("doctor_id", doctorID).
		Str("hospital_id", hospitalID).
		Int("weekdays", len(tpl)).
		Int("duration_minutes", rec.AppointmentDurationMinutes).
		Msg("weekly template saved")

	return rec, nil
}

// UpsertSpecificDate inserts or replaces the override for entry.Date.
// Available entries must carry their hours.
func (s *Service) UpsertSpecificDate(ctx context.Context, doctorID, hospitalID string, entry SpecificDate) (*Record, error) {
	if err := validateIDs(doctorID, hospitalID); err != nil {
		return nil, err
	}
	if err := validateDate(entry.Date); err != nil {
		return nil, err
	}
	if entry.IsAvailable {
		if entry.TimeRange == nil {
			return nil, invalid("timeRange", ErrMissingTimeRange, "date %s is marked available", entry.Date)
		}
		if err := entry.TimeRange.Validate("timeRange"); err != nil {
			return nil, err
		}
	} else {
		entry.TimeRange = nil
	}

	rec, err := s.repo.UpsertSpecificDate(ctx, doctorID, hospitalID, entry, s.defaultDuration)
	if err != nil {
		return nil, fmt.Errorf("upsert specific date: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("doctor_id", doctorID).
		Str("hospital_id", hospitalID).
		Str("date", entry.Date).
		Bool("available", entry.IsAvailable).
		Msg("specific date saved")

	return rec, nil
}

// RemoveSpecificDate drops the override. Existing bookings on that date are
// left untouched.
func (s *Service) RemoveSpecificDate(ctx context.Context, doctorID, hospitalID, date string) (*Record, error) {
	if err := validateIDs(doctorID, hospitalID); err != nil {
		return nil, err
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	rec, err := s.repo.RemoveSpecificDate(ctx, doctorID, hospitalID, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("remove specific date: %w", err)
	}
	return rec, nil
}

// BlockDate records an ad hoc unavailability such as illness.
func (s *Service) BlockDate(ctx context.Context, doctorID, hospitalID, date, reason string) (*Record, error) {
	if err := validateIDs(doctorID, hospitalID); err != nil {
		return nil, err
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	rec, err := s.repo.UpsertException(ctx, doctorID, hospitalID, Exception{Date: date, Reason: reason}, s.defaultDuration)
	if err != nil {
		return nil, fmt.Errorf("upsert exception: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("doctor_id", doctorID).
		Str("hospital_id", hospitalID).
		Str("date", date).
		Str("reason", reason).
		Msg("date blocked")

	return rec, nil
}

func (s *Service) UnblockDate(ctx context.Context, doctorID, hospitalID, date string) (*Record, error) {
	if err := validateIDs(doctorID, hospitalID); err != nil {
		return nil, err
	}
	if err := validateDate(date); err != nil {
		return nil, err
	}

	rec, err := s.repo.RemoveException(ctx, doctorID, hospitalID, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("remove exception: %w", err)
	}
	return rec, nil
}

// Slots loads the record and generates the candidate slots for date.
func (s *Service) Slots(ctx context.Context, doctorID, hospitalID string, date time.Time) (*Record, []Slot, error) {
	rec, err := s.GetAvailability(ctx, doctorID, hospitalID)
	if err != nil {
		return nil, nil, err
	}
	return rec, SlotsForDate(rec, date), nil
}
