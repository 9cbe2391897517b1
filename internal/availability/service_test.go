package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), 30)
}

func TestService_GetAvailability_NotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetAvailability(context.Background(), "doc-1", "hosp-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SaveWeeklyTemplate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	rec, err := svc.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", WeeklyTemplate{
		time.Monday:  {StartTime: "09:00", EndTime: "12:00"},
		time.Tuesday: {StartTime: "13:00", EndTime: "17:00"},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, rec.AppointmentDurationMinutes)
	assert.Len(t, rec.WeeklyTemplate, 2)

	// Full replace, not merge.
	rec, err = svc.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", WeeklyTemplate{
		time.Friday: {StartTime: "08:00", EndTime: "10:00"},
	}, 20)
	require.NoError(t, err)
	assert.Len(t, rec.WeeklyTemplate, 1)
	assert.Contains(t, rec.WeeklyTemplate, time.Friday)
	assert.Equal(t, 20, rec.AppointmentDurationMinutes)

	// Omitting the duration keeps the stored one.
	rec, err = svc.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", WeeklyTemplate{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, rec.AppointmentDurationMinutes)
}

func TestService_SaveWeeklyTemplate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		tpl       WeeklyTemplate
		duration  int
		wantErr   error
		wantField string
	}{
		{
			name:      "start after end",
			tpl:       WeeklyTemplate{time.Monday: {StartTime: "17:00", EndTime: "09:00"}},
			wantErr:   ErrInvalidRange,
			wantField: "weeklyTemplate.monday",
		},
		{
			name:      "empty range",
			tpl:       WeeklyTemplate{time.Monday: {StartTime: "09:00", EndTime: "09:00"}},
			wantErr:   ErrInvalidRange,
			wantField: "weeklyTemplate.monday",
		},
		{
			name:      "bad clock",
			tpl:       WeeklyTemplate{time.Sunday: {StartTime: "9am", EndTime: "12:00"}},
			wantErr:   ErrInvalidTime,
			wantField: "weeklyTemplate.sunday.startTime",
		},
		{
			name:      "weekday out of range",
			tpl:       WeeklyTemplate{time.Weekday(7): {StartTime: "09:00", EndTime: "12:00"}},
			wantErr:   ErrInvalidWeekday,
			wantField: "weeklyTemplate",
		},
		{
			name:      "negative duration",
			tpl:       WeeklyTemplate{},
			duration:  -15,
			wantErr:   ErrInvalidDuration,
			wantField: "appointmentDurationMinutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			_, err := svc.SaveWeeklyTemplate(context.Background(), "doc-1", "hosp-1", tt.tpl, tt.duration)
			require.ErrorIs(t, err, tt.wantErr)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)

			// Nothing was persisted.
			_, err = svc.GetAvailability(context.Background(), "doc-1", "hosp-1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestService_UpsertSpecificDate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.UpsertSpecificDate(ctx, "doc-1", "hosp-1", SpecificDate{Date: "2025-03-10", IsAvailable: true})
	require.ErrorIs(t, err, ErrMissingTimeRange)

	_, err = svc.UpsertSpecificDate(ctx, "doc-1", "hosp-1", SpecificDate{Date: "10-03-2025"})
	require.ErrorIs(t, err, ErrInvalidDate)

	rec, err := svc.UpsertSpecificDate(ctx, "doc-1", "hosp-1", SpecificDate{
		Date: "2025-03-12", IsAvailable: true, TimeRange: &TimeRange{StartTime: "10:00", EndTime: "11:00"},
	})
	require.NoError(t, err)
	require.Len(t, rec.SpecificDates, 1)

	rec, err = svc.UpsertSpecificDate(ctx, "doc-1", "hosp-1", SpecificDate{Date: "2025-03-10"})
	require.NoError(t, err)
	require.Len(t, rec.SpecificDates, 2)
	assert.Equal(t, "2025-03-10", rec.SpecificDates[0].Date, "entries stay ordered by date")

	// Update in place, hours dropped when unavailable.
	rec, err = svc.UpsertSpecificDate(ctx, "doc-1", "hosp-1", SpecificDate{
		Date: "2025-03-12", IsAvailable: false, TimeRange: &TimeRange{StartTime: "10:00", EndTime: "11:00"},
	})
	require.NoError(t, err)
	require.Len(t, rec.SpecificDates, 2)
	assert.False(t, rec.SpecificDates[1].IsAvailable)
	assert.Nil(t, rec.SpecificDates[1].TimeRange)
}

func TestService_OverrideRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	monday, _ := ParseDate("2025-03-10")

	_, err := svc.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", WeeklyTemplate{
		time.Monday: {StartTime: "09:00", EndTime: "17:00"},
	}, 30)
	require.NoError(t, err)

	_, slots, err := svc.Slots(ctx, "doc-1", "hosp-1", monday)
	require.NoError(t, err)
	require.Len(t, slots, 16)

	_, err = svc.UpsertSpecificDate(ctx, "doc-1", "hosp-1", SpecificDate{Date: "2025-03-10", IsAvailable: false})
	require.NoError(t, err)
	_, slots, err = svc.Slots(ctx, "doc-1", "hosp-1", monday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = svc.RemoveSpecificDate(ctx, "doc-1", "hosp-1", "2025-03-10")
	require.NoError(t, err)
	_, slots, err = svc.Slots(ctx, "doc-1", "hosp-1", monday)
	require.NoError(t, err)
	assert.Len(t, slots, 16)
}

func TestService_BlockAndUnblockDate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	monday, _ := ParseDate("2025-03-10")

	_, err := svc.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", WeeklyTemplate{
		time.Monday: {StartTime: "09:00", EndTime: "10:00"},
	}, 30)
	require.NoError(t, err)

	rec, err := svc.BlockDate(ctx, "doc-1", "hosp-1", "2025-03-10", "conference")
	require.NoError(t, err)
	require.Len(t, rec.Exceptions, 1)
	assert.Equal(t, "conference", rec.Exceptions[0].Reason)
	assert.Empty(t, SlotsForDate(rec, monday))

	rec, err = svc.UnblockDate(ctx, "doc-1", "hosp-1", "2025-03-10")
	require.NoError(t, err)
	assert.Empty(t, rec.Exceptions)
	assert.Len(t, SlotsForDate(rec, monday), 2)
}

func TestService_RemoveWithoutRecord(t *testing.T) {
	svc := newTestService()

	_, err := svc.RemoveSpecificDate(context.Background(), "doc-1", "hosp-1", "2025-03-10")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UnblockDate(context.Background(), "doc-1", "hosp-1", "2025-03-10")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_RejectsBlankIDs(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetAvailability(context.Background(), " ", "hosp-1")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", WeeklyTemplate{
		time.Monday: {StartTime: "09:00", EndTime: "10:00"},
	}, 0, 30)
	require.NoError(t, err)

	rec, err := repo.Get(ctx, "doc-1", "hosp-1")
	require.NoError(t, err)
	delete(rec.WeeklyTemplate, time.Monday)

	again, err := repo.Get(ctx, "doc-1", "hosp-1")
	require.NoError(t, err)
	assert.Contains(t, again.WeeklyTemplate, time.Monday)
}
