package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/db/dbtest"
)

func pgDraft(doctorID, patientID string) *Appointment {
	return &Appointment{
		PatientID:           patientID,
		DoctorID:            doctorID,
		HospitalID:          "hosp-1",
		Date:                "2030-01-07",
		Time:                "10:00",
		Status:              StatusPending,
		Type:                TypeConsultation,
		ReminderPreferences: DefaultReminderPreferences(nil),
	}
}

func TestPgRepository_DuplicateSlot(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()
	doctor := dbtest.ID("doc")

	first, err := repo.CreateAppointment(ctx, pgDraft(doctor, "pat-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, []int{24, 1}, first.ReminderPreferences.Intervals)

	_, err = repo.CreateAppointment(ctx, pgDraft(doctor, "pat-2"))
	require.ErrorIs(t, err, errDuplicateSlot)

	found, err := repo.FindActiveBySlot(ctx, first.Slot())
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestPgRepository_ConcurrentInsertsOneWins(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()
	doctor := dbtest.ID("doc")

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, dup int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateAppointment(ctx, pgDraft(doctor, dbtest.ID("pat")))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, errDuplicateSlot):
				dup++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, dup)
}

func TestPgRepository_CancelThenRebook(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()
	doctor := dbtest.ID("doc")

	first, err := repo.CreateAppointment(ctx, pgDraft(doctor, "pat-1"))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Microsecond)
	cancelled, err := repo.UpdateAppointmentStatus(ctx, first.ID, StatusPending, StatusCancelled, "pat-1", at)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, "pat-1", *cancelled.CancelledBy)

	_, err = repo.UpdateAppointmentStatus(ctx, first.ID, StatusPending, StatusConfirmed, "doc", at)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	second, err := repo.CreateAppointment(ctx, pgDraft(doctor, "pat-2"))
	require.NoError(t, err)

	found, err := repo.FindActiveBySlot(ctx, second.Slot())
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	active, err := repo.ListActiveForDay(ctx, doctor, "hosp-1", "2030-01-07")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "pat-2", active[0].PatientID)
}

func TestPgRepository_NilIntervals(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()

	draft := pgDraft(dbtest.ID("doc"), "pat-1")
	draft.ReminderPreferences = ReminderPreferences{Email: true}

	created, err := repo.CreateAppointment(ctx, draft)
	require.NoError(t, err)
	assert.True(t, created.ReminderPreferences.Email)
	assert.Empty(t, created.ReminderPreferences.Intervals)
}

func TestPgRepository_InsertEvent(t *testing.T) {
	repo := NewPgRepository(dbtest.Pool(t))
	ctx := context.Background()

	appt, err := repo.CreateAppointment(ctx, pgDraft(dbtest.ID("doc"), "pat-1"))
	require.NoError(t, err)

	require.NoError(t, repo.InsertEvent(ctx, EventLog{
		EventType:     EventAppointmentBooked,
		AppointmentID: &appt.ID,
		Payload:       []byte(`{"time":"10:00"}`),
	}))
}
