package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/lock"
	"github.com/hackgods/doctor-availability-scheduling/internal/reminder"
)

const (
	doctorID   = "doc-1"
	hospitalID = "hosp-1"
	monday     = "2025-03-10"
)

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type failingReminders struct{}

func (failingReminders) ScheduleReminders(context.Context, *booking.Appointment) ([]reminder.Event, error) {
	return nil, errors.New("reminder store unavailable")
}

func (failingReminders) ListForAppointment(context.Context, uuid.UUID) ([]reminder.Event, error) {
	return nil, errors.New("reminder store unavailable")
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

type harness struct {
	clock     *fixedClock
	svc       *Service
	avail     *availability.Service
	ledger    *booking.Service
	reminders *reminder.Scheduler
}

func newHarness(t *testing.T, opts Options, rem Reminders) *harness {
	t.Helper()
	ctx := context.Background()
	clock := &fixedClock{t: testNow}
	now := clock.Now

	avail := availability.NewService(availability.NewMemoryRepository(), 30)
	_, err := avail.SaveWeeklyTemplate(ctx, doctorID, hospitalID, availability.WeeklyTemplate{
		time.Monday:  {StartTime: "09:00", EndTime: "17:00"},
		time.Tuesday: {StartTime: "09:00", EndTime: "10:15"},
	}, 30)
	require.NoError(t, err)

	scheduler := reminder.NewScheduler(reminder.NewMemoryRepository(), reminder.LogDispatcher{}, reminder.Options{
		Location:       time.UTC,
		Now:            now,
		DefaultOffsets: []int{24, 1},
	})

	ledger := booking.NewService(booking.NewMemoryRepository(), lock.NewLocal(time.Second), avail, booking.Options{
		Location:   time.UTC,
		Now:        now,
		CancelHook: scheduler,
	})

	if rem == nil {
		rem = scheduler
	}
	opts.Now = now

	return &harness{
		clock:     clock,
		svc:       NewService(avail, ledger, rem, opts),
		avail:     avail,
		ledger:    ledger,
		reminders: scheduler,
	}
}

func bookRequest(patientID, date, clock string) booking.BookRequest {
	return booking.BookRequest{
		DoctorID:            doctorID,
		HospitalID:          hospitalID,
		PatientID:           patientID,
		Date:                date,
		Time:                clock,
		ReminderPreferences: booking.ReminderPreferences{Email: true, Intervals: []int{24, 1}},
		ActorID:             patientID,
	}
}

func slotTimes(slots []availability.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time)
	}
	return out
}

func TestGetOpenSlots_ExcludesBooked(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	_, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", "2025-03-11", "09:30"))
	require.NoError(t, err)

	open, err := h.svc.GetOpenSlots(ctx, doctorID, hospitalID, "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, slotTimes(open))
}

func TestGetOpenSlots_OverridePrecedence(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	before, err := h.svc.GetOpenSlots(ctx, doctorID, hospitalID, monday)
	require.NoError(t, err)
	require.Len(t, before, 16)

	_, err = h.avail.UpsertSpecificDate(ctx, doctorID, hospitalID, availability.SpecificDate{Date: monday, IsAvailable: false})
	require.NoError(t, err)

	blocked, err := h.svc.GetOpenSlots(ctx, doctorID, hospitalID, monday)
	require.NoError(t, err)
	assert.Empty(t, blocked)

	_, err = h.avail.RemoveSpecificDate(ctx, doctorID, hospitalID, monday)
	require.NoError(t, err)

	restored, err := h.svc.GetOpenSlots(ctx, doctorID, hospitalID, monday)
	require.NoError(t, err)
	assert.Equal(t, before, restored)
}

func TestGetOpenSlots_Errors(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	_, err := h.svc.GetOpenSlots(ctx, doctorID, hospitalID, "10-03-2025")
	assert.ErrorIs(t, err, availability.ErrInvalidDate)

	_, err = h.svc.GetOpenSlots(ctx, "doc-unknown", hospitalID, monday)
	assert.ErrorIs(t, err, availability.ErrNotFound)
}

func TestGetOpenSlots_HidesStartedSlots(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	h.clock.t = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	open, err := h.svc.GetOpenSlots(context.Background(), doctorID, hospitalID, "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:30"}, slotTimes(open))
}

func TestOpenSlotsRange(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	days, err := h.svc.OpenSlotsRange(ctx, doctorID, hospitalID, "2025-03-09", "2025-03-11")
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2025-03-09", days[0].Date)
	assert.Empty(t, days[0].Slots)
	assert.Len(t, days[1].Slots, 16)
	assert.Equal(t, []string{"09:00", "09:30"}, slotTimes(days[2].Slots))

	_, err = h.svc.OpenSlotsRange(ctx, doctorID, hospitalID, "2025-03-01", "2025-04-15")
	assert.ErrorIs(t, err, availability.ErrInvalidDate)

	_, err = h.svc.OpenSlotsRange(ctx, doctorID, hospitalID, "2025-03-11", "2025-03-10")
	assert.ErrorIs(t, err, availability.ErrInvalidDate)
}

func TestRequestBooking_SchedulesReminders(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	appt, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, appt.Status)

	events, err := h.svc.Reminders(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC), events[0].ScheduledFor)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), events[1].ScheduledFor)
}

func TestRequestBooking_ReminderFailureKeepsBooking(t *testing.T) {
	h := newHarness(t, Options{}, failingReminders{})
	ctx := context.Background()

	appt, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "10:00"))
	require.NoError(t, err)

	stored, err := h.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, stored.Status)
}

func TestRequestBooking_AutoConfirm(t *testing.T) {
	h := newHarness(t, Options{AutoConfirm: true}, nil)

	appt, err := h.svc.RequestBooking(context.Background(), bookRequest("pat-1", monday, "10:00"))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, appt.Status)
}

func TestRequestBooking_Rejections(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	_, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "17:00"))
	assert.ErrorIs(t, err, booking.ErrSlotNotAvailable)

	_, err = h.svc.RequestBooking(ctx, bookRequest("pat-1", "2025-03-12", "09:00"))
	assert.ErrorIs(t, err, booking.ErrSlotNotAvailable)

	req := bookRequest("pat-1", monday, "10:00")
	req.HospitalID = "hosp-9"
	_, err = h.svc.RequestBooking(ctx, req)
	assert.ErrorIs(t, err, booking.ErrSlotNotAvailable)

	_, err = h.svc.RequestBooking(ctx, bookRequest("pat-1", "March 10", "10:00"))
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "10:00"))
	require.NoError(t, err)
	_, err = h.svc.RequestBooking(ctx, bookRequest("pat-2", monday, "10:00"))
	var taken *booking.SlotTakenError
	require.True(t, errors.As(err, &taken))
	assert.Equal(t, "10:00", taken.Slot.Time)
}

func TestRequestBooking_ConcurrentSameSlot(t *testing.T) {
	const n = 20
	h := newHarness(t, Options{}, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.svc.RequestBooking(context.Background(), bookRequest(uuid.NewString(), monday, "14:00"))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, booking.ErrSlotTaken) {
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestCancel_ReleasesSlotAndReminders(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	appt, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "11:00"))
	require.NoError(t, err)
	_, err = h.svc.TransitionStatus(ctx, appt.ID, booking.StatusConfirmed, "doc-1")
	require.NoError(t, err)

	_, err = h.svc.Cancel(ctx, appt.ID, "pat-1")
	require.NoError(t, err)

	events, err := h.svc.Reminders(ctx, appt.ID)
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, reminder.StatusCancelled, ev.Status)
	}

	open, err := h.svc.GetOpenSlots(ctx, doctorID, hospitalID, monday)
	require.NoError(t, err)
	assert.Contains(t, slotTimes(open), "11:00")

	_, err = h.svc.RequestBooking(ctx, bookRequest("pat-2", monday, "11:00"))
	assert.NoError(t, err)
}

func TestTransitionStatus_Terminal(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	appt, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "11:00"))
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, appt.ID, "pat-1")
	require.NoError(t, err)

	for _, to := range []booking.AppointmentStatus{booking.StatusConfirmed, booking.StatusCancelled, booking.StatusCompleted} {
		_, err := h.svc.TransitionStatus(ctx, appt.ID, to, "staff")
		assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)
	}
}

func TestReschedule(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	old, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "09:00"))
	require.NoError(t, err)

	next, err := h.svc.Reschedule(ctx, old.ID, "2025-03-11", "09:30", "pat-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", next.Date)
	assert.Equal(t, "09:30", next.Time)
	assert.Equal(t, old.PatientID, next.PatientID)

	prev, err := h.svc.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, prev.Status)
}

func TestReschedule_TargetTakenKeepsOriginal(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	old, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "09:00"))
	require.NoError(t, err)
	_, err = h.svc.RequestBooking(ctx, bookRequest("pat-2", monday, "09:30"))
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, old.ID, monday, "09:30", "pat-1")
	assert.ErrorIs(t, err, booking.ErrSlotTaken)

	stored, err := h.svc.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, stored.Status)
}

func TestReschedule_Rejections(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	ctx := context.Background()

	appt, err := h.svc.RequestBooking(ctx, bookRequest("pat-1", monday, "09:00"))
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, appt.ID, monday, "09:00", "pat-1")
	assert.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = h.svc.Cancel(ctx, appt.ID, "pat-1")
	require.NoError(t, err)
	_, err = h.svc.Reschedule(ctx, appt.ID, monday, "10:00", "pat-1")
	assert.ErrorIs(t, err, booking.ErrAlreadyTerminal)

	_, err = h.svc.Reschedule(ctx, uuid.New(), monday, "10:00", "pat-1")
	assert.ErrorIs(t, err, booking.ErrAppointmentNotFound)
}
