package main

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/app"
	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/config"
)

func TestRaceSlot_OneWinner(t *testing.T) {
	ctx := zerolog.Nop().WithContext(context.Background())

	a, err := app.Build(ctx, config.Config{
		Env:                "test",
		StorageDriver:      config.StorageMemory,
		LockWait:           2 * time.Second,
		WorkerInterval:     time.Minute,
		Location:           time.UTC,
		DefaultSlotMinutes: 30,
		ReminderOffsets:    []int{24, 1},
		NotifyHourlyLimit:  10,
	})
	require.NoError(t, err)
	defer a.Close()

	day := time.Now().UTC().AddDate(0, 0, 3)
	_, err = a.Availability.SaveWeeklyTemplate(ctx, "doc-1", "hosp-1", availability.WeeklyTemplate{
		day.Weekday(): {StartTime: "09:00", EndTime: "12:00"},
	}, 30)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router(zerolog.Nop(), "test"))
	defer srv.Close()

	client := newAPIClient(srv.URL, 5*time.Second)
	date := day.Format(availability.DateLayout)

	res, err := raceSlot(ctx, client, bookingBody{
		DoctorID:   "doc-1",
		HospitalID: "hosp-1",
		PatientID:  "race",
		Date:       date,
		Time:       "10:00",
	}, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 19, res.Conflicts)
	assert.Zero(t, res.Errors)
	assert.Empty(t, res.Other)

	slots, status, err := client.openSlots(ctx, "doc-1", "hosp-1", date)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Len(t, slots, 5)
	for _, s := range slots {
		assert.NotEqual(t, "10:00", s.Time)
	}
}
