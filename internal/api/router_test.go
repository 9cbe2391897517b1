package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/lock"
	"github.com/hackgods/doctor-availability-scheduling/internal/reminder"
	"github.com/hackgods/doctor-availability-scheduling/internal/scheduling"
)

const basePath = "/doctors/doc-1/hospitals/hosp-1"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	now := func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }

	avail := availability.NewService(availability.NewMemoryRepository(), 30)
	reminders := reminder.NewScheduler(reminder.NewMemoryRepository(), reminder.LogDispatcher{}, reminder.Options{
		Now:            now,
		DefaultOffsets: []int{24, 1},
	})
	ledger := booking.NewService(booking.NewMemoryRepository(), lock.NewLocal(time.Second), avail, booking.Options{
		Now:        now,
		CancelHook: reminders,
	})

	return NewRouter(RouterConfig{
		Availability:    avail,
		Scheduling:      scheduling.NewService(avail, ledger, reminders, scheduling.Options{Now: now}),
		ReminderOffsets: []int{24, 1},
		Logger:          zerolog.Nop(),
		Env:             "test",
		Version:         "test",
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seedMonday(t *testing.T, h http.Handler) {
	t.Helper()
	rec := do(t, h, http.MethodPut, basePath+"/availability/weekly",
		`{"weeklyTemplate":{"monday":{"startTime":"09:00","endTime":"12:00"}},"appointmentDurationMinutes":30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func book(t *testing.T, h http.Handler, patientID, clock string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"doctorId":"doc-1","hospitalId":"hosp-1","patientId":"` + patientID +
		`","date":"2025-03-10","time":"` + clock + `"}`
	return do(t, h, http.MethodPost, "/appointments", body)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/health/live", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Dependencies)
}

func TestAvailability_SaveAndGet(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, basePath+"/availability", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "availability_not_found", decode[ErrorResponse](t, rec).Error)

	seedMonday(t, h)

	rec = do(t, h, http.MethodGet, basePath+"/availability", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[availability.Record](t, rec)
	assert.Equal(t, availability.TimeRange{StartTime: "09:00", EndTime: "12:00"}, got.WeeklyTemplate[time.Monday])
	assert.Equal(t, 30, got.AppointmentDurationMinutes)
}

func TestAvailability_Validation(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		field  string
	}{
		{
			name:   "end before start",
			method: http.MethodPut,
			path:   basePath + "/availability/weekly",
			body:   `{"weeklyTemplate":{"1":{"startTime":"12:00","endTime":"09:00"}}}`,
			field:  "weeklyTemplate.monday",
		},
		{
			name:   "bad weekday",
			method: http.MethodPut,
			path:   basePath + "/availability/weekly",
			body:   `{"weeklyTemplate":{"8":{"startTime":"09:00","endTime":"12:00"}}}`,
			field:  "weeklyTemplate.8",
		},
		{
			name:   "available date without hours",
			method: http.MethodPut,
			path:   basePath + "/availability/dates/2025-03-10",
			body:   `{"isAvailable":true}`,
			field:  "timeRange",
		},
		{
			name:   "isAvailable missing",
			method: http.MethodPut,
			path:   basePath + "/availability/dates/2025-03-10",
			body:   `{}`,
			field:  "isAvailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "validation_failed", resp.Error)
			assert.Contains(t, resp.Field, tt.field)
		})
	}
}

func TestStrictBody(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPut, basePath+"/availability/weekly", `{"weeklyTemplate":{},"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPost, "/appointments", `{"doctorId":"doc-1"}{"x":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlots_OverrideRoundTrip(t *testing.T) {
	h := newTestRouter(t)
	seedMonday(t, h)

	rec := do(t, h, http.MethodGet, basePath+"/slots?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 6)

	rec = do(t, h, http.MethodPut, basePath+"/availability/dates/2025-03-10", `{"isAvailable":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, basePath+"/slots?date=2025-03-10", "")
	assert.Empty(t, decode[SlotsResponse](t, rec).Slots)

	rec = do(t, h, http.MethodDelete, basePath+"/availability/dates/2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, basePath+"/availability/exceptions/2025-03-10", `{"reason":"conference"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, basePath+"/slots?date=2025-03-10", "")
	assert.Empty(t, decode[SlotsResponse](t, rec).Slots)

	rec = do(t, h, http.MethodDelete, basePath+"/availability/exceptions/2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, basePath+"/slots?date=2025-03-10", "")
	assert.Len(t, decode[SlotsResponse](t, rec).Slots, 6)

	rec = do(t, h, http.MethodGet, basePath+"/slots?from=2025-03-09&to=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[SlotRangeResponse](t, rec).Days
	require.Len(t, days, 2)
	assert.Empty(t, days[0].Slots)
	assert.Len(t, days[1].Slots, 6)

	rec = do(t, h, http.MethodGet, basePath+"/slots", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAppointments_Lifecycle(t *testing.T) {
	h := newTestRouter(t)
	seedMonday(t, h)

	rec := book(t, h, "pat-1", "10:00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, "consultation", appt.Type)
	assert.True(t, appt.ReminderPreferences.Email)

	rec = book(t, h, "pat-2", "10:00")
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_taken", conflict.Error)
	assert.Equal(t, "time", conflict.Field)

	rec = book(t, h, "pat-2", "12:00")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "slot_not_available", decode[ErrorResponse](t, rec).Error)

	id := appt.ID.String()

	rec = do(t, h, http.MethodGet, "/appointments/"+id+"/reminders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reminders := decode[struct {
		Reminders []reminder.Event `json:"reminders"`
	}](t, rec)
	require.Len(t, reminders.Reminders, 2)

	rec = do(t, h, http.MethodPost, "/appointments/"+id+"/status", `{"status":"confirmed"}`, "X-Actor-ID", "doc-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = do(t, h, http.MethodPost, "/appointments/"+id+"/status", `{"status":"completed"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "appointment_not_started", decode[ErrorResponse](t, rec).Error)

	rec = do(t, h, http.MethodPost, "/appointments/"+id+"/cancel", "", "X-Actor-ID", "pat-1")
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, "pat-1", *cancelled.CancelledBy)

	rec = do(t, h, http.MethodPost, "/appointments/"+id+"/status", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "already_terminal", decode[ErrorResponse](t, rec).Error)

	rec = book(t, h, "pat-2", "10:00")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAppointments_PreferencesWithoutIntervals(t *testing.T) {
	h := newTestRouter(t)
	seedMonday(t, h)

	rec := do(t, h, http.MethodPost, "/appointments",
		`{"doctorId":"doc-1","hospitalId":"hosp-1","patientId":"pat-1","date":"2025-03-10","time":"09:00","reminderPreferences":{"email":true}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	appt := decode[AppointmentResponse](t, rec)
	assert.True(t, appt.ReminderPreferences.Email)
	assert.Equal(t, []int{24, 1}, appt.ReminderPreferences.Intervals)
}

func TestAppointments_QueriesAndReschedule(t *testing.T) {
	h := newTestRouter(t)
	seedMonday(t, h)

	rec := book(t, h, "pat-1", "09:00")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[AppointmentResponse](t, rec)

	rec = do(t, h, http.MethodPost, "/appointments/"+first.ID.String()+"/reschedule", `{"date":"2025-03-10","time":"11:30"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	moved := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "11:30", moved.Time)

	rec = do(t, h, http.MethodGet, "/appointments/"+first.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[AppointmentResponse](t, rec).Status)

	rec = do(t, h, http.MethodGet, "/appointments?patientId=pat-1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[AppointmentListResponse](t, rec)
	assert.Len(t, list.Appointments, 2)
	assert.Equal(t, 10, list.Limit)

	rec = do(t, h, http.MethodGet, "/appointments?doctorId=doc-1&hospitalId=hosp-1&date=2025-03-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode[AppointmentListResponse](t, rec)
	require.Len(t, day.Appointments, 1)
	assert.Equal(t, moved.ID, day.Appointments[0].ID)

	rec = do(t, h, http.MethodGet, "/appointments?patientId=pat-1&limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/appointments", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/appointments/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/appointments/00000000-0000-0000-0000-000000000001", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppointments_InvalidBody(t *testing.T) {
	h := newTestRouter(t)
	seedMonday(t, h)

	rec := do(t, h, http.MethodPost, "/appointments",
		`{"doctorId":"doc-1","hospitalId":"hosp-1","patientId":"pat-1","date":"2025-03-10","time":"10:00","type":"surgery"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type", decode[ErrorResponse](t, rec).Field)

	rec = do(t, h, http.MethodPost, "/appointments",
		`{"doctorId":"doc-1","hospitalId":"hosp-1","patientId":"","date":"2025-03-10","time":"10:00"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "patientId", decode[ErrorResponse](t, rec).Field)
}
