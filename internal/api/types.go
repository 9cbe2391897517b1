package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
	"github.com/hackgods/doctor-availability-scheduling/internal/scheduling"
)

// Weekday keys are "0".."6" (0 = Sunday) or lowercase English day names.
type WeeklyTemplateRequest struct {
	WeeklyTemplate             map[string]availability.TimeRange `json:"weeklyTemplate"`
	AppointmentDurationMinutes int                               `json:"appointmentDurationMinutes,omitempty"`
}

type SpecificDateRequest struct {
	IsAvailable *bool                   `json:"isAvailable"`
	TimeRange   *availability.TimeRange `json:"timeRange,omitempty"`
}

type ExceptionRequest struct {
	Reason string `json:"reason"`
}

type CreateAppointmentRequest struct {
	DoctorID            string                       `json:"doctorId"`
	HospitalID          string                       `json:"hospitalId"`
	PatientID           string                       `json:"patientId"`
	Date                string                       `json:"date"`
	Time                string                       `json:"time"`
	Type                string                       `json:"type,omitempty"`
	Notes               string                       `json:"notes,omitempty"`
	ReminderPreferences *booking.ReminderPreferences `json:"reminderPreferences,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AppointmentResponse struct {
	ID                  uuid.UUID                   `json:"id"`
	PatientID           string                      `json:"patientId"`
	DoctorID            string                      `json:"doctorId"`
	HospitalID          string                      `json:"hospitalId"`
	Date                string                      `json:"date"`
	Time                string                      `json:"time"`
	Status              string                      `json:"status"`
	Type                string                      `json:"type"`
	Notes               string                      `json:"notes,omitempty"`
	ReminderPreferences booking.ReminderPreferences `json:"reminderPreferences"`
	CreatedAt           time.Time                   `json:"createdAt"`
	UpdatedAt           time.Time                   `json:"updatedAt"`
	CancelledAt         *time.Time                  `json:"cancelledAt,omitempty"`
	CancelledBy         *string                     `json:"cancelledBy,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit,omitempty"`
	Offset       int                   `json:"offset,omitempty"`
}

type SlotsResponse struct {
	DoctorID   string              `json:"doctorId"`
	HospitalID string              `json:"hospitalId"`
	Date       string              `json:"date"`
	Slots      []availability.Slot `json:"slots"`
}

type SlotRangeResponse struct {
	DoctorID   string                `json:"doctorId"`
	HospitalID string                `json:"hospitalId"`
	Days       []scheduling.DaySlots `json:"days"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	prefs := a.ReminderPreferences
	if prefs.Intervals == nil {
		prefs.Intervals = []int{}
	}
	return AppointmentResponse{
		ID:                  a.ID,
		PatientID:           a.PatientID,
		DoctorID:            a.DoctorID,
		HospitalID:          a.HospitalID,
		Date:                a.Date,
		Time:                a.Time,
		Status:              string(a.Status),
		Type:                a.Type,
		Notes:               a.Notes,
		ReminderPreferences: prefs,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
		CancelledAt:         a.CancelledAt,
		CancelledBy:         a.CancelledBy,
	}
}

func toAppointmentList(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}
