package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no-show"
)

const (
	TypeConsultation = "consultation"
	TypeFollowUp     = "follow-up"
)

// DefaultReminderOffsets are hours before the appointment.
var DefaultReminderOffsets = []int{24, 1}

// ReminderPreferences selects channels and how many hours ahead to remind.
type ReminderPreferences struct {
	Email     bool  `json:"email"`
	SMS       bool  `json:"sms"`
	WhatsApp  bool  `json:"whatsapp"`
	Intervals []int `json:"intervals"`
}

// DefaultReminderPreferences is email only at the configured offsets.
func DefaultReminderPreferences(offsets []int) ReminderPreferences {
	if len(offsets) == 0 {
		offsets = DefaultReminderOffsets
	}
	return ReminderPreferences{
		Email:     true,
		Intervals: append([]int(nil), offsets...),
	}
}

// SlotKey identifies a bookable slot. At most one non-cancelled appointment
// may hold a given key.
type SlotKey struct {
	DoctorID   string
	HospitalID string
	Date       string
	Time       string
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.DoctorID, k.HospitalID, k.Date, k.Time)
}

type Appointment struct {
	ID                  uuid.UUID
	PatientID           string
	DoctorID            string
	HospitalID          string
	Date                string
	Time                string
	Status              AppointmentStatus
	Type                string
	Notes               string
	ReminderPreferences ReminderPreferences
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CancelledAt         *time.Time
	CancelledBy         *string
}

func (a *Appointment) Slot() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, HospitalID: a.HospitalID, Date: a.Date, Time: a.Time}
}

// StartsAt combines Date and Time in loc. Both were validated on create.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	ActorID       string
	Payload       []byte
	CreatedAt     time.Time
}
