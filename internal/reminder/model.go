package reminder

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

const ReasonRateLimited = "rate_limited"

var (
	ErrEventNotFound   = errors.New("reminder event not found")
	ErrEventNotPending = errors.New("reminder event is no longer pending")
)

// Event is one channel specific reminder derived from an appointment. The
// appointment details needed to render the message are copied in so dispatch
// never reads the ledger.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointmentId"`
	PatientID     string     `json:"patientId"`
	DoctorID      string     `json:"doctorId"`
	HospitalID    string     `json:"hospitalId"`
	Channel       Channel    `json:"channel"`
	OffsetHours   int        `json:"offsetHours"`
	StartsAt      time.Time  `json:"startsAt"`
	ScheduledFor  time.Time  `json:"scheduledFor"`
	Status        Status     `json:"status"`
	FailureReason string     `json:"failureReason,omitempty"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// eventKey is unique per appointment.
type eventKey struct {
	AppointmentID uuid.UUID
	Channel       Channel
	OffsetHours   int
}

func (e *Event) key() eventKey {
	return eventKey{AppointmentID: e.AppointmentID, Channel: e.Channel, OffsetHours: e.OffsetHours}
}

func channelsFor(p booking.ReminderPreferences) []Channel {
	var out []Channel
	if p.Email {
		out = append(out, ChannelEmail)
	}
	if p.SMS {
		out = append(out, ChannelSMS)
	}
	if p.WhatsApp {
		out = append(out, ChannelWhatsApp)
	}
	return out
}

// normalizeOffsets drops duplicates and non positive values and orders the
// result furthest first.
func normalizeOffsets(offsets []int) []int {
	seen := make(map[int]bool, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, h := range offsets {
		if h <= 0 || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Derive computes the pending events for appt: one per enabled channel and
// offset, scheduled offset hours before the start in loc. Events whose time
// has already passed are still returned.
func Derive(appt *booking.Appointment, loc *time.Location, defaultOffsets []int) []Event {
	channels := channelsFor(appt.ReminderPreferences)
	if len(channels) == 0 {
		return nil
	}

	offsets := appt.ReminderPreferences.Intervals
	if len(offsets) == 0 {
		offsets = defaultOffsets
	}
	if len(offsets) == 0 {
		offsets = booking.DefaultReminderOffsets
	}
	offsets = normalizeOffsets(offsets)

	start := appt.StartsAt(loc)

	events := make([]Event, 0, len(channels)*len(offsets))
	for _, ch := range channels {
		for _, h := range offsets {
			events = append(events, Event{
				AppointmentID: appt.ID,
				PatientID:     appt.PatientID,
				DoctorID:      appt.DoctorID,
				HospitalID:    appt.HospitalID,
				Channel:       ch,
				OffsetHours:   h,
				StartsAt:      start,
				ScheduledFor:  start.Add(-time.Duration(h) * time.Hour),
				Status:        StatusPending,
			})
		}
	}
	return events
}
