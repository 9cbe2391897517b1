package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all storage interactions needed by the ledger.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	FindActiveBySlot(ctx context.Context, slot SlotKey) (*Appointment, error)
	ListActiveForDay(ctx context.Context, doctorID, hospitalID, date string) ([]Appointment, error)

	ListAppointmentsByPatient(ctx context.Context, patientID string, limit, offset int) ([]Appointment, error)

	// Create must fail with errDuplicateSlot if another active appointment
	// holds the same slot, regardless of any lock held by the caller.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare and swap on status. It returns
	// ErrAppointmentNotFound when the row is missing or no longer in from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, actorID string, at time.Time) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
