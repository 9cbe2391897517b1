package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateEvents stores events, skipping any whose (appointment, channel,
	// offset) already exists. It returns only the rows it inserted.
	CreateEvents(ctx context.Context, events []Event) ([]Event, error)

	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]Event, error)

	// ListDue returns pending events scheduled at or before now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Event, error)

	// MarkResult moves a pending event to sent or failed. ErrEventNotPending
	// means it was cancelled or handled elsewhere in the meantime.
	MarkResult(ctx context.Context, id uuid.UUID, status Status, reason string, at time.Time) (*Event, error)

	CancelPending(ctx context.Context, appointmentID uuid.UUID, at time.Time) (int, error)
}
