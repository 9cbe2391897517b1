package booking

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotNotAvailable    = errors.New("slot is not available")
	ErrSlotTaken           = errors.New("slot already booked")
	ErrAlreadyTerminal     = errors.New("appointment is already in a terminal state")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAppointmentStarted  = errors.New("appointment time has already passed")
	ErrAppointmentUpcoming = errors.New("appointment has not started yet")
	ErrInvalidRequest      = errors.New("invalid booking request")

	// errDuplicateSlot is what repositories return when the unique slot
	// constraint rejects an insert.
	errDuplicateSlot = errors.New("duplicate active appointment for slot")
)

// SlotTakenError names the slot another appointment already holds.
type SlotTakenError struct {
	Slot SlotKey
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("slot %s at %s on %s is already booked", e.Slot.Time, e.Slot.HospitalID, e.Slot.Date)
}

func (e *SlotTakenError) Unwrap() error {
	return ErrSlotTaken
}

// SlotNotAvailableError says which requested slot is outside the schedule.
type SlotNotAvailableError struct {
	Slot   SlotKey
	Reason string
}

func (e *SlotNotAvailableError) Error() string {
	return fmt.Sprintf("slot %s on %s is not available: %s", e.Slot.Time, e.Slot.Date, e.Reason)
}

func (e *SlotNotAvailableError) Unwrap() error {
	return ErrSlotNotAvailable
}

// TransitionError carries the attempted move.
type TransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", e.Err, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// ValidationError names the offending request field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}
