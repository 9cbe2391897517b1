package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/hackgods/doctor-availability-scheduling/internal/availability"
	"github.com/hackgods/doctor-availability-scheduling/internal/booking"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeFieldError(w http.ResponseWriter, status int, code, details, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details, Field: field})
}

// decodeJSON rejects unknown fields, trailing data and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("body must contain a single JSON object")
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
}

// writeDomainError maps service errors onto status codes. Unknown errors are
// logged and reported without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		availErr   *availability.ValidationError
		bookingErr *booking.ValidationError
		takenErr   *booking.SlotTakenError
	)

	switch {
	case errors.As(err, &availErr):
		writeFieldError(w, http.StatusBadRequest, "validation_failed", err.Error(), availErr.Field)
	case errors.As(err, &bookingErr):
		writeFieldError(w, http.StatusBadRequest, "validation_failed", bookingErr.Msg, bookingErr.Field)
	case errors.Is(err, availability.ErrInvalidRange),
		errors.Is(err, availability.ErrMissingTimeRange),
		errors.Is(err, availability.ErrInvalidDate),
		errors.Is(err, availability.ErrInvalidTime),
		errors.Is(err, availability.ErrInvalidWeekday),
		errors.Is(err, availability.ErrInvalidDuration),
		errors.Is(err, availability.ErrInvalidID),
		errors.Is(err, booking.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case errors.Is(err, availability.ErrNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())

	case errors.As(err, &takenErr):
		writeFieldError(w, http.StatusConflict, "slot_taken", takenErr.Error(), "time")

	case errors.Is(err, booking.ErrSlotNotAvailable):
		writeFieldError(w, http.StatusUnprocessableEntity, "slot_not_available", err.Error(), "time")
	case errors.Is(err, booking.ErrAlreadyTerminal):
		writeError(w, http.StatusUnprocessableEntity, "already_terminal", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrAppointmentStarted):
		writeError(w, http.StatusUnprocessableEntity, "appointment_started", err.Error())
	case errors.Is(err, booking.ErrAppointmentUpcoming):
		writeError(w, http.StatusUnprocessableEntity, "appointment_not_started", err.Error())

	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
