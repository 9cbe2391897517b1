package availability

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("availability not found")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrMissingTimeRange = errors.New("time range is required when available")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTime      = errors.New("invalid time")
	ErrInvalidWeekday   = errors.New("invalid weekday")
	ErrInvalidDuration  = errors.New("invalid appointment duration")
	ErrInvalidID        = errors.New("invalid identifier")
)

// ValidationError names the offending field. It unwraps to one of the
// sentinels above.
type ValidationError struct {
	Field string
	Err   error
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Msg)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error, format string, args ...any) error {
	return &ValidationError{Field: field, Err: err, Msg: fmt.Sprintf(format, args...)}
}
