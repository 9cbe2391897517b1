package availability

import (
	"strings"
	"time"
)

// ParseDate parses a YYYY-MM-DD calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil || d.Format(DateLayout) != s {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ParseClock converts a zero padded HH:MM into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrInvalidTime
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format(ClockLayout)
}

// Validate checks both ends parse and StartTime < EndTime. With the strict
// HH:MM format the lexicographic and numeric orders agree.
func (tr TimeRange) Validate(field string) error {
	if _, err := ParseClock(tr.StartTime); err != nil {
		return invalid(field+".startTime", ErrInvalidTime, "%q is not HH:MM", tr.StartTime)
	}
	if _, err := ParseClock(tr.EndTime); err != nil {
		return invalid(field+".endTime", ErrInvalidTime, "%q is not HH:MM", tr.EndTime)
	}
	if tr.StartTime >= tr.EndTime {
		return invalid(field, ErrInvalidRange, "startTime %s must be before endTime %s", tr.StartTime, tr.EndTime)
	}
	return nil
}

func (t WeeklyTemplate) Validate() error {
	for day, tr := range t {
		if day < time.Sunday || day > time.Saturday {
			return invalid("weeklyTemplate", ErrInvalidWeekday, "weekday %d is outside 0-6", int(day))
		}
		if err := tr.Validate("weeklyTemplate." + strings.ToLower(day.String())); err != nil {
			return err
		}
	}
	return nil
}

func validateIDs(doctorID, hospitalID string) error {
	if strings.TrimSpace(doctorID) == "" {
		return invalid("doctorId", ErrInvalidID, "must not be empty")
	}
	if strings.TrimSpace(hospitalID) == "" {
		return invalid("hospitalId", ErrInvalidID, "must not be empty")
	}
	return nil
}

func validateDate(date string) error {
	if _, err := ParseDate(date); err != nil {
		return invalid("date", ErrInvalidDate, "%q is not YYYY-MM-DD", date)
	}
	return nil
}

func validateDuration(minutes int) error {
	if minutes <= 0 || minutes > MaxDurationMinutes {
		return invalid("appointmentDurationMinutes", ErrInvalidDuration, "must be between 1 and %d", MaxDurationMinutes)
	}
	return nil
}
