package availability

import "context"

// Repository persists one Record per (doctor, hospital) pair. Upserts create
// the record on first write using defaultDuration.
type Repository interface {
	Get(ctx context.Context, doctorID, hospitalID string) (*Record, error)

	// Full replace of the weekly template. durationMinutes of 0 keeps the
	// stored value (or defaultDuration for a new record).
	SaveWeeklyTemplate(ctx context.Context, doctorID, hospitalID string, tpl WeeklyTemplate, durationMinutes, defaultDuration int) (*Record, error)

	UpsertSpecificDate(ctx context.Context, doctorID, hospitalID string, entry SpecificDate, defaultDuration int) (*Record, error)
	RemoveSpecificDate(ctx context.Context, doctorID, hospitalID, date string) (*Record, error)

	UpsertException(ctx context.Context, doctorID, hospitalID string, entry Exception, defaultDuration int) (*Record, error)
	RemoveException(ctx context.Context, doctorID, hospitalID, date string) (*Record, error)
}
