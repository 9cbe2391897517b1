package availability

import (
	"context"
	"sync"
	"time"
)

type recordKey struct {
	doctorID   string
	hospitalID string
}

// MemoryRepository keeps immutable record snapshots. Writers build a new
// snapshot and swap it in, so readers only hold the lock for a map lookup.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[recordKey]*Record
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[recordKey]*Record),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Get(_ context.Context, doctorID, hospitalID string) (*Record, error) {
	r.mu.RLock()
	rec, ok := r.records[recordKey{doctorID, hospitalID}]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *MemoryRepository) SaveWeeklyTemplate(_ context.Context, doctorID, hospitalID string, tpl WeeklyTemplate, durationMinutes, defaultDuration int) (*Record, error) {
	return r.mutate(doctorID, hospitalID, defaultDuration, true, func(rec *Record) {
		rec.WeeklyTemplate = make(WeeklyTemplate, len(tpl))
		for d, tr := range tpl {
			rec.WeeklyTemplate[d] = tr
		}
		if durationMinutes > 0 {
			rec.AppointmentDurationMinutes = durationMinutes
		}
	})
}

func (r *MemoryRepository) UpsertSpecificDate(_ context.Context, doctorID, hospitalID string, entry SpecificDate, defaultDuration int) (*Record, error) {
	return r.mutate(doctorID, hospitalID, defaultDuration, true, func(rec *Record) {
		for i := range rec.SpecificDates {
			if rec.SpecificDates[i].Date == entry.Date {
				rec.SpecificDates[i] = entry
				return
			}
		}
		rec.SpecificDates = append(rec.SpecificDates, entry)
		sortSpecificDates(rec.SpecificDates)
	})
}

func (r *MemoryRepository) RemoveSpecificDate(_ context.Context, doctorID, hospitalID, date string) (*Record, error) {
	return r.mutate(doctorID, hospitalID, 0, false, func(rec *Record) {
		kept := rec.SpecificDates[:0]
		for _, sd := range rec.SpecificDates {
			if sd.Date != date {
				kept = append(kept, sd)
			}
		}
		rec.SpecificDates = kept
	})
}

func (r *MemoryRepository) UpsertException(_ context.Context, doctorID, hospitalID string, entry Exception, defaultDuration int) (*Record, error) {
	return r.mutate(doctorID, hospitalID, defaultDuration, true, func(rec *Record) {
		for i := range rec.Exceptions {
			if rec.Exceptions[i].Date == entry.Date {
				rec.Exceptions[i] = entry
				return
			}
		}
		rec.Exceptions = append(rec.Exceptions, entry)
		sortExceptions(rec.Exceptions)
	})
}

func (r *MemoryRepository) RemoveException(_ context.Context, doctorID, hospitalID, date string) (*Record, error) {
	return r.mutate(doctorID, hospitalID, 0, false, func(rec *Record) {
		kept := rec.Exceptions[:0]
		for _, ex := range rec.Exceptions {
			if ex.Date != date {
				kept = append(kept, ex)
			}
		}
		rec.Exceptions = kept
	})
}

func (r *MemoryRepository) mutate(doctorID, hospitalID string, defaultDuration int, create bool, fn func(*Record)) (*Record, error) {
	key := recordKey{doctorID, hospitalID}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var next *Record
	if cur, ok := r.records[key]; ok {
		next = cur.Clone()
	} else if create {
		next = newRecord(doctorID, hospitalID, defaultDuration, now)
	} else {
		return nil, ErrNotFound
	}

	fn(next)
	next.UpdatedAt = now
	r.records[key] = next

	return next.Clone(), nil
}
