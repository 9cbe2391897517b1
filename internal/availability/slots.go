package availability

import "time"

// ResolveEffectiveRange returns the single range governing date, or false
// when the doctor is unavailable. Layers are checked highest priority first:
//
//  1. exceptions: an unavailable exception blocks the date; an available one
//     has no hours of its own and falls through.
//  2. specificDates: authoritative, never falls through.
//  3. weeklyTemplate keyed by the date's weekday.
func ResolveEffectiveRange(rec *Record, date time.Time) (TimeRange, bool) {
	if rec == nil {
		return TimeRange{}, false
	}
	key := date.Format(DateLayout)

	if ex, ok := rec.exception(key); ok && !ex.IsAvailable {
		return TimeRange{}, false
	}

	if sd, ok := rec.specificDate(key); ok {
		if !sd.IsAvailable || sd.TimeRange == nil {
			return TimeRange{}, false
		}
		return *sd.TimeRange, true
	}

	tr, ok := rec.WeeklyTemplate[date.Weekday()]
	return tr, ok
}

// GenerateSlots discretizes [StartTime, EndTime) into durationMinutes steps.
// A trailing remainder shorter than durationMinutes is dropped. Every slot
// is reported available; callers subtract bookings.
func GenerateSlots(tr TimeRange, durationMinutes int) []Slot {
	if durationMinutes <= 0 {
		return []Slot{}
	}
	start, err := ParseClock(tr.StartTime)
	if err != nil {
		return []Slot{}
	}
	end, err := ParseClock(tr.EndTime)
	if err != nil || end <= start {
		return []Slot{}
	}

	count := (end - start) / durationMinutes
	slots := make([]Slot, 0, count)
	for i := 0; i < count; i++ {
		slots = append(slots, Slot{
			Time:      FormatClock(start + i*durationMinutes),
			Available: true,
		})
	}
	return slots
}

// SlotsForDate composes ResolveEffectiveRange and GenerateSlots.
func SlotsForDate(rec *Record, date time.Time) []Slot {
	tr, ok := ResolveEffectiveRange(rec, date)
	if !ok {
		return []Slot{}
	}
	return GenerateSlots(tr, rec.AppointmentDurationMinutes)
}

// HasSlot reports whether clock is a slot start on date.
func HasSlot(rec *Record, date time.Time, clock string) bool {
	for _, s := range SlotsForDate(rec, date) {
		if s.Time == clock {
			return true
		}
	}
	return false
}
