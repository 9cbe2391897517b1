package availability

import (
	"sort"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	MaxDurationMinutes = 240
)

// TimeRange is a half open [StartTime, EndTime) window in 24h HH:MM.
type TimeRange struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// WeeklyTemplate maps a weekday (0 = Sunday) to the hours worked that day.
// A missing weekday means no recurring availability.
type WeeklyTemplate map[time.Weekday]TimeRange

// SpecificDate replaces the weekly template for one calendar date.
type SpecificDate struct {
	Date        string     `json:"date"`
	IsAvailable bool       `json:"isAvailable"`
	TimeRange   *TimeRange `json:"timeRange,omitempty"`
}

// Exception blocks a date ad hoc. An exception with IsAvailable set carries
// no hours and defers to the lower layers.
type Exception struct {
	Date        string `json:"date"`
	IsAvailable bool   `json:"isAvailable"`
	Reason      string `json:"reason,omitempty"`
}

// Record is the availability of one doctor at one hospital.
type Record struct {
	DoctorID                   string         `json:"doctorId"`
	HospitalID                 string         `json:"hospitalId"`
	WeeklyTemplate             WeeklyTemplate `json:"weeklyTemplate"`
	SpecificDates              []SpecificDate `json:"specificDates"`
	Exceptions                 []Exception    `json:"exceptions"`
	AppointmentDurationMinutes int            `json:"appointmentDurationMinutes"`
	CreatedAt                  time.Time      `json:"createdAt"`
	UpdatedAt                  time.Time      `json:"updatedAt"`
}

// Slot is one bookable unit labelled by its start time.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

func (r *Record) specificDate(date string) (SpecificDate, bool) {
	for _, sd := range r.SpecificDates {
		if sd.Date == date {
			return sd, true
		}
	}
	return SpecificDate{}, false
}

func (r *Record) exception(date string) (Exception, bool) {
	for _, ex := range r.Exceptions {
		if ex.Date == date {
			return ex, true
		}
	}
	return Exception{}, false
}

// Clone returns a deep copy so callers can't mutate stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r

	out.WeeklyTemplate = make(WeeklyTemplate, len(r.WeeklyTemplate))
	for d, tr := range r.WeeklyTemplate {
		out.WeeklyTemplate[d] = tr
	}

	out.SpecificDates = make([]SpecificDate, len(r.SpecificDates))
	for i, sd := range r.SpecificDates {
		if sd.TimeRange != nil {
			tr := *sd.TimeRange
			sd.TimeRange = &tr
		}
		out.SpecificDates[i] = sd
	}

	out.Exceptions = append([]Exception(nil), r.Exceptions...)
	if out.Exceptions == nil {
		out.Exceptions = []Exception{}
	}
	return &out
}

func sortSpecificDates(entries []SpecificDate) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
}

func sortExceptions(entries []Exception) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
}

// newRecord is the shape created on the first save for a doctor/hospital pair.
func newRecord(doctorID, hospitalID string, durationMinutes int, now time.Time) *Record {
	return &Record{
		DoctorID:                   doctorID,
		HospitalID:                 hospitalID,
		WeeklyTemplate:             WeeklyTemplate{},
		SpecificDates:              []SpecificDate{},
		Exceptions:                 []Exception{},
		AppointmentDurationMinutes: durationMinutes,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}
