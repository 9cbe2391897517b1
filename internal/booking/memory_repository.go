package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository enforces the one active appointment per slot rule with
// an index checked and written under the same lock.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Appointment
	active map[SlotKey]uuid.UUID
	events []EventLog
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]*Appointment),
		active: make(map[SlotKey]uuid.UUID),
		now:    time.Now,
	}
}

func cloneAppointment(a *Appointment) *Appointment {
	out := *a
	out.ReminderPreferences.Intervals = append([]int(nil), a.ReminderPreferences.Intervals...)
	if a.CancelledAt != nil {
		t := *a.CancelledAt
		out.CancelledAt = &t
	}
	if a.CancelledBy != nil {
		s := *a.CancelledBy
		out.CancelledBy = &s
	}
	return &out
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(a), nil
}

func (r *MemoryRepository) FindActiveBySlot(_ context.Context, slot SlotKey) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.active[slot]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return cloneAppointment(r.byID[id]), nil
}

func (r *MemoryRepository) ListActiveForDay(_ context.Context, doctorID, hospitalID, date string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for slot, id := range r.active {
		if slot.DoctorID == doctorID && slot.HospitalID == hospitalID && slot.Date == date {
			out = append(out, *cloneAppointment(r.byID[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID string, limit, offset int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []Appointment
	for _, a := range r.byID {
		if a.PatientID == patientID {
			all = append(all, *cloneAppointment(a))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date > all[j].Date
		}
		return all[i].Time > all[j].Time
	})

	if offset >= len(all) {
		return []Appointment{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := appt.Slot()
	if _, taken := r.active[slot]; taken {
		return nil, errDuplicateSlot
	}

	stored := cloneAppointment(appt)
	stored.ID = uuid.New()
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt

	r.byID[stored.ID] = stored
	r.active[slot] = stored.ID
	return cloneAppointment(stored), nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, actorID string, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = at
	if to == StatusCancelled {
		a.CancelledAt = &at
		a.CancelledBy = &actorID
		delete(r.active, a.Slot())
	}
	return cloneAppointment(a), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}
