package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Event
	byKey  map[eventKey]uuid.UUID
	nowFor func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]*Event),
		byKey:  make(map[eventKey]uuid.UUID),
		nowFor: time.Now,
	}
}

func cloneEvent(e *Event) Event {
	out := *e
	if e.SentAt != nil {
		t := *e.SentAt
		out.SentAt = &t
	}
	return out
}

func (r *MemoryRepository) CreateEvents(_ context.Context, events []Event) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFor()
	created := make([]Event, 0, len(events))
	for i := range events {
		ev := events[i]
		if _, exists := r.byKey[ev.key()]; exists {
			continue
		}
		ev.ID = uuid.New()
		ev.CreatedAt = now
		ev.UpdatedAt = now

		r.byID[ev.ID] = &ev
		r.byKey[ev.key()] = ev.ID
		created = append(created, cloneEvent(&ev))
	}
	return created, nil
}

func (r *MemoryRepository) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Event{}
	for _, ev := range r.byID {
		if ev.AppointmentID == appointmentID {
			out = append(out, cloneEvent(ev))
		}
	}
	sortEvents(out)
	return out, nil
}

func (r *MemoryRepository) ListDue(_ context.Context, now time.Time, limit int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var due []Event
	for _, ev := range r.byID {
		if ev.Status == StatusPending && !ev.ScheduledFor.After(now) {
			due = append(due, cloneEvent(ev))
		}
	}
	sortEvents(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryRepository) MarkResult(_ context.Context, id uuid.UUID, status Status, reason string, at time.Time) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.byID[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if ev.Status != StatusPending {
		return nil, ErrEventNotPending
	}

	ev.Status = status
	ev.FailureReason = reason
	ev.UpdatedAt = at
	if status == StatusSent {
		ev.SentAt = &at
	}
	out := cloneEvent(ev)
	return &out, nil
}

func (r *MemoryRepository) CancelPending(_ context.Context, appointmentID uuid.UUID, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.byID {
		if ev.AppointmentID == appointmentID && ev.Status == StatusPending {
			ev.Status = StatusCancelled
			ev.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func sortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].ScheduledFor.Equal(events[j].ScheduledFor) {
			return events[i].ScheduledFor.Before(events[j].ScheduledFor)
		}
		return events[i].Channel < events[j].Channel
	})
}
