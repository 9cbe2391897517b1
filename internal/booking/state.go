package booking

// transitions lists every legal move. Terminal states have no entry.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal states are immutable once reached.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Active appointments occupy their slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
