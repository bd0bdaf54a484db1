package ledger

import "ms-registration/internal/models"

// The joint state of (event status, ticket counters) forms a small state
// machine. It is kept as pure functions over a Snapshot so the
// transition rules can be tested without a database; the storage layer
// re-enforces the capacity rule with a conditional UPDATE when it
// commits.

// Snapshot is the inventory state of one event at a point in time.
type Snapshot struct {
	EventStatus models.EventStatus
	Available   int
	Sold        int
}

// Phase is the derived state of the registration state machine.
type Phase int

const (
	// PhaseOpenAvailable accepts registrations.
	PhaseOpenAvailable Phase = iota
	// PhaseOpenExhausted is a stale registration_open with no capacity
	// left. It only exists transiently: the next registration attempt
	// corrects the event to registration_closed.
	PhaseOpenExhausted
	// PhaseClosed rejects registrations until a cancellation frees
	// capacity.
	PhaseClosed
	// PhaseDraft and PhaseCompleted are administrative; registration is
	// always rejected.
	PhaseDraft
	PhaseCompleted
)

func (s Snapshot) Phase() Phase {
	switch s.EventStatus {
	case models.EventRegistrationOpen:
		if s.Sold >= s.Available {
			return PhaseOpenExhausted
		}
		return PhaseOpenAvailable
	case models.EventRegistrationClosed:
		return PhaseClosed
	case models.EventCompleted:
		return PhaseCompleted
	default:
		return PhaseDraft
	}
}

// Admit decides whether a registration attempt may proceed. When it may
// not, it also returns the event status the event should be corrected
// to, so a stale open-but-exhausted event is healed on the rejecting
// path.
func Admit(s Snapshot) (models.EventStatus, error) {
	switch s.Phase() {
	case PhaseOpenAvailable:
		return s.EventStatus, nil
	case PhaseOpenExhausted:
		return models.EventRegistrationClosed, ErrSoldOut
	default:
		return s.EventStatus, ErrRegistrationNotOpen
	}
}

// AfterRegister returns the event status once a registration has
// incremented the sold counter: the sale that takes the last ticket
// closes the event.
func AfterRegister(s Snapshot) models.EventStatus {
	if s.Sold+1 >= s.Available {
		return models.EventRegistrationClosed
	}
	return s.EventStatus
}

// AfterCancel returns the event status once a cancellation has
// decremented the sold counter: an event closed by exhaustion reopens
// when capacity comes back. Administrative states are left alone.
func AfterCancel(s Snapshot) models.EventStatus {
	if s.EventStatus == models.EventRegistrationClosed && s.Available > s.Sold-1 {
		return models.EventRegistrationOpen
	}
	return s.EventStatus
}
