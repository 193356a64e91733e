package conversation

import (
	"errors"
	"fmt"
)

// State is the position of a session in the booking dialogue.
type State string

const (
	StateAwaitingIntent      State = "AWAITING_INTENT"
	StateSlotsOffered        State = "SLOTS_OFFERED"
	StateConfirmationPending State = "CONFIRMATION_PENDING"
	StateBooked              State = "BOOKED"
	StateError               State = "ERROR"
)

// ErrIllegalTransition is returned when a state change is not in the
// transition table.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateAwaitingIntent: {
		StateAwaitingIntent, StateSlotsOffered, StateError,
	},
	StateSlotsOffered: {
		StateSlotsOffered, StateAwaitingIntent, StateConfirmationPending, StateError,
	},
	StateConfirmationPending: {
		StateConfirmationPending, StateSlotsOffered, StateAwaitingIntent, StateBooked, StateError,
	},
	StateBooked: {StateAwaitingIntent, StateError},
	StateError:  {StateAwaitingIntent},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *Session) transition(to State) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, to)
	}
	s.State = to
	return nil
}

// InvalidSelectionError means the user picked a slot number that is not
// on offer.
type InvalidSelectionError struct {
	Index     int
	Available int
}

func (e *InvalidSelectionError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("slot %d selected but no slots are on offer", e.Index)
	}
	return fmt.Sprintf("slot %d selected, choose between 1 and %d", e.Index, e.Available)
}
