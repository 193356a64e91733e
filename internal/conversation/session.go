// Package conversation holds the per-session booking dialogue: the state
// machine, the session record and the store contract used to persist it.
//
// A Session is mutated only inside Store.Update, which serialises all
// read-modify-write cycles on the same session id.
package conversation

import (
	"fmt"
	"time"

	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/dates"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in the session history.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is the persisted state of one conversation.
type Session struct {
	ID       string `json:"id"`
	State    State  `json:"state"`
	Timezone string `json:"timezone"`

	History []Turn `json:"history,omitempty"`
	// Slots is the most recent offer, in display order.
	Slots    []availability.Slot `json:"slots,omitempty"`
	Selected *availability.Slot  `json:"selected,omitempty"`

	PendingTitle       string `json:"pending_title,omitempty"`
	PendingDescription string `json:"pending_description,omitempty"`
	LastEventID        string `json:"last_event_id,omitempty"`
	LastError          string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a fresh session awaiting intent.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateAwaitingIntent,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.History = append([]Turn(nil), s.History...)
	c.Slots = append([]availability.Slot(nil), s.Slots...)
	if s.Selected != nil {
		sel := *s.Selected
		c.Selected = &sel
	}
	return &c
}

// OfferSlots replaces the offer list. An empty offer returns the session
// to AWAITING_INTENT.
func (s *Session) OfferSlots(slots []availability.Slot) error {
	to := StateSlotsOffered
	if len(slots) == 0 {
		to = StateAwaitingIntent
	}
	if err := s.transition(to); err != nil {
		return err
	}
	s.Slots = make([]availability.Slot, len(slots))
	for i, slot := range slots {
		s.Slots[i] = slot.In(s.zone())
	}
	s.Selected = nil
	return nil
}

// Select picks the 1-based slot n for confirmation. On error the state is
// unchanged.
func (s *Session) Select(n int) (availability.Slot, error) {
	if n < 1 || n > len(s.Slots) {
		return availability.Slot{}, &InvalidSelectionError{Index: n, Available: len(s.Slots)}
	}
	if err := s.transition(StateConfirmationPending); err != nil {
		return availability.Slot{}, err
	}
	slot := s.Slots[n-1]
	s.Selected = &slot
	return slot, nil
}

// SetPending stores the meeting details collected before confirmation.
// Empty values keep what was collected earlier.
func (s *Session) SetPending(title, description string) {
	if title != "" {
		s.PendingTitle = title
	}
	if description != "" {
		s.PendingDescription = description
	}
}

// Decline drops the pending selection and goes back to the offer list.
func (s *Session) Decline() error {
	if s.State != StateConfirmationPending {
		return fmt.Errorf("%w: decline in %s", ErrIllegalTransition, s.State)
	}
	if err := s.transition(StateSlotsOffered); err != nil {
		return err
	}
	s.Selected = nil
	return nil
}

// MarkBooked records the created event and clears the offer.
func (s *Session) MarkBooked(eventID string) error {
	if err := s.transition(StateBooked); err != nil {
		return err
	}
	s.LastEventID = eventID
	s.LastError = ""
	s.clearOffer()
	return nil
}

// Fail moves the session to ERROR. The offer is dropped since the calendar
// may have changed underneath it.
func (s *Session) Fail(err error) {
	s.State = StateError
	if err != nil {
		s.LastError = err.Error()
	}
	s.clearOffer()
}

// Settle folds BOOKED and ERROR back to AWAITING_INTENT. It runs at the
// end of every turn, so those states are visible for exactly one response.
func (s *Session) Settle() {
	if s.State == StateBooked || s.State == StateError {
		s.State = StateAwaitingIntent
	}
}

// ChangeTimezone sets the display zone and re-zones any offered slots.
// The state does not change.
func (s *Session) ChangeTimezone(zone string) error {
	canonical, err := dates.CanonicalZone(zone)
	if err != nil {
		return err
	}
	s.Timezone = canonical
	for i := range s.Slots {
		s.Slots[i] = s.Slots[i].In(canonical)
	}
	if s.Selected != nil {
		sel := s.Selected.In(canonical)
		s.Selected = &sel
	}
	return nil
}

// AppendTurn adds a message and trims history to the newest limit turns.
// A limit <= 0 keeps everything.
func (s *Session) AppendTurn(role, content string, at time.Time, limit int) {
	s.History = append(s.History, Turn{Role: role, Content: content, At: at.UTC()})
	if limit > 0 && len(s.History) > limit {
		s.History = append([]Turn(nil), s.History[len(s.History)-limit:]...)
	}
}

// RecentHistory returns at most n of the newest turns.
func (s *Session) RecentHistory(n int) []Turn {
	if n <= 0 || n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

func (s *Session) clearOffer() {
	s.Slots = nil
	s.Selected = nil
	s.PendingTitle = ""
	s.PendingDescription = ""
}

func (s *Session) zone() string {
	if s.Timezone == "" {
		return "UTC"
	}
	return s.Timezone
}
