package booking

import (
	"fmt"

	"github.com/teemow/tailortalk/internal/calendar"
)

// ConflictError means the slot is no longer free.
type ConflictError struct {
	Slot      calendar.TimeRange
	Conflicts []calendar.TimeRange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s-%s overlaps %d busy interval(s)",
		e.Slot.Start.Format("2006-01-02 15:04"), e.Slot.End.Format("15:04 MST"), len(e.Conflicts))
}

// BookingFailedError means the provider rejected or never received the
// insert. The cause stays reachable with errors.As.
type BookingFailedError struct {
	Err error
}

func (e *BookingFailedError) Error() string {
	return fmt.Sprintf("booking failed: %v", e.Err)
}

func (e *BookingFailedError) Unwrap() error { return e.Err }

// BookingUnconfirmedError means the insert returned but the event could
// not be read back.
type BookingUnconfirmedError struct {
	EventID string
	Err     error
}

func (e *BookingUnconfirmedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("booking %s unconfirmed: %v", e.EventID, e.Err)
	}
	return fmt.Sprintf("booking %s unconfirmed: event not found after insert", e.EventID)
}

func (e *BookingUnconfirmedError) Unwrap() error { return e.Err }
