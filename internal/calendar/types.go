package calendar

import (
	"context"
	"time"
)

// TimeRange is a half-open UTC interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the ranges share an instant. Touching ranges do
// not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Event is a calendar entry as seen through the gateway.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	// TimeZone is the IANA zone the event is displayed in.
	TimeZone string `json:"time_zone,omitempty"`
	AllDay   bool   `json:"all_day,omitempty"`
	Link     string `json:"link,omitempty"`
	// IdempotencyKey is set on events created by a booking.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Range returns the event's time range.
func (e Event) Range() TimeRange {
	return TimeRange{Start: e.Start, End: e.End}
}

// Gateway is the calendar provider boundary.
type Gateway interface {
	// GetBusyIntervals returns the busy periods intersecting window.
	GetBusyIntervals(ctx context.Context, window TimeRange) ([]TimeRange, error)

	// ListEvents returns events intersecting window ordered by start.
	ListEvents(ctx context.Context, window TimeRange) ([]Event, error)

	// InsertEvent creates draft tagged with key. When an event carrying the
	// same key already exists it is returned instead.
	InsertEvent(ctx context.Context, draft Event, key string) (*Event, error)

	// VerifyExists reports whether the event can be read back.
	VerifyExists(ctx context.Context, eventID string) (bool, error)
}

// keyProperty is the private property carrying the idempotency key.
const keyProperty = "tailortalkKey"
