package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teemow/tailortalk/internal/booking"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/dates"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  string
		input bool
	}{
		{name: "parse", err: &dates.ParseError{Input: "blorp"}, want: `couldn't understand "blorp"`, input: true},
		{name: "past", err: &dates.PastDateError{Input: "yesterday"}, want: "in the past", input: true},
		{name: "ambiguous", err: &dates.AmbiguousDateError{Input: "3/4", Candidates: []string{"3 April", "March 4"}}, want: "3 April or March 4", input: true},
		{name: "invalid", err: &dates.InvalidDateError{Input: "feb 30", Reason: "February has no day 30"}, want: "February has no day 30", input: true},
		{name: "zone", err: &dates.UnknownZoneError{Name: "Mars"}, want: `timezone "Mars"`, input: true},
		{name: "intent", err: &UnrecognizedIntentError{Capability: "x"}, want: "didn't catch that", input: true},
		{name: "selection", err: &conversation.InvalidSelectionError{Index: 9, Available: 3}, want: "between 1 and 3", input: true},
		{name: "selection nothing offered", err: &conversation.InvalidSelectionError{Index: 1}, want: "no slots on offer", input: true},
		{name: "illegal transition", err: fmt.Errorf("%w: x", conversation.ErrIllegalTransition), want: "doesn't fit", input: true},
		{name: "auth", err: &calendar.AuthExpiredError{Err: errors.New("revoked")}, want: "reconnect"},
		{name: "auth inside booking failure", err: &booking.BookingFailedError{Err: &calendar.AuthExpiredError{}}, want: "reconnect"},
		{name: "rate limited", err: &calendar.RateLimitedError{RetryAfter: time.Second}, want: "rate limiting"},
		{name: "conflict", err: &booking.ConflictError{}, want: "just taken"},
		{name: "unconfirmed", err: &booking.BookingUnconfirmedError{EventID: "e"}, want: "check your calendar"},
		{name: "failed", err: &booking.BookingFailedError{Err: errors.New("boom")}, want: "couldn't create the booking"},
		{name: "deadline", err: fmt.Errorf("list: %w", context.DeadlineExceeded), want: "too long"},
		{name: "other", err: errors.New("boom"), want: "went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, renderError(tt.err), tt.want)
			assert.Equal(t, tt.input, isInputError(tt.err))
		})
	}
}
