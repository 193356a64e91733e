package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/booking"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/dates"
)

const (
	slotLayout = "Mon 2 Jan, 15:04"
	endLayout  = "15:04 MST"
	dayLayout  = "Monday 2 January 2006"
)

const oracleUnavailable = "I'm having trouble understanding requests right now. Please try again in a moment."

const capabilitiesHelp = "I can find free slots, list your events, book a meeting, share a calendar link, " +
	"tell you the current time or change your timezone."

// isInputError reports whether err came from what the user said rather
// than from a failing dependency. Input errors leave the state alone.
func isInputError(err error) bool {
	var (
		parseErr     *dates.ParseError
		pastErr      *dates.PastDateError
		ambiguousErr *dates.AmbiguousDateError
		invalidErr   *dates.InvalidDateError
		zoneErr      *dates.UnknownZoneError
		intentErr    *UnrecognizedIntentError
		selectionErr *conversation.InvalidSelectionError
	)
	return errors.As(err, &parseErr) ||
		errors.As(err, &pastErr) ||
		errors.As(err, &ambiguousErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &zoneErr) ||
		errors.As(err, &intentErr) ||
		errors.As(err, &selectionErr) ||
		errors.Is(err, conversation.ErrIllegalTransition)
}

// renderError is the only place errors become user-facing text.
func renderError(err error) string {
	var (
		parseErr       *dates.ParseError
		pastErr        *dates.PastDateError
		ambiguousErr   *dates.AmbiguousDateError
		invalidErr     *dates.InvalidDateError
		zoneErr        *dates.UnknownZoneError
		intentErr      *UnrecognizedIntentError
		selectionErr   *conversation.InvalidSelectionError
		authErr        *calendar.AuthExpiredError
		rateErr        *calendar.RateLimitedError
		conflictErr    *booking.ConflictError
		unconfirmedErr *booking.BookingUnconfirmedError
		failedErr      *booking.BookingFailedError
	)
	switch {
	case errors.As(err, &parseErr):
		return fmt.Sprintf("I couldn't understand %q as a date. Try something like \"tomorrow afternoon\" or \"next Friday\".", parseErr.Input)
	case errors.As(err, &pastErr):
		return fmt.Sprintf("%q is in the past. Which upcoming day works for you?", pastErr.Input)
	case errors.As(err, &ambiguousErr):
		return fmt.Sprintf("%q could mean %s. Which one did you mean?", ambiguousErr.Input, strings.Join(ambiguousErr.Candidates, " or "))
	case errors.As(err, &invalidErr):
		return fmt.Sprintf("%q isn't a valid date (%s). Which day did you mean?", invalidErr.Input, invalidErr.Reason)
	case errors.As(err, &zoneErr):
		return fmt.Sprintf("I don't know the timezone %q. Try an IANA name like Europe/Berlin or an abbreviation like IST.", zoneErr.Name)
	case errors.As(err, &intentErr):
		return "Sorry, I didn't catch that. " + capabilitiesHelp
	case errors.As(err, &selectionErr):
		if selectionErr.Available == 0 {
			return "There are no slots on offer yet. Tell me when you'd like to meet and I'll look for free time."
		}
		return fmt.Sprintf("Please pick a slot number between 1 and %d.", selectionErr.Available)
	case errors.Is(err, conversation.ErrIllegalTransition):
		return "That doesn't fit where we are in the booking. Tell me when you'd like to meet."
	case errors.As(err, &authErr):
		return "I lost access to your calendar. Please reconnect it and try again."
	case errors.As(err, &rateErr):
		return "Your calendar provider is rate limiting requests. Please try again in a minute."
	case errors.As(err, &conflictErr):
		return "That slot was just taken by another event, so I didn't book it. Ask me to search again for fresh options."
	case errors.As(err, &unconfirmedErr):
		return "I sent the booking but couldn't confirm it on your calendar. Please check your calendar before booking again."
	case errors.As(err, &failedErr):
		return "I couldn't create the booking. Please search again and pick a slot."
	case errors.Is(err, context.DeadlineExceeded):
		return "Your calendar took too long to respond. Please try again."
	default:
		return "Something went wrong on my side. Please try again."
	}
}

func formatSlot(s availability.Slot) string {
	return s.Start.Format(slotLayout) + " - " + s.End.Format(endLayout)
}

func formatSlots(slots []availability.Slot) string {
	var b strings.Builder
	for i, s := range slots {
		fmt.Fprintf(&b, "\n%d. %s", i+1, formatSlot(s))
	}
	return b.String()
}

func formatEvent(ev calendar.Event, zone string) string {
	loc := dates.MustLoadZone(zone)
	start, end := ev.Start.In(loc), ev.End.In(loc)
	title := ev.Title
	if title == "" {
		title = "(no title)"
	}
	if ev.AllDay {
		return fmt.Sprintf("%s: %s (all day)", start.Format("Mon 2 Jan"), title)
	}
	return fmt.Sprintf("%s - %s: %s", start.Format(slotLayout), end.Format(endLayout), title)
}
