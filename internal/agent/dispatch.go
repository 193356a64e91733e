package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/booking"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/dates"
)

func (a *Agent) dispatch(ctx context.Context, s *conversation.Session, cmd Command) (string, error) {
	switch c := cmd.(type) {
	case SearchSlots:
		return a.searchSlots(ctx, s, c)
	case ListEvents:
		return a.listEvents(ctx, s, c)
	case BookMeeting:
		return a.bookMeeting(ctx, s, c)
	case OpenCalendarLink:
		return a.openCalendarLink(s, c)
	case GetCurrentTime:
		now := dates.At(a.now(), s.Timezone)
		return fmt.Sprintf("It's %s, %s (%s).", now.Format(dayLayout), now.Format("15:04"), s.Timezone), nil
	case ChangeTimezone:
		return a.changeTimezone(s, c)
	default:
		return "", &UnrecognizedIntentError{Capability: cmd.Capability(), Reason: "no handler"}
	}
}

func (a *Agent) searchSlots(ctx context.Context, s *conversation.Session, c SearchSlots) (string, error) {
	now := a.now()
	var window dates.DateRange
	if c.Date == "" {
		today := startOfDay(now.In(dates.MustLoadZone(s.Timezone)))
		window = dates.DateRange{
			Start: dates.At(today, s.Timezone),
			End:   dates.At(today.AddDate(0, 0, a.cfg.SearchDays), s.Timezone),
		}
	} else {
		res, err := dates.Resolve(c.Date, now, s.Timezone)
		if err != nil {
			return "", err
		}
		window = res.Window()
	}
	if window.Start.UTC.Before(now) {
		window.Start = dates.At(now, s.Timezone)
	}

	duration := a.cfg.Policy.DefaultDuration
	if c.DurationMinutes > 0 {
		duration = time.Duration(c.DurationMinutes) * time.Minute
	}

	busy, err := a.gateway.GetBusyIntervals(ctx, calendar.TimeRange{Start: window.Start.UTC, End: window.End.UTC})
	if err != nil {
		return "", err
	}
	intervals := make([]availability.Interval, len(busy))
	for i, b := range busy {
		intervals[i] = availability.Interval{Start: b.Start, End: b.End}
	}

	slots, err := availability.FindSlots(intervals, a.cfg.Policy, availability.Interval{Start: window.Start.UTC, End: window.End.UTC}, duration)
	if err != nil {
		return "", err
	}
	if err := s.OfferSlots(slots); err != nil {
		return "", err
	}

	minutes := int(duration / time.Minute)
	if len(slots) == 0 {
		return fmt.Sprintf("I couldn't find a free %d-minute slot %s. Would another day work?", minutes, describeWindow(window, s.Timezone)), nil
	}
	return fmt.Sprintf("Here are free %d-minute slots %s:%s\nReply with a slot number to book it.",
		minutes, describeWindow(window, s.Timezone), formatSlots(s.Slots)), nil
}

func (a *Agent) listEvents(ctx context.Context, s *conversation.Session, c ListEvents) (string, error) {
	now := a.now()
	loc := dates.MustLoadZone(s.Timezone)

	var start, end time.Time
	if c.Date == "" {
		start = startOfDay(now.In(loc))
		end = start.AddDate(0, 0, 1)
	} else {
		res, err := dates.Resolve(c.Date, now, s.Timezone)
		var past *dates.PastDateError
		switch {
		case err == nil:
			w := res.Window()
			start, end = w.Start.Local(), w.End.Local()
			if res.Kind == dates.KindInstant {
				start = startOfDay(start)
			}
		case errors.As(err, &past):
			// Listing may look back; only searching and booking need the future.
			start = startOfDay(past.Resolved.In(loc))
			end = start.AddDate(0, 0, 1)
		default:
			return "", err
		}
	}
	if c.Days > 0 {
		end = start.AddDate(0, 0, c.Days)
	}

	events, err := a.gateway.ListEvents(ctx, calendar.TimeRange{Start: start.UTC(), End: end.UTC()})
	if err != nil {
		return "", err
	}
	span := describeWindow(dates.DateRange{Start: dates.At(start, s.Timezone), End: dates.At(end, s.Timezone)}, s.Timezone)
	if len(events) == 0 {
		return fmt.Sprintf("Your calendar is clear %s.", span), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d event(s) %s:", len(events), span)
	for _, ev := range events {
		b.WriteString("\n- " + formatEvent(ev, s.Timezone))
	}
	return b.String(), nil
}

func (a *Agent) bookMeeting(ctx context.Context, s *conversation.Session, c BookMeeting) (string, error) {
	if c.SlotNumber > 0 {
		if _, err := s.Select(c.SlotNumber); err != nil {
			return "", err
		}
		s.SetPending(c.Title, c.Description)
		if c.Confirmed != nil && *c.Confirmed {
			return a.book(ctx, s)
		}
		return confirmationPrompt(s), nil
	}

	if s.State != conversation.StateConfirmationPending {
		if len(s.Slots) > 0 {
			return fmt.Sprintf("Which slot would you like? Reply with a number from 1 to %d.", len(s.Slots)), nil
		}
		return "There's nothing to book yet. Tell me when you'd like to meet and I'll look for free slots.", nil
	}

	s.SetPending(c.Title, c.Description)
	switch {
	case c.Confirmed == nil:
		return confirmationPrompt(s), nil
	case !*c.Confirmed:
		if err := s.Decline(); err != nil {
			return "", err
		}
		return "No problem, I won't book that one. Here are the options again:" + formatSlots(s.Slots), nil
	default:
		return a.book(ctx, s)
	}
}

func (a *Agent) book(ctx context.Context, s *conversation.Session) (string, error) {
	if now := a.now(); !s.Selected.Start.UTC.After(now) {
		return a.reofferUpcoming(s, now)
	}
	res, err := a.booking.Book(ctx, booking.Request{
		SessionID:   s.ID,
		Slot:        *s.Selected,
		Title:       s.PendingTitle,
		Description: s.PendingDescription,
	})
	if err != nil {
		return "", err
	}
	slot := s.Selected.In(s.Timezone)
	if err := s.MarkBooked(res.Event.ID); err != nil {
		return "", err
	}

	var b strings.Builder
	if res.Replayed {
		fmt.Fprintf(&b, "That meeting is already booked: %q on %s.", res.Event.Title, formatSlot(slot))
	} else {
		fmt.Fprintf(&b, "Booked %q on %s.", res.Event.Title, formatSlot(slot))
	}
	if res.Event.Link != "" {
		b.WriteString(" " + res.Event.Link)
	}
	return b.String(), nil
}

// reofferUpcoming drops offered slots that have already started.
func (a *Agent) reofferUpcoming(s *conversation.Session, now time.Time) (string, error) {
	var upcoming []availability.Slot
	for _, slot := range s.Slots {
		if slot.Start.UTC.After(now) {
			upcoming = append(upcoming, slot)
		}
	}
	if err := s.OfferSlots(upcoming); err != nil {
		return "", err
	}
	if len(upcoming) == 0 {
		return "That slot has already started, so I didn't book it. Tell me when you'd like to meet and I'll look again.", nil
	}
	return "That slot has already started, so I didn't book it. These are still open:" + formatSlots(s.Slots), nil
}

func (a *Agent) openCalendarLink(s *conversation.Session, c OpenCalendarLink) (string, error) {
	day := a.now().In(dates.MustLoadZone(s.Timezone))
	if c.Date != "" {
		res, err := dates.Resolve(c.Date, a.now(), s.Timezone)
		if err != nil {
			return "", err
		}
		day = res.Instant().Local()
	}
	link, err := calendar.CalendarLink(c.View, day)
	if err != nil {
		return "", &UnrecognizedIntentError{Capability: c.Capability(), Reason: err.Error()}
	}
	return "Here's your calendar: " + link, nil
}

func (a *Agent) changeTimezone(s *conversation.Session, c ChangeTimezone) (string, error) {
	if err := s.ChangeTimezone(c.Timezone); err != nil {
		return "", err
	}
	text := fmt.Sprintf("Got it, I'll show times in %s.", s.Timezone)
	switch {
	case s.State == conversation.StateConfirmationPending && s.Selected != nil:
		text += " " + confirmationPrompt(s)
	case len(s.Slots) > 0:
		text += " Your options are now:" + formatSlots(s.Slots)
	}
	return text, nil
}

func confirmationPrompt(s *conversation.Session) string {
	title := s.PendingTitle
	if title == "" {
		title = booking.DefaultTitle
	}
	return fmt.Sprintf("Shall I book %q on %s? (yes/no)", title, formatSlot(*s.Selected))
}

// describeWindow renders a search window for the reply text.
func describeWindow(w dates.DateRange, zone string) string {
	start := w.Start.In(zone).Local()
	last := w.End.In(zone).Local().Add(-time.Nanosecond)
	if sameDay(start, last) {
		return "on " + start.Format("Monday 2 January")
	}
	return fmt.Sprintf("between %s and %s", start.Format("Mon 2 Jan"), last.Format("Mon 2 Jan"))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
