package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/oracle"
)

// UnrecognizedIntentError means the oracle picked no capability, one
// outside the fixed set, or arguments that do not fit its schema.
type UnrecognizedIntentError struct {
	Capability string
	Reason     string
}

func (e *UnrecognizedIntentError) Error() string {
	if e.Capability == "" {
		return "unrecognized intent: " + e.Reason
	}
	return fmt.Sprintf("unrecognized intent %q: %s", e.Capability, e.Reason)
}

// Command is one validated capability invocation.
type Command interface {
	Capability() string
}

// SearchSlots looks for free slots on Date.
type SearchSlots struct {
	Date            string `json:"date"`
	DurationMinutes int    `json:"duration_minutes"`
}

// ListEvents lists events for Days days starting at Date.
type ListEvents struct {
	Date string `json:"date"`
	Days int    `json:"days"`
}

// BookMeeting selects a slot and/or answers the confirmation prompt.
type BookMeeting struct {
	SlotNumber  int    `json:"slot_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Confirmed   *bool  `json:"confirmed"`
}

// OpenCalendarLink returns a link to the calendar web UI.
type OpenCalendarLink struct {
	View string `json:"view"`
	Date string `json:"date"`
}

// GetCurrentTime tells the time in the session zone.
type GetCurrentTime struct{}

// ChangeTimezone switches the session display zone.
type ChangeTimezone struct {
	Timezone string `json:"timezone"`
}

func (SearchSlots) Capability() string      { return oracle.SearchSlots }
func (ListEvents) Capability() string       { return oracle.ListEvents }
func (BookMeeting) Capability() string      { return oracle.BookMeeting }
func (OpenCalendarLink) Capability() string { return oracle.OpenCalendarLink }
func (GetCurrentTime) Capability() string   { return oracle.GetCurrentTime }
func (ChangeTimezone) Capability() string   { return oracle.ChangeTimezone }

// Decode validates an oracle decision into a Command. Unknown names,
// unknown fields, wrong types and out-of-range values are rejected.
func Decode(d oracle.Decision) (Command, error) {
	switch d.Capability {
	case oracle.SearchSlots:
		var c SearchSlots
		if err := strictUnmarshal(d.Arguments, &c); err != nil {
			return nil, unrecognized(d, err.Error())
		}
		if c.DurationMinutes != 0 && (c.DurationMinutes < 5 || c.DurationMinutes > 480) {
			return nil, unrecognized(d, "duration_minutes must be between 5 and 480")
		}
		return c, nil
	case oracle.ListEvents:
		var c ListEvents
		if err := strictUnmarshal(d.Arguments, &c); err != nil {
			return nil, unrecognized(d, err.Error())
		}
		if c.Days < 0 || c.Days > 31 {
			return nil, unrecognized(d, "days must be between 0 (default) and 31")
		}
		return c, nil
	case oracle.BookMeeting:
		var c BookMeeting
		if err := strictUnmarshal(d.Arguments, &c); err != nil {
			return nil, unrecognized(d, err.Error())
		}
		if c.SlotNumber < 0 {
			return nil, unrecognized(d, "slot_number must be positive")
		}
		return c, nil
	case oracle.OpenCalendarLink:
		var c OpenCalendarLink
		if err := strictUnmarshal(d.Arguments, &c); err != nil {
			return nil, unrecognized(d, err.Error())
		}
		switch c.View {
		case "", calendar.ViewDay, calendar.ViewWeek, calendar.ViewMonth, calendar.ViewAgenda:
		default:
			return nil, unrecognized(d, fmt.Sprintf("unknown view %q", c.View))
		}
		return c, nil
	case oracle.GetCurrentTime:
		var c GetCurrentTime
		if err := strictUnmarshal(d.Arguments, &c); err != nil {
			return nil, unrecognized(d, err.Error())
		}
		return c, nil
	case oracle.ChangeTimezone:
		var c ChangeTimezone
		if err := strictUnmarshal(d.Arguments, &c); err != nil {
			return nil, unrecognized(d, err.Error())
		}
		if c.Timezone == "" {
			return nil, unrecognized(d, "timezone is required")
		}
		return c, nil
	case "":
		return nil, &UnrecognizedIntentError{Reason: "no capability chosen"}
	default:
		return nil, unrecognized(d, "not a known capability")
	}
}

func unrecognized(d oracle.Decision, reason string) *UnrecognizedIntentError {
	return &UnrecognizedIntentError{Capability: d.Capability, Reason: reason}
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after arguments")
	}
	return nil
}
