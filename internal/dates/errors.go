package dates

import (
	"fmt"
	"strings"
	"time"
)

// ParseError means the text could not be understood as a date or time.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not understand date %q", e.Input)
}

// AmbiguousDateError means the text has more than one plausible reading.
type AmbiguousDateError struct {
	Input      string
	Candidates []string
}

func (e *AmbiguousDateError) Error() string {
	return fmt.Sprintf("date %q is ambiguous: %s", e.Input, strings.Join(e.Candidates, " or "))
}

// InvalidDateError means the text names a date that does not exist.
type InvalidDateError struct {
	Input  string
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %s", e.Input, e.Reason)
}

// PastDateError means the text resolved to a time before the reference instant.
type PastDateError struct {
	Input    string
	Resolved time.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("date %q resolved to %s, which is in the past", e.Input, e.Resolved.Format(time.RFC3339))
}

// UnknownZoneError means a timezone name is neither IANA nor a known abbreviation.
type UnknownZoneError struct {
	Name string
}

func (e *UnknownZoneError) Error() string {
	return fmt.Sprintf("unknown timezone %q", e.Name)
}
