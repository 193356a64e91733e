package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/teemow/tailortalk/internal/dates"
)

var (
	// ErrInvalidPolicy is returned for policies that violate start < end.
	ErrInvalidPolicy = errors.New("invalid business hours policy")
	// ErrInvalidDuration is returned for non-positive meeting durations.
	ErrInvalidDuration = errors.New("meeting duration must be positive")
)

// Policy is the daily window slots are searched in.
type Policy struct {
	// StartHour and EndHour bound each business day, [StartHour, EndHour).
	StartHour int
	EndHour   int
	// Zone the hours are defined in.
	Zone string
	// DefaultDuration is used when a search does not name one.
	DefaultDuration time.Duration
	// Weekdays are the business days.
	Weekdays []time.Weekday
	// Granularity aligns the first candidate of each free interval.
	Granularity time.Duration
	// MaxCandidates caps the number of slots returned.
	MaxCandidates int
}

// DefaultPolicy is 09:00-17:00 UTC on weekdays with one hour meetings.
func DefaultPolicy() Policy {
	return Policy{
		StartHour:       9,
		EndHour:         17,
		Zone:            "UTC",
		DefaultDuration: time.Hour,
		Weekdays:        []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Granularity:     15 * time.Minute,
		MaxCandidates:   10,
	}
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.StartHour < 0 || p.EndHour > 24 || p.StartHour >= p.EndHour {
		return fmt.Errorf("%w: hours %d-%d", ErrInvalidPolicy, p.StartHour, p.EndHour)
	}
	if _, err := dates.LoadZone(p.Zone); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if len(p.Weekdays) == 0 {
		return fmt.Errorf("%w: no business days", ErrInvalidPolicy)
	}
	if p.MaxCandidates <= 0 {
		return fmt.Errorf("%w: max candidates must be positive", ErrInvalidPolicy)
	}
	if p.Granularity < 0 {
		return fmt.Errorf("%w: negative granularity", ErrInvalidPolicy)
	}
	return nil
}

// IsBusinessDay reports whether t falls on a business day in the policy zone.
func (p Policy) IsBusinessDay(t time.Time) bool {
	wd := t.In(dates.MustLoadZone(p.Zone)).Weekday()
	for _, d := range p.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// businessDays returns local midnights of the business days touching
// [from, to) in loc. A daily RRULE keeps DST transitions correct.
func (p Policy) businessDays(from, to time.Time, loc *time.Location) ([]time.Time, error) {
	first := from.In(loc)
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
	last := to.In(loc)

	byday := make([]rrule.Weekday, 0, len(p.Weekdays))
	for _, wd := range p.Weekdays {
		byday = append(byday, rruleWeekdays[wd])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   first,
		Until:     last,
		Byweekday: byday,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build business day rule: %w", err)
	}

	days := r.All()
	for i, d := range days {
		d = d.In(loc)
		days[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	}
	return days, nil
}
