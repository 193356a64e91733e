package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/teemow/tailortalk/internal/dates"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the intervals share any instant. Intervals that
// only touch at an endpoint do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Slot is a free candidate interval offered to the user.
type Slot struct {
	Start dates.ZonedInstant `json:"start"`
	End   dates.ZonedInstant `json:"end"`
	// SourceTimezone is the zone the business hours were evaluated in.
	SourceTimezone string `json:"source_timezone"`
}

// Interval returns the slot as a UTC interval.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start.UTC, End: s.End.UTC}
}

// Duration returns the slot length.
func (s Slot) Duration() time.Duration {
	return s.End.UTC.Sub(s.Start.UTC)
}

// In returns the slot displayed in zone.
func (s Slot) In(zone string) Slot {
	return Slot{Start: s.Start.In(zone), End: s.End.In(zone), SourceTimezone: s.SourceTimezone}
}

// FindSlots returns free candidates of length duration inside window,
// restricted to the policy's business hours and excluding busy intervals.
// Results are ordered earliest first and capped at policy.MaxCandidates.
// No availability yields an empty slice, not an error.
func FindSlots(busy []Interval, policy Policy, window Interval, duration time.Duration) ([]Slot, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if window.End.Before(window.Start) {
		return nil, fmt.Errorf("search window ends before it starts: %s < %s", window.End, window.Start)
	}
	if !window.Start.Before(window.End) {
		return []Slot{}, nil
	}

	loc, err := dates.LoadZone(policy.Zone)
	if err != nil {
		return nil, err
	}
	days, err := policy.businessDays(window.Start, window.End, loc)
	if err != nil {
		return nil, err
	}

	merged := mergeIntervals(busy)
	slots := make([]Slot, 0, policy.MaxCandidates)

	for _, midnight := range days {
		open := Interval{
			Start: time.Date(midnight.Year(), midnight.Month(), midnight.Day(), policy.StartHour, 0, 0, 0, loc),
			End:   time.Date(midnight.Year(), midnight.Month(), midnight.Day(), policy.EndHour, 0, 0, 0, loc),
		}
		open, ok := intersect(open, window)
		if !ok {
			continue
		}

		for _, free := range subtract(open, merged) {
			start := alignUp(free.Start, midnight, policy.Granularity)
			for !start.Add(duration).After(free.End) {
				slots = append(slots, Slot{
					Start:          dates.At(start, policy.Zone),
					End:            dates.At(start.Add(duration), policy.Zone),
					SourceTimezone: policy.Zone,
				})
				if len(slots) == policy.MaxCandidates {
					return slots, nil
				}
				start = start.Add(duration)
			}
		}
	}

	return slots, nil
}

// mergeIntervals returns busy intervals in UTC, sorted and coalesced.
func mergeIntervals(in []Interval) []Interval {
	cleaned := make([]Interval, 0, len(in))
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			cleaned = append(cleaned, Interval{Start: iv.Start.UTC(), End: iv.End.UTC()})
		}
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Start.Before(cleaned[j].Start) })

	out := make([]Interval, 0, len(cleaned))
	for _, iv := range cleaned {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract removes sorted, merged busy intervals from open.
func subtract(open Interval, busy []Interval) []Interval {
	var free []Interval
	cursor := open.Start
	for _, b := range busy {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(open.End) {
			break
		}
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if cursor.Before(open.End) {
		free = append(free, Interval{Start: cursor, End: open.End})
	}
	return free
}

func intersect(a, b Interval) (Interval, bool) {
	start, end := a.Start, a.End
	if b.Start.After(start) {
		start = b.Start
	}
	if b.End.Before(end) {
		end = b.End
	}
	return Interval{Start: start, End: end}, start.Before(end)
}

// alignUp rounds t up to the next multiple of step counted from midnight.
func alignUp(t, midnight time.Time, step time.Duration) time.Time {
	if step <= 0 {
		return t
	}
	if rem := t.Sub(midnight) % step; rem != 0 {
		return t.Add(step - rem)
	}
	return t
}
