package dates

import (
	"time"
)

// ZonedInstant is an absolute point in time plus the zone it is displayed in.
// The instant is held in UTC; the zone only matters when formatting.
type ZonedInstant struct {
	UTC  time.Time `json:"utc"`
	Zone string    `json:"zone"`
}

// At returns the ZonedInstant for t displayed in zone.
func At(t time.Time, zone string) ZonedInstant {
	return ZonedInstant{UTC: t.UTC(), Zone: zone}
}

// In returns the same instant displayed in another zone.
func (z ZonedInstant) In(zone string) ZonedInstant {
	return ZonedInstant{UTC: z.UTC, Zone: zone}
}

// Local returns the instant as wall clock time in its display zone.
func (z ZonedInstant) Local() time.Time {
	return z.UTC.In(MustLoadZone(z.Zone))
}

// Equal reports whether both values denote the same absolute instant.
func (z ZonedInstant) Equal(o ZonedInstant) bool {
	return z.UTC.Equal(o.UTC)
}

// Before reports whether z is strictly before o.
func (z ZonedInstant) Before(o ZonedInstant) bool {
	return z.UTC.Before(o.UTC)
}

// Format formats the instant in its display zone.
func (z ZonedInstant) Format(layout string) string {
	return z.Local().Format(layout)
}

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start ZonedInstant `json:"start"`
	End   ZonedInstant `json:"end"`
}

// Contains reports whether t lies in [Start, End).
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start.UTC) && t.Before(r.End.UTC)
}

// Duration returns End - Start.
func (r DateRange) Duration() time.Duration {
	return r.End.UTC.Sub(r.Start.UTC)
}

// Kind tells whether a resolution produced an instant or a range.
type Kind int

const (
	KindRange Kind = iota
	KindInstant
)

// Result is the output of Resolve. For KindInstant, Range.Start == Range.End.
type Result struct {
	Kind  Kind
	Range DateRange
}

// Instant returns the resolved instant; for ranges it is the range start.
func (r Result) Instant() ZonedInstant {
	return r.Range.Start
}

// Window returns the interval to search. An instant searches from that
// instant to the end of its local day.
func (r Result) Window() DateRange {
	if r.Kind == KindRange {
		return r.Range
	}
	local := r.Range.Start.Local()
	end := startOfDay(local).AddDate(0, 0, 1)
	return DateRange{Start: r.Range.Start, End: At(end, r.Range.Start.Zone)}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
