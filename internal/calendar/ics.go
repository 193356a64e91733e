package calendar

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/teemow/tailortalk/internal/logging"
)

// icsKeyProperty carries the idempotency key on VEVENTs we create.
const icsKeyProperty = ical.ComponentProperty("X-TAILORTALK-KEY")

// ICSGateway is a Gateway over a local iCalendar file. Recurring events are
// expanded with their RRULE and EXDATEs. Inserts rewrite the file
// atomically.
type ICSGateway struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewICSGateway returns a gateway over path. A missing file is treated as
// an empty calendar and created on the first insert.
func NewICSGateway(path string, logger *slog.Logger) *ICSGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &ICSGateway{
		path:   path,
		logger: logging.WithComponent(logger, "calendar.ics"),
		now:    time.Now,
	}
}

// occurrence is one expanded instance of a VEVENT.
type occurrence struct {
	Event
	transparent bool
}

func (g *ICSGateway) load() (*ical.Calendar, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			cal := ical.NewCalendar()
			cal.SetProductId("-//tailortalk//scheduler//EN")
			return cal, nil
		}
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		cal := ical.NewCalendar()
		cal.SetProductId("-//tailortalk//scheduler//EN")
		return cal, nil
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar file %s: %w", g.path, err)
	}
	return cal, nil
}

func (g *ICSGateway) occurrences(window TimeRange) ([]occurrence, error) {
	cal, err := g.load()
	if err != nil {
		return nil, err
	}

	var out []occurrence
	for _, ve := range cal.Events() {
		occ, err := expand(ve, window)
		if err != nil {
			g.logger.Warn("skipping unreadable event", slog.String("uid", ve.Id()), logging.Err(err))
			continue
		}
		out = append(out, occ...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// expand returns the instances of ve intersecting window.
func expand(ve *ical.VEvent, window TimeRange) ([]occurrence, error) {
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return nil, nil
	}

	start, err := ve.GetStartAt()
	allDay := false
	if err != nil {
		if start, err = ve.GetAllDayStartAt(); err != nil {
			return nil, fmt.Errorf("missing DTSTART: %w", err)
		}
		allDay = true
	}
	end, err := ve.GetEndAt()
	if err != nil {
		if end, err = ve.GetAllDayEndAt(); err != nil {
			end = start.Add(time.Hour)
			if allDay {
				end = start.AddDate(0, 0, 1)
			}
		}
	}
	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil && !strings.Contains(dt.Value, "T") {
		allDay = true
	}

	base := occurrence{
		Event: Event{
			ID:       ve.Id(),
			AllDay:   allDay,
			TimeZone: start.Location().String(),
		},
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		base.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		base.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		base.Link = p.Value
	}
	if p := ve.GetProperty(icsKeyProperty); p != nil {
		base.IdempotencyKey = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		base.transparent = true
	}

	length := end.Sub(start)
	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil {
		r := TimeRange{Start: start.UTC(), End: end.UTC()}
		if !r.Overlaps(window) {
			return nil, nil
		}
		base.Start, base.End = r.Start, r.End
		return []occurrence{base}, nil
	}

	r, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q: %w", rruleProp.Value, err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if ex, err := parseICSTime(strings.TrimSpace(part), start.Location()); err == nil {
				set.ExDate(ex)
			}
		}
	}

	// Instances starting before the window may still run into it.
	var out []occurrence
	for _, s := range set.Between(window.Start.Add(-length).In(start.Location()), window.End.In(start.Location()), true) {
		occ := base
		occ.Start, occ.End = s.UTC(), s.Add(length).UTC()
		if occ.Range().Overlaps(window) {
			out = append(out, occ)
		}
	}
	return out, nil
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// GetBusyIntervals returns opaque event instances intersecting window.
func (g *ICSGateway) GetBusyIntervals(ctx context.Context, window TimeRange) ([]TimeRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	occ, err := g.occurrences(window)
	if err != nil {
		return nil, err
	}
	busy := make([]TimeRange, 0, len(occ))
	for _, o := range occ {
		if !o.transparent {
			busy = append(busy, o.Range())
		}
	}
	return busy, nil
}

// ListEvents returns event instances intersecting window.
func (g *ICSGateway) ListEvents(ctx context.Context, window TimeRange) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	occ, err := g.occurrences(window)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(occ))
	for _, o := range occ {
		events = append(events, o.Event)
	}
	return events, nil
}

// InsertEvent appends a VEVENT carrying key, or returns the event already
// carrying it.
func (g *ICSGateway) InsertEvent(ctx context.Context, draft Event, key string) (*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	cal, err := g.load()
	if err != nil {
		return nil, err
	}
	if key != "" {
		for _, ve := range cal.Events() {
			if p := ve.GetProperty(icsKeyProperty); p != nil && p.Value == key {
				occ, err := expand(ve, TimeRange{Start: draft.Start, End: draft.End})
				if err == nil && len(occ) > 0 {
					return &occ[0].Event, nil
				}
			}
		}
	}

	uid := uuid.NewString() + "@tailortalk"
	now := g.now().UTC()

	ve := cal.AddEvent(uid)
	ve.SetCreatedTime(now)
	ve.SetDtStampTime(now)
	ve.SetStartAt(draft.Start.UTC())
	ve.SetEndAt(draft.End.UTC())
	ve.SetSummary(draft.Title)
	if draft.Description != "" {
		ve.SetDescription(draft.Description)
	}
	if key != "" {
		ve.SetProperty(icsKeyProperty, key)
	}

	if err := g.write(cal); err != nil {
		return nil, err
	}

	created := draft
	created.ID = uid
	created.Start, created.End = draft.Start.UTC(), draft.End.UTC()
	created.IdempotencyKey = key
	created.Link = "file://" + g.path
	return &created, nil
}

// VerifyExists reports whether a VEVENT with eventID is in the file.
func (g *ICSGateway) VerifyExists(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	cal, err := g.load()
	if err != nil {
		return false, err
	}
	for _, ve := range cal.Events() {
		if ve.Id() != eventID {
			continue
		}
		if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

func (g *ICSGateway) write(cal *ical.Calendar) error {
	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create calendar directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tailortalk-*.ics")
	if err != nil {
		return fmt.Errorf("failed to create temp calendar file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write calendar file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write calendar file: %w", err)
	}
	if err := os.Rename(tmp.Name(), g.path); err != nil {
		return fmt.Errorf("failed to replace calendar file: %w", err)
	}
	return nil
}
