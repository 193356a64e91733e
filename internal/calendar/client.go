package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/tailortalk/internal/google"
	"github.com/teemow/tailortalk/internal/logging"
)

// GoogleGateway is the Google Calendar backed Gateway.
type GoogleGateway struct {
	svc        *calendar.Service
	calendarID string
	retry      retrier
	logger     *slog.Logger
}

// GoogleOptions configures a GoogleGateway.
type GoogleOptions struct {
	CalendarID string
	Retry      RetryPolicy
	Logger     *slog.Logger
	// OnRetry is invoked before each retried attempt.
	OnRetry func(ctx context.Context, operation string)
}

// NewGoogleGateway creates a gateway authenticated through provider.
func NewGoogleGateway(ctx context.Context, provider google.TokenProvider, opts GoogleOptions) (*GoogleGateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	ts, err := provider.TokenSource(ctx)
	if err != nil {
		return nil, &AuthExpiredError{Err: err}
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return NewGoogleGatewayWithService(svc, opts), nil
}

// NewGoogleGatewayWithService wraps an existing Calendar service.
func NewGoogleGatewayWithService(svc *calendar.Service, opts GoogleOptions) *GoogleGateway {
	if opts.CalendarID == "" {
		opts.CalendarID = "primary"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}

	logger := logging.WithComponent(opts.Logger, "calendar.google")
	return &GoogleGateway{
		svc:        svc,
		calendarID: opts.CalendarID,
		logger:     logger,
		retry: retrier{
			policy:   opts.Retry,
			classify: classifyGoogle,
			logger:   logger,
			onRetry:  opts.OnRetry,
		},
	}
}

// GetBusyIntervals queries free/busy for the configured calendar.
func (g *GoogleGateway) GetBusyIntervals(ctx context.Context, window TimeRange) ([]TimeRange, error) {
	return doRetry(ctx, g.retry, "freebusy", func(ctx context.Context) ([]TimeRange, error) {
		result, err := g.svc.Freebusy.Query(&calendar.FreeBusyRequest{
			TimeMin: window.Start.UTC().Format(time.RFC3339),
			TimeMax: window.End.UTC().Format(time.RFC3339),
			Items:   []*calendar.FreeBusyRequestItem{{Id: g.calendarID}},
		}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to query freebusy: %w", err)
		}

		cal, ok := result.Calendars[g.calendarID]
		if !ok {
			return []TimeRange{}, nil
		}
		if len(cal.Errors) > 0 {
			return nil, fmt.Errorf("freebusy for %s failed: %s", g.calendarID, cal.Errors[0].Reason)
		}

		busy := make([]TimeRange, 0, len(cal.Busy))
		for _, b := range cal.Busy {
			start, err := time.Parse(time.RFC3339, b.Start)
			if err != nil {
				return nil, fmt.Errorf("invalid busy start %q: %w", b.Start, err)
			}
			end, err := time.Parse(time.RFC3339, b.End)
			if err != nil {
				return nil, fmt.Errorf("invalid busy end %q: %w", b.End, err)
			}
			busy = append(busy, TimeRange{Start: start.UTC(), End: end.UTC()})
		}
		return busy, nil
	})
}

// ListEvents lists single events in window, following pagination.
func (g *GoogleGateway) ListEvents(ctx context.Context, window TimeRange) ([]Event, error) {
	return doRetry(ctx, g.retry, "list", func(ctx context.Context) ([]Event, error) {
		return g.listEvents(ctx, g.svc.Events.List(g.calendarID).
			TimeMin(window.Start.UTC().Format(time.RFC3339)).
			TimeMax(window.End.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime"))
	})
}

func (g *GoogleGateway) listEvents(ctx context.Context, call *calendar.EventsListCall) ([]Event, error) {
	events := []Event{}
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			events = append(events, toEvent(item))
		}
		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// InsertEvent creates draft unless an event with key (or with the same
// title and times) is already on the calendar. The lookup runs on every
// attempt, so a retry after an ambiguous failure does not duplicate.
func (g *GoogleGateway) InsertEvent(ctx context.Context, draft Event, key string) (*Event, error) {
	return doRetry(ctx, g.retry, "insert", func(ctx context.Context) (*Event, error) {
		existing, err := g.findExisting(ctx, draft, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			g.logger.Info("event already exists, skipping insert", logging.EventID(existing.ID))
			return existing, nil
		}

		tz := draft.TimeZone
		if tz == "" {
			tz = "UTC"
		}
		event := &calendar.Event{
			Summary:     draft.Title,
			Description: draft.Description,
			Start:       &calendar.EventDateTime{DateTime: draft.Start.Format(time.RFC3339), TimeZone: tz},
			End:         &calendar.EventDateTime{DateTime: draft.End.Format(time.RFC3339), TimeZone: tz},
			ExtendedProperties: &calendar.EventExtendedProperties{
				Private: map[string]string{keyProperty: key},
			},
		}

		created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to create event: %w", err)
		}
		ev := toEvent(created)
		return &ev, nil
	})
}

func (g *GoogleGateway) findExisting(ctx context.Context, draft Event, key string) (*Event, error) {
	if key != "" {
		byKey, err := g.listEvents(ctx, g.svc.Events.List(g.calendarID).
			PrivateExtendedProperty(keyProperty+"="+key).
			SingleEvents(true))
		if err != nil {
			return nil, err
		}
		if len(byKey) > 0 {
			return &byKey[0], nil
		}
	}

	sameSlot, err := g.listEvents(ctx, g.svc.Events.List(g.calendarID).
		TimeMin(draft.Start.UTC().Format(time.RFC3339)).
		TimeMax(draft.End.UTC().Format(time.RFC3339)).
		SingleEvents(true))
	if err != nil {
		return nil, err
	}
	for i := range sameSlot {
		e := sameSlot[i]
		if e.Title == draft.Title && e.Start.Equal(draft.Start) && e.End.Equal(draft.End) {
			return &e, nil
		}
	}
	return nil, nil
}

// VerifyExists reads the event back. Deleted and cancelled events report
// false.
func (g *GoogleGateway) VerifyExists(ctx context.Context, eventID string) (bool, error) {
	return doRetry(ctx, g.retry, "verify", func(ctx context.Context) (bool, error) {
		event, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
				return false, nil
			}
			return false, fmt.Errorf("failed to get event: %w", err)
		}
		return event.Status != "cancelled", nil
	})
}

// toEvent converts a Google Calendar event. All-day events span local
// midnights of their dates in UTC.
func toEvent(item *calendar.Event) Event {
	if item == nil {
		return Event{}
	}

	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Link:        item.HtmlLink,
	}

	if item.Start != nil {
		ev.TimeZone = item.Start.TimeZone
		ev.Start, ev.AllDay = parseEventTime(item.Start)
	}
	if item.End != nil {
		ev.End, _ = parseEventTime(item.End)
	}
	if item.ExtendedProperties != nil {
		ev.IdempotencyKey = item.ExtendedProperties.Private[keyProperty]
	}

	return ev
}

func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t.UTC(), false
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
