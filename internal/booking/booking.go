// Package booking turns a confirmed slot into a calendar event exactly once.
package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/instrumentation"
	"github.com/teemow/tailortalk/internal/ledger"
	"github.com/teemow/tailortalk/internal/logging"
)

// DefaultTitle is used when the user did not name the meeting.
const DefaultTitle = "Meeting"

// Request is a confirmed booking.
type Request struct {
	SessionID   string
	Slot        availability.Slot
	Title       string
	Description string
}

// Result is the booked event.
type Result struct {
	Event calendar.Event
	// Replayed is true when the booking already existed.
	Replayed bool
}

// IdempotencyKey derives the key identifying one booking intent.
func IdempotencyKey(sessionID string, slot availability.Slot, title string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		sessionID,
		slot.Start.UTC.UTC().Format(time.RFC3339),
		slot.End.UTC.UTC().Format(time.RFC3339),
		title,
	}, "|")))
	return hex.EncodeToString(sum[:])
}

// Service runs booking transactions.
type Service struct {
	gateway calendar.Gateway
	ledger  ledger.Ledger
	logger  *slog.Logger
	audit   *instrumentation.AuditLogger
	metrics *instrumentation.Metrics
}

// Options configures a Service. Zero values are valid.
type Options struct {
	Ledger  ledger.Ledger
	Logger  *slog.Logger
	Audit   *instrumentation.AuditLogger
	Metrics *instrumentation.Metrics
}

// NewService creates a booking service over gateway.
func NewService(gateway calendar.Gateway, opts Options) *Service {
	if opts.Ledger == nil {
		opts.Ledger = ledger.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		gateway: gateway,
		ledger:  opts.Ledger,
		logger:  logging.WithComponent(opts.Logger, "booking"),
		audit:   opts.Audit,
		metrics: opts.Metrics,
	}
}

// Book creates the event for req. A request repeated with the same
// session, slot and title returns the existing event.
func (s *Service) Book(ctx context.Context, req Request) (res *Result, err error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle
	}
	key := IdempotencyKey(req.SessionID, req.Slot, title)
	window := calendar.TimeRange{Start: req.Slot.Start.UTC, End: req.Slot.End.UTC}

	logger := logging.WithOperation(logging.WithSession(s.logger, req.SessionID), "book")
	audit := instrumentation.NewBookingAudit(ctx, req.SessionID, key)
	audit.Title, audit.Start, audit.End = title, window.Start, window.End
	started := time.Now()

	defer func() {
		audit.Outcome = outcome(res, err)
		audit.Duration = time.Since(started)
		if res != nil {
			audit.EventID = res.Event.ID
		}
		if err != nil {
			audit.Error = err.Error()
			var unconfirmed *BookingUnconfirmedError
			if errors.As(err, &unconfirmed) {
				audit.EventID = unconfirmed.EventID
			}
		}
		s.audit.LogBooking(audit)
		s.metrics.RecordBooking(ctx, audit.Outcome)
	}()

	if replay := s.replay(ctx, logger, key); replay != nil {
		return &Result{Event: *replay, Replayed: true}, nil
	}

	existing, err := s.gateway.ListEvents(ctx, window)
	if err != nil {
		return nil, &BookingFailedError{Err: err}
	}
	for _, ev := range existing {
		if ev.IdempotencyKey == key {
			s.record(ctx, logger, req.SessionID, key, ev)
			return &Result{Event: ev, Replayed: true}, nil
		}
	}

	busy, err := s.gateway.GetBusyIntervals(ctx, window)
	if err != nil {
		return nil, &BookingFailedError{Err: err}
	}
	var conflicts []calendar.TimeRange
	for _, b := range busy {
		if b.Overlaps(window) {
			conflicts = append(conflicts, b)
		}
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Slot: window, Conflicts: conflicts}
	}

	created, err := s.gateway.InsertEvent(ctx, calendar.Event{
		Title:       title,
		Description: req.Description,
		Start:       window.Start,
		End:         window.End,
		TimeZone:    req.Slot.Start.Zone,
	}, key)
	if err != nil {
		return nil, &BookingFailedError{Err: err}
	}

	s.record(ctx, logger, req.SessionID, key, *created)

	ok, err := s.gateway.VerifyExists(ctx, created.ID)
	if err != nil || !ok {
		return nil, &BookingUnconfirmedError{EventID: created.ID, Err: err}
	}

	logger.Info("meeting booked", logging.EventID(created.ID), slog.Time("start", window.Start))
	return &Result{Event: *created}, nil
}

// replay returns the ledger entry for key if the event still exists.
func (s *Service) replay(ctx context.Context, logger *slog.Logger, key string) *calendar.Event {
	recorded, err := s.ledger.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			logger.Warn("ledger lookup failed", logging.Err(err))
		}
		return nil
	}

	ok, err := s.gateway.VerifyExists(ctx, recorded.ID)
	if err != nil {
		logger.Warn("could not verify recorded booking", logging.EventID(recorded.ID), logging.Err(err))
		return nil
	}
	if !ok {
		logger.Info("recorded booking no longer exists", logging.EventID(recorded.ID))
		return nil
	}
	return recorded
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, sessionID, key string, ev calendar.Event) {
	if err := s.ledger.Record(ctx, sessionID, key, ev); err != nil {
		logger.Warn("failed to record booking in ledger", logging.EventID(ev.ID), logging.Err(err))
	}
}

func outcome(res *Result, err error) string {
	var (
		conflict    *ConflictError
		unconfirmed *BookingUnconfirmedError
	)
	switch {
	case err == nil && res != nil && res.Replayed:
		return instrumentation.BookingReplayed
	case err == nil:
		return instrumentation.BookingBooked
	case errors.As(err, &conflict):
		return instrumentation.BookingConflict
	case errors.As(err, &unconfirmed):
		return instrumentation.BookingUnconfirmed
	default:
		return instrumentation.BookingFailed
	}
}
