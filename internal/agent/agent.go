// Package agent runs one conversation turn: it asks the oracle which
// capability the user wants, validates the answer, dispatches it against
// the calendar and the session state machine, and renders the reply.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/booking"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/instrumentation"
	"github.com/teemow/tailortalk/internal/logging"
	"github.com/teemow/tailortalk/internal/oracle"
)

// ErrEmptyMessage is returned for a blank chat message.
var ErrEmptyMessage = errors.New("message is empty")

// DefaultTurnTimeout bounds a turn when Config.TurnTimeout is unset.
const DefaultTurnTimeout = 45 * time.Second

// Config tunes the orchestrator.
type Config struct {
	Policy availability.Policy
	// DefaultTimezone is the display zone of new sessions.
	DefaultTimezone string
	// OracleTimeout bounds one classification.
	OracleTimeout time.Duration
	// HistoryTurns is how many recent turns the oracle sees.
	HistoryTurns int
	// HistoryLimit bounds the turns stored per session.
	HistoryLimit int
	// SearchDays is the search horizon when the user names no date.
	SearchDays int
	// TurnTimeout bounds one Handle call. Keep it below the transport's
	// write timeout so a booking never outlives the response.
	TurnTimeout time.Duration
}

// Deps are the collaborators of an Agent.
type Deps struct {
	Store   conversation.Store
	Oracle  oracle.Classifier
	Gateway calendar.Gateway
	Booking *booking.Service
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Agent is the tool dispatch orchestrator.
type Agent struct {
	store   conversation.Store
	oracle  oracle.Classifier
	gateway calendar.Gateway
	booking *booking.Service
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	cfg     Config
	now     func() time.Time
}

// ChatRequest is one inbound message.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Timezone  string `json:"timezone,omitempty"`
}

// ChatResponse is the reply to a ChatRequest.
type ChatResponse struct {
	Response  string              `json:"response"`
	SessionID string              `json:"session_id"`
	State     conversation.State  `json:"state"`
	Slots     []availability.Slot `json:"slots"`
}

// New creates an Agent.
func New(deps Deps, cfg Config) (*Agent, error) {
	if deps.Store == nil || deps.Oracle == nil || deps.Gateway == nil {
		return nil, errors.New("agent requires a store, an oracle and a calendar gateway")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if deps.Booking == nil {
		deps.Booking = booking.NewService(deps.Gateway, booking.Options{Logger: deps.Logger, Metrics: deps.Metrics})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 20 * time.Second
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	if cfg.SearchDays <= 0 {
		cfg.SearchDays = 7
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	return &Agent{
		store:   deps.Store,
		oracle:  deps.Oracle,
		gateway: deps.Gateway,
		booking: deps.Booking,
		logger:  logging.WithComponent(deps.Logger, "agent"),
		metrics: deps.Metrics,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// Handle runs one turn. Conversational failures are answered in the
// response text; an error is returned only when the session could not be
// loaded or stored.
func (a *Agent) Handle(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.TurnTimeout)
	defer cancel()
	ctx, span := instrumentation.StartTurnSpan(ctx, id)
	start := time.Now()
	logger := logging.WithSession(a.logger, id)

	var (
		resp    *ChatResponse
		result  turnResult
		eventID string
	)
	_, err := a.store.Update(ctx, id, func(s *conversation.Session) error {
		if s.Timezone == "" {
			s.Timezone = a.cfg.DefaultTimezone
		}
		if req.Timezone != "" {
			if err := s.ChangeTimezone(req.Timezone); err != nil {
				logger.Warn("ignoring invalid request timezone", slog.String("timezone", req.Timezone), logging.Err(err))
			}
		}

		result = a.turn(ctx, logger, s, message)

		now := a.now()
		s.AppendTurn(conversation.RoleUser, message, now, a.cfg.HistoryLimit)
		s.AppendTurn(conversation.RoleAssistant, result.text, now, a.cfg.HistoryLimit)

		resp = &ChatResponse{
			Response:  result.text,
			SessionID: id,
			State:     s.State,
		}
		if s.State == conversation.StateBooked {
			eventID = s.LastEventID
		}
		s.Settle()
		resp.Slots = append([]availability.Slot{}, s.Slots...)
		return nil
	})

	status := instrumentation.StatusSuccess
	if err != nil || result.failed {
		status = instrumentation.StatusError
	}
	state := ""
	if resp != nil {
		state = string(resp.State)
	}
	a.metrics.RecordChatTurn(ctx, instrumentation.NormalizeCapability(result.capability), state, status, time.Since(start))
	span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
		WithCapability(result.capability).
		WithState(state).
		WithEventID(eventID).
		Build()...)
	span.SetAttributes(attribute.String(instrumentation.SpanAttrStatus, status))
	instrumentation.EndSpan(span, err)

	if err != nil {
		logger.Error("failed to process chat turn", logging.Err(err))
		return nil, err
	}
	return resp, nil
}

// Reset drops a session.
func (a *Agent) Reset(ctx context.Context, sessionID string) error {
	return a.store.Delete(ctx, sessionID)
}

type turnResult struct {
	text       string
	capability string
	// failed is set for oracle and operational failures.
	failed bool
}

func (a *Agent) turn(ctx context.Context, logger *slog.Logger, s *conversation.Session, message string) turnResult {
	decision, err := a.classify(ctx, s, message)
	if err != nil {
		logger.Warn("oracle call failed", logging.Err(err))
		return turnResult{text: oracleUnavailable, failed: true}
	}

	cmd, err := Decode(decision)
	if err != nil {
		logger.Info("oracle decision rejected",
			logging.Capability(instrumentation.NormalizeCapability(decision.Capability)), logging.Err(err))
		return turnResult{text: renderError(err), capability: decision.Capability}
	}

	logger = logger.With(logging.Capability(cmd.Capability()))
	text, err := a.dispatch(ctx, s, cmd)
	if err == nil {
		logger.Debug("capability handled", logging.State(string(s.State)))
		return turnResult{text: text, capability: cmd.Capability()}
	}

	if isInputError(err) {
		logger.Info("capability rejected input", logging.Err(err))
		return turnResult{text: renderError(err), capability: cmd.Capability()}
	}
	logger.Error("capability failed", logging.Err(err))
	s.Fail(err)
	return turnResult{text: renderError(err), capability: cmd.Capability(), failed: true}
}

func (a *Agent) classify(ctx context.Context, s *conversation.Session, message string) (oracle.Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.OracleTimeout)
	defer cancel()

	history := s.RecentHistory(a.cfg.HistoryTurns)
	msgs := make([]oracle.Message, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, oracle.Message{Role: t.Role, Content: t.Content})
	}
	return a.oracle.Classify(ctx, oracle.Request{
		Message:      message,
		History:      msgs,
		State:        string(s.State),
		Timezone:     s.Timezone,
		Now:          a.now(),
		OfferedSlots: len(s.Slots),
		Capabilities: oracle.Capabilities(),
	})
}
