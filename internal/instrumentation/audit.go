package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/tailortalk/internal/logging"
)

// BookingAudit is the audit record of one booking transaction.
type BookingAudit struct {
	SessionID      string
	IdempotencyKey string
	EventID        string
	Title          string
	Start          time.Time
	End            time.Time
	Outcome        string
	Error          string
	Duration       time.Duration
	TraceID        string
}

// NewBookingAudit starts a booking record for the trace in ctx.
func NewBookingAudit(ctx context.Context, sessionID, key string) *BookingAudit {
	return &BookingAudit{
		SessionID:      sessionID,
		IdempotencyKey: key,
		TraceID:        GetTraceID(ctx),
	}
}

func (b *BookingAudit) attrs(includePII bool) []any {
	attrs := []any{
		slog.String("outcome", b.Outcome),
		slog.String("idempotency_key", b.IdempotencyKey),
		slog.Time("slot_start", b.Start.UTC()),
		slog.Time("slot_end", b.End.UTC()),
		slog.Duration("duration", b.Duration),
	}
	if includePII {
		attrs = append(attrs, slog.String("session_id", b.SessionID))
		if b.Title != "" {
			attrs = append(attrs, slog.String("title", b.Title))
		}
	} else {
		attrs = append(attrs, slog.String("session", logging.Anonymize("session", b.SessionID)))
	}
	if b.EventID != "" {
		attrs = append(attrs, slog.String("event_id", b.EventID))
	}
	if b.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", b.TraceID))
	}
	if b.Error != "" {
		attrs = append(attrs, slog.String("error", b.Error))
	}
	return attrs
}

// ToolInvocation captures one MCP tool call for audit logging.
type ToolInvocation struct {
	Tool      string
	SessionID string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithSession sets the conversation session the tool acted on.
func (ti *ToolInvocation) WithSession(id string) *ToolInvocation {
	ti.SessionID = id
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ti *ToolInvocation) attrs(includePII bool) []any {
	attrs := []any{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.SessionID != "" {
		if includePII {
			attrs = append(attrs, slog.String("session_id", ti.SessionID))
		} else {
			attrs = append(attrs, slog.String("session", logging.Anonymize("session", ti.SessionID)))
		}
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID), slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// AuditLogger writes booking and tool audit records.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("log_type", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogBooking writes a booking record. Failed outcomes are logged at warn.
func (al *AuditLogger) LogBooking(b *BookingAudit) {
	if al == nil || !al.enabled || b == nil {
		return
	}
	switch b.Outcome {
	case BookingBooked, BookingReplayed:
		al.logger.Info("booking_completed", b.attrs(al.includePII)...)
	default:
		al.logger.Warn("booking_failed", b.attrs(al.includePII)...)
	}
}

// LogToolInvocation writes a tool invocation record.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled || ti == nil {
		return
	}
	if ti.Success {
		al.logger.Info("tool_executed", ti.attrs(al.includePII)...)
	} else {
		al.logger.Warn("tool_failed", ti.attrs(al.includePII)...)
	}
}
