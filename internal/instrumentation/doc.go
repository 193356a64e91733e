// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the scheduling agent.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds: chat API traffic
//   - active_sessions: live conversation sessions
//   - chat_turns_total, chat_turn_duration_seconds: turns by capability and status
//   - oracle_calls_total, oracle_call_duration_seconds: intent classification
//   - calendar_operations_total, calendar_operation_duration_seconds: gateway calls by backend and operation
//   - calendar_retries_total: retried gateway attempts
//   - bookings_total: booking transactions by outcome
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds: MCP tools
//
// Capability labels pass through NormalizeCapability so that names invented
// by the language model collapse into "unknown".
//
// # Tracing
//
// Spans are created per conversation turn (chat.turn), per oracle call
// (oracle.classify), per calendar operation (calendar.<operation>) and per
// MCP tool (tool.<name>).
//
// # Configuration
//
// ConfigFromEnv reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER,
// TRACING_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE,
// OTEL_TRACES_SAMPLER_ARG, OTEL_SERVICE_NAME, METRICS_DETAILED_LABELS,
// AUDIT_LOGGING_ENABLED and AUDIT_LOGGING_INCLUDE_PII.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.ConfigFromEnv(version))
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordBooking(ctx, instrumentation.BookingBooked)
package instrumentation
