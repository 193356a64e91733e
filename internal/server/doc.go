// Package server hosts the scheduling agent over HTTP.
//
// # Key Components
//
// ServerContext holds the orchestrator shared by the chat API and the MCP
// tools, the named dependency checks and the shutdown state.
//
// ChatServer is an echo router exposing:
//   - POST /api/chat: one conversation turn
//   - DELETE /api/sessions/:id: drop a conversation
//   - /healthz, /readyz and /healthz/detailed: Kubernetes probes
//
// Requests are traced with otelhttp and counted by the HTTP metrics of the
// instrumentation package. MetricsServer serves /metrics on its own port.
package server
