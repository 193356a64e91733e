// Package calendar is the boundary to the calendar provider.
//
// Gateway is implemented by GoogleGateway, backed by the Google Calendar
// API, and by ICSGateway, backed by a local iCalendar file for offline use.
// Instrumented wraps either with metrics and spans.
//
// Google calls run with a per-attempt timeout and are retried with
// exponential backoff on transient failures and rate limiting.
// AuthExpiredError is never retried. Events created through InsertEvent
// carry an idempotency key in their private extended properties (or the
// X-TAILORTALK-KEY property for ICS), and a repeated insert with the same
// key returns the existing event.
package calendar
