// Package logging provides structured logging utilities for tailortalk.
//
// This package centralizes the attribute names used with log/slog so that
// every component (resolver, availability engine, calendar gateway, booking,
// conversation and agent) logs with the same keys.
//
// # Usage Patterns
//
//	logger := logging.WithComponent(slog.Default(), "booking")
//	logger.Info("event inserted",
//	    logging.Session(sessionID),
//	    logging.EventID(ev.ID),
//	    logging.Status(logging.StatusSuccess))
//
// Free text typed by users (meeting titles, descriptions) is hashed with
// Anonymize before it reaches a log line, and credentials are masked with
// SanitizeToken.
package logging
