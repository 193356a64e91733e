// Package google provides OAuth2 authentication and token storage for the
// Google Calendar API.
//
// Tokens are persisted as JSON on disk. The TokenProvider interface lets
// other token sources be plugged into the calendar gateway.
package google
