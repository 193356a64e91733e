package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// AuthExpiredError means the provider rejected the credentials. It is
// never retried.
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("calendar credentials expired or revoked: %v", e.Err)
}

func (e *AuthExpiredError) Unwrap() error { return e.Err }

// RateLimitedError means the provider throttled the request.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("calendar rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("calendar rate limited: %v", e.Err)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// ErrNotFound is returned by backends for missing events.
var ErrNotFound = errors.New("event not found")

// classification of a failed attempt
type failure int

const (
	failPermanent failure = iota
	failTransient
)

// classifyGoogle maps a Google API error onto the gateway taxonomy.
func classifyGoogle(err error) (error, failure) {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &AuthExpiredError{Err: err}, failPermanent
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &AuthExpiredError{Err: err}, failPermanent
		case apiErr.Code == http.StatusTooManyRequests || (apiErr.Code == http.StatusForbidden && isRateLimitReason(apiErr)):
			return &RateLimitedError{RetryAfter: retryAfter(apiErr.Header), Err: err}, failTransient
		case apiErr.Code >= 500:
			return err, failTransient
		default:
			return err, failPermanent
		}
	}

	return classifyTransport(err)
}

// classifyTransport treats timeouts and network failures as transient.
func classifyTransport(err error) (error, failure) {
	if errors.Is(err, context.DeadlineExceeded) {
		return err, failTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, failTransient
	}
	return err, failPermanent
}

func isRateLimitReason(e *googleapi.Error) bool {
	for _, item := range e.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
