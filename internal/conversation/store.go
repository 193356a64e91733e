package conversation

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by Get and Delete for unknown or expired
// sessions.
var ErrSessionNotFound = errors.New("session not found")

// UpdateFunc mutates a session. Returning an error discards the mutation.
type UpdateFunc func(*Session) error

// Store persists sessions.
//
// Update is single-flight per session id: concurrent calls for the same id
// run one after another, calls for different ids run in parallel. A
// missing or expired session is created transparently and passed to fn
// with State AWAITING_INTENT. The session is persisted only when fn
// returns nil.
type Store interface {
	Update(ctx context.Context, id string, fn UpdateFunc) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
