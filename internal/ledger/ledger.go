// Package ledger records completed bookings by idempotency key so that a
// repeated booking request can be answered without touching the calendar.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teemow/tailortalk/internal/calendar"
)

// ErrNotFound is returned by Lookup for unknown keys.
var ErrNotFound = errors.New("booking not recorded")

// Ledger stores booked events by idempotency key.
type Ledger interface {
	Lookup(ctx context.Context, key string) (*calendar.Event, error)
	Record(ctx context.Context, sessionID, key string, event calendar.Event) error
}

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (and migrates) the ledger at dsn. Use ":memory:"
// for an ephemeral ledger.
func NewSQLiteLedger(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// Every connection to :memory: is its own database.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			idempotency_key TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			time_zone TEXT,
			link TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_session ON bookings(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Ping checks the database connection.
func (l *SQLiteLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Lookup returns the event recorded for key.
func (l *SQLiteLedger) Lookup(ctx context.Context, key string) (*calendar.Event, error) {
	var (
		ev                 calendar.Event
		start, end         string
		description, tz, u sql.NullString
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT event_id, title, description, start_at, end_at, time_zone, link
		 FROM bookings WHERE idempotency_key = ?`, key,
	).Scan(&ev.ID, &ev.Title, &description, &start, &end, &tz, &u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up booking: %w", err)
	}

	if ev.Start, err = time.Parse(time.RFC3339, start); err != nil {
		return nil, fmt.Errorf("corrupt booking start %q: %w", start, err)
	}
	if ev.End, err = time.Parse(time.RFC3339, end); err != nil {
		return nil, fmt.Errorf("corrupt booking end %q: %w", end, err)
	}
	ev.Description = description.String
	ev.TimeZone = tz.String
	ev.Link = u.String
	ev.IdempotencyKey = key
	return &ev, nil
}

// Record stores event under key. Recording the same key again replaces
// the previous row.
func (l *SQLiteLedger) Record(ctx context.Context, sessionID, key string, event calendar.Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO bookings (idempotency_key, session_id, event_id, title, description, start_at, end_at, time_zone, link)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(idempotency_key) DO UPDATE SET
			event_id = excluded.event_id,
			link = excluded.link`,
		key, sessionID, event.ID, event.Title, event.Description,
		event.Start.UTC().Format(time.RFC3339), event.End.UTC().Format(time.RFC3339),
		event.TimeZone, event.Link,
	)
	if err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}
	return nil
}

// Nop is a Ledger that records nothing.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (*calendar.Event, error) { return nil, ErrNotFound }

func (Nop) Record(context.Context, string, string, calendar.Event) error { return nil }
