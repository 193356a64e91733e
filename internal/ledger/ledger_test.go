package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/tailortalk/internal/calendar"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSQLiteLedger_RecordAndLookup(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	start := time.Date(2024, 7, 2, 13, 0, 0, 0, time.UTC)

	_, err := l.Lookup(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)

	ev := calendar.Event{
		ID: "evt-1", Title: "Sync", Description: "weekly",
		Start: start, End: start.Add(time.Hour), TimeZone: "Asia/Kolkata", Link: "https://example/evt-1",
	}
	require.NoError(t, l.Record(ctx, "s1", "k1", ev))

	got, err := l.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, "k1", got.IdempotencyKey)
	assert.True(t, got.Start.Equal(start))
	assert.Equal(t, "Asia/Kolkata", got.TimeZone)

	ev.ID = "evt-2"
	require.NoError(t, l.Record(ctx, "s1", "k1", ev))
	got, err = l.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "evt-2", got.ID)
}

func TestSQLiteLedger_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := NewSQLiteLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, "s", "k", calendar.Event{ID: "e", Title: "t", Start: time.Unix(0, 0), End: time.Unix(60, 0)}))
	require.NoError(t, l.Close())

	reopened, err := NewSQLiteLedger(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Ping(ctx))

	got, err := reopened.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "e", got.ID)
}

func TestNop(t *testing.T) {
	var l Ledger = Nop{}
	_, err := l.Lookup(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, l.Record(context.Background(), "s", "k", calendar.Event{}))
}
