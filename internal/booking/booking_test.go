package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/dates"
	"github.com/teemow/tailortalk/internal/ledger"
)

type fakeGateway struct {
	mu        sync.Mutex
	events    []calendar.Event
	busy      []calendar.TimeRange
	insertErr error
	verifyErr error
	hidden    map[string]bool
	inserts   int
}

func (f *fakeGateway) GetBusyIntervals(_ context.Context, window calendar.TimeRange) ([]calendar.TimeRange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]calendar.TimeRange(nil), f.busy...)
	for _, ev := range f.events {
		if ev.Range().Overlaps(window) {
			out = append(out, ev.Range())
		}
	}
	return out, nil
}

func (f *fakeGateway) ListEvents(_ context.Context, window calendar.TimeRange) ([]calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []calendar.Event
	for _, ev := range f.events {
		if ev.Range().Overlaps(window) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeGateway) InsertEvent(_ context.Context, draft calendar.Event, key string) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserts++
	draft.ID = "evt-" + string(rune('0'+f.inserts))
	draft.IdempotencyKey = key
	f.events = append(f.events, draft)
	return &draft, nil
}

func (f *fakeGateway) VerifyExists(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	if f.hidden[id] {
		return false, nil
	}
	for _, ev := range f.events {
		if ev.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGateway) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ev := range f.events {
		if ev.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return
		}
	}
}

func testSlot(hour int) availability.Slot {
	start := time.Date(2024, 7, 2, hour, 0, 0, 0, time.UTC)
	return availability.Slot{
		Start:          dates.At(start, "UTC"),
		End:            dates.At(start.Add(time.Hour), "UTC"),
		SourceTimezone: "UTC",
	}
}

func newTestLedger(t *testing.T) *ledger.SQLiteLedger {
	t.Helper()
	l, err := ledger.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestIdempotencyKey(t *testing.T) {
	a := IdempotencyKey("s1", testSlot(10), "Sync")
	assert.Len(t, a, 64)
	assert.Equal(t, a, IdempotencyKey("s1", testSlot(10), "Sync"))
	assert.Equal(t, a, IdempotencyKey("s1", testSlot(10).In("Asia/Kolkata"), "Sync"))
	assert.NotEqual(t, a, IdempotencyKey("s2", testSlot(10), "Sync"))
	assert.NotEqual(t, a, IdempotencyKey("s1", testSlot(11), "Sync"))
	assert.NotEqual(t, a, IdempotencyKey("s1", testSlot(10), "Review"))
}

func TestBook_Success(t *testing.T) {
	gw := &fakeGateway{}
	l := newTestLedger(t)
	svc := NewService(gw, Options{Ledger: l})

	res, err := svc.Book(context.Background(), Request{SessionID: "s1", Slot: testSlot(10), Title: "Sync"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, "Sync", res.Event.Title)
	assert.Equal(t, IdempotencyKey("s1", testSlot(10), "Sync"), res.Event.IdempotencyKey)
	assert.Equal(t, 1, gw.inserts)

	recorded, err := l.Lookup(context.Background(), res.Event.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, res.Event.ID, recorded.ID)
}

func TestBook_DefaultTitle(t *testing.T) {
	gw := &fakeGateway{}
	res, err := NewService(gw, Options{}).Book(context.Background(), Request{SessionID: "s1", Slot: testSlot(10), Title: "  "})
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, res.Event.Title)
}

func TestBook_RepeatIsReplayed(t *testing.T) {
	tests := []struct {
		name   string
		ledger bool
	}{
		{name: "from ledger", ledger: true},
		{name: "from provider listing", ledger: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			opts := Options{}
			if tt.ledger {
				opts.Ledger = newTestLedger(t)
			}
			svc := NewService(gw, opts)
			req := Request{SessionID: "s1", Slot: testSlot(10), Title: "Sync"}

			first, err := svc.Book(context.Background(), req)
			require.NoError(t, err)
			second, err := svc.Book(context.Background(), req)
			require.NoError(t, err)

			assert.True(t, second.Replayed)
			assert.Equal(t, first.Event.ID, second.Event.ID)
			assert.Equal(t, 1, gw.inserts)
		})
	}
}

func TestBook_LedgerEntryForDeletedEventBooksAgain(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, Options{Ledger: newTestLedger(t)})
	req := Request{SessionID: "s1", Slot: testSlot(10), Title: "Sync"}

	first, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	gw.remove(first.Event.ID)

	second, err := svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.Replayed)
	assert.NotEqual(t, first.Event.ID, second.Event.ID)
	assert.Equal(t, 2, gw.inserts)
}

func TestBook_Conflict(t *testing.T) {
	slot := testSlot(10)
	gw := &fakeGateway{busy: []calendar.TimeRange{{
		Start: slot.Start.UTC.Add(30 * time.Minute),
		End:   slot.End.UTC.Add(30 * time.Minute),
	}}}

	_, err := NewService(gw, Options{}).Book(context.Background(), Request{SessionID: "s1", Slot: slot})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Len(t, conflict.Conflicts, 1)
	assert.Zero(t, gw.inserts)
}

func TestBook_TouchingBusyIsNotConflict(t *testing.T) {
	slot := testSlot(10)
	gw := &fakeGateway{busy: []calendar.TimeRange{
		{Start: slot.Start.UTC.Add(-time.Hour), End: slot.Start.UTC},
		{Start: slot.End.UTC, End: slot.End.UTC.Add(time.Hour)},
	}}

	_, err := NewService(gw, Options{}).Book(context.Background(), Request{SessionID: "s1", Slot: slot})
	require.NoError(t, err)
}

func TestBook_InsertFailure(t *testing.T) {
	cause := &calendar.AuthExpiredError{Err: errors.New("token revoked")}
	gw := &fakeGateway{insertErr: cause}

	_, err := NewService(gw, Options{}).Book(context.Background(), Request{SessionID: "s1", Slot: testSlot(10)})
	var failed *BookingFailedError
	require.ErrorAs(t, err, &failed)
	var auth *calendar.AuthExpiredError
	assert.ErrorAs(t, err, &auth)
}

func TestBook_Unconfirmed(t *testing.T) {
	tests := []struct {
		name string
		gw   *fakeGateway
	}{
		{name: "not readable", gw: &fakeGateway{hidden: map[string]bool{"evt-1": true}}},
		{name: "verify error", gw: &fakeGateway{verifyErr: errors.New("timeout")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.gw, Options{}).Book(context.Background(), Request{SessionID: "s1", Slot: testSlot(10)})
			var unconfirmed *BookingUnconfirmedError
			require.ErrorAs(t, err, &unconfirmed)
			assert.Equal(t, "evt-1", unconfirmed.EventID)
		})
	}
}

func TestBook_LedgerFailureDoesNotFailBooking(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Close())

	res, err := NewService(&fakeGateway{}, Options{Ledger: l}).Book(context.Background(), Request{SessionID: "s1", Slot: testSlot(10)})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", res.Event.ID)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "booked", outcome(&Result{}, nil))
	assert.Equal(t, "replayed", outcome(&Result{Replayed: true}, nil))
	assert.Equal(t, "conflict", outcome(nil, &ConflictError{}))
	assert.Equal(t, "unconfirmed", outcome(nil, &BookingUnconfirmedError{EventID: "x"}))
	assert.Equal(t, "failed", outcome(nil, &BookingFailedError{Err: errors.New("x")}))
}
