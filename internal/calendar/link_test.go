package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/tailortalk/internal/instrumentation"
)

func TestCalendarLink(t *testing.T) {
	date := time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		view    string
		want    string
		wantErr bool
	}{
		{"day", "https://calendar.google.com/calendar/u/0/r/day/2024/07/05", false},
		{"Week", "https://calendar.google.com/calendar/u/0/r/week/2024/07/05", false},
		{"", "https://calendar.google.com/calendar/u/0/r/week/2024/07/05", false},
		{"month", "https://calendar.google.com/calendar/u/0/r/month/2024/07/05", false},
		{"agenda", "https://calendar.google.com/calendar/u/0/r/agenda", false},
		{"year", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			got, err := CalendarLink(tt.view, date)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stubGateway struct {
	busy []TimeRange
	err  error
}

func (s stubGateway) GetBusyIntervals(context.Context, TimeRange) ([]TimeRange, error) {
	return s.busy, s.err
}

func (s stubGateway) ListEvents(context.Context, TimeRange) ([]Event, error) { return nil, s.err }

func (s stubGateway) InsertEvent(_ context.Context, draft Event, key string) (*Event, error) {
	draft.ID, draft.IdempotencyKey = "id", key
	return &draft, s.err
}

func (s stubGateway) VerifyExists(context.Context, string) (bool, error) { return s.err == nil, s.err }

func TestInstrumented_PassesThrough(t *testing.T) {
	want := []TimeRange{{Start: time.Unix(0, 0), End: time.Unix(60, 0)}}
	gw := NewInstrumented(stubGateway{busy: want}, instrumentation.BackendICS, nil)

	got, err := gw.GetBusyIntervals(context.Background(), TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ev, err := gw.InsertEvent(context.Background(), Event{Title: "x"}, "k")
	require.NoError(t, err)
	assert.Equal(t, "k", ev.IdempotencyKey)

	failing := NewInstrumented(stubGateway{err: errors.New("down")}, instrumentation.BackendGoogle, &instrumentation.Metrics{})
	ok, err := failing.VerifyExists(context.Background(), "id")
	assert.Error(t, err)
	assert.False(t, ok)
}
