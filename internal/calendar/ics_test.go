package calendar

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@test\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240701T090000Z\r\n" +
	"DTEND:20240701T093000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"RRULE:FREQ=DAILY;BYDAY=MO,TU,WE,TH,FR\r\n" +
	"EXDATE:20240703T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:review@test\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240702T140000Z\r\n" +
	"DTEND:20240702T150000Z\r\n" +
	"SUMMARY:Design review\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:focus@test\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240702T160000Z\r\n" +
	"DTEND:20240702T170000Z\r\n" +
	"SUMMARY:Focus (free)\r\n" +
	"TRANSP:TRANSPARENT\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:dropped@test\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"DTSTART:20240702T110000Z\r\n" +
	"DTEND:20240702T120000Z\r\n" +
	"SUMMARY:Cancelled lunch\r\n" +
	"STATUS:CANCELLED\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func newICSFixture(t *testing.T) *ICSGateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.ics")
	require.NoError(t, os.WriteFile(path, []byte(fixtureICS), 0o600))
	return NewICSGateway(path, nil)
}

func day(y int, m time.Month, d int) TimeRange {
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
}

func TestICSGateway_GetBusyIntervals(t *testing.T) {
	gw := newICSFixture(t)

	busy, err := gw.GetBusyIntervals(context.Background(), day(2024, 7, 2))
	require.NoError(t, err)
	assert.Equal(t, []TimeRange{
		{Start: time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 7, 2, 9, 30, 0, 0, time.UTC)},
		{Start: time.Date(2024, 7, 2, 14, 0, 0, 0, time.UTC), End: time.Date(2024, 7, 2, 15, 0, 0, 0, time.UTC)},
	}, busy)

	// EXDATE removes Wednesday's standup.
	busy, err = gw.GetBusyIntervals(context.Background(), day(2024, 7, 3))
	require.NoError(t, err)
	assert.Empty(t, busy)

	// No standup on Saturday.
	busy, err = gw.GetBusyIntervals(context.Background(), day(2024, 7, 6))
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestICSGateway_ListEvents(t *testing.T) {
	gw := newICSFixture(t)

	events, err := gw.ListEvents(context.Background(), day(2024, 7, 2))
	require.NoError(t, err)

	titles := make([]string, 0, len(events))
	for _, e := range events {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, []string{"Standup", "Design review", "Focus (free)"}, titles)
}

func TestICSGateway_InsertAndVerify(t *testing.T) {
	gw := newICSFixture(t)
	ctx := context.Background()
	start := time.Date(2024, 7, 2, 13, 0, 0, 0, time.UTC)
	draft := Event{Title: "Planning", Description: "Q3", Start: start, End: start.Add(time.Hour)}

	created, err := gw.InsertEvent(ctx, draft, "key-123")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "key-123", created.IdempotencyKey)

	ok, err := gw.VerifyExists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := gw.InsertEvent(ctx, draft, "key-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// A fresh gateway reads the rewritten file.
	reread := NewICSGateway(gw.path, nil)
	busy, err := reread.GetBusyIntervals(ctx, day(2024, 7, 2))
	require.NoError(t, err)
	assert.Contains(t, busy, TimeRange{Start: start, End: start.Add(time.Hour)})

	events, err := reread.ListEvents(ctx, TimeRange{Start: start, End: start.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "key-123", events[0].IdempotencyKey)
}

func TestICSGateway_VerifyMissingAndCancelled(t *testing.T) {
	gw := newICSFixture(t)

	for _, id := range []string{"nope@test", "dropped@test"} {
		ok, err := gw.VerifyExists(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}
}

func TestICSGateway_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "new.ics")
	gw := NewICSGateway(path, nil)

	busy, err := gw.GetBusyIntervals(context.Background(), day(2024, 7, 2))
	require.NoError(t, err)
	assert.Empty(t, busy)

	start := time.Date(2024, 7, 2, 10, 0, 0, 0, time.UTC)
	_, err = gw.InsertEvent(context.Background(), Event{Title: "First", Start: start, End: start.Add(30 * time.Minute)}, "k")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestICSGateway_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newICSFixture(t).ListEvents(ctx, day(2024, 7, 2))
	assert.ErrorIs(t, err, context.Canceled)
}
