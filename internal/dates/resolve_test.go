package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-07-01 is a Monday.
var mondayMorning = time.Date(2024, time.July, 1, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int, loc *time.Location) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func TestResolve_Ranges(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		ref       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"today", "today", mondayMorning, day(2024, 7, 1, time.UTC), day(2024, 7, 2, time.UTC)},
		{"tomorrow", "Tomorrow", mondayMorning, day(2024, 7, 2, time.UTC), day(2024, 7, 3, time.UTC)},
		{"day after tomorrow", "the day after tomorrow", mondayMorning, day(2024, 7, 3, time.UTC), day(2024, 7, 4, time.UTC)},
		{"rolls to next year", "29th June", mondayMorning, day(2025, 6, 29, time.UTC), day(2025, 6, 30, time.UTC)},
		{"month first", "June 29th, 2025", mondayMorning, day(2025, 6, 29, time.UTC), day(2025, 6, 30, time.UTC)},
		{"later this year", "the 15th of august", mondayMorning, day(2024, 8, 15, time.UTC), day(2024, 8, 16, time.UTC)},
		{"bare weekday", "friday", mondayMorning, day(2024, 7, 5, time.UTC), day(2024, 7, 6, time.UTC)},
		{"next weekday", "next Friday", mondayMorning, day(2024, 7, 5, time.UTC), day(2024, 7, 6, time.UTC)},
		{"same weekday", "on monday", mondayMorning, day(2024, 7, 1, time.UTC), day(2024, 7, 2, time.UTC)},
		{"next same weekday", "next monday", mondayMorning, day(2024, 7, 8, time.UTC), day(2024, 7, 9, time.UTC)},
		{"next week", "next week", mondayMorning, day(2024, 7, 8, time.UTC), day(2024, 7, 15, time.UTC)},
		{"this week", "this week", mondayMorning, day(2024, 7, 1, time.UTC), day(2024, 7, 8, time.UTC)},
		{"weekend", "this weekend", mondayMorning, day(2024, 7, 6, time.UTC), day(2024, 7, 8, time.UTC)},
		{"in n days", "in 3 days", mondayMorning, day(2024, 7, 4, time.UTC), day(2024, 7, 5, time.UTC)},
		{"in a week", "in a week", mondayMorning, day(2024, 7, 8, time.UTC), day(2024, 7, 9, time.UTC)},
		{"iso", "2024-07-10", mondayMorning, day(2024, 7, 10, time.UTC), day(2024, 7, 11, time.UTC)},
		{"unambiguous numeric", "13/7", mondayMorning, day(2024, 7, 13, time.UTC), day(2024, 7, 14, time.UTC)},
		{"leap day rolls to leap year", "Feb 29", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), day(2028, 2, 29, time.UTC), day(2028, 3, 1, time.UTC)},
		{
			"part of day",
			"tomorrow afternoon", mondayMorning,
			time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC), time.Date(2024, 7, 2, 17, 0, 0, 0, time.UTC),
		},
		{
			"part of day with filler",
			"friday in the morning", mondayMorning,
			time.Date(2024, 7, 5, 9, 0, 0, 0, time.UTC), time.Date(2024, 7, 5, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.input, tt.ref, "UTC")
			require.NoError(t, err)
			assert.Equal(t, KindRange, res.Kind)
			assert.True(t, tt.wantStart.Equal(res.Range.Start.UTC), "start = %s, want %s", res.Range.Start.UTC, tt.wantStart)
			assert.True(t, tt.wantEnd.Equal(res.Range.End.UTC), "end = %s, want %s", res.Range.End.UTC, tt.wantEnd)
			assert.Equal(t, "UTC", res.Range.Start.Zone)
		})
	}
}

func TestResolve_Instants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"meridiem", "tomorrow at 3pm", time.Date(2024, 7, 2, 15, 0, 0, 0, time.UTC)},
		{"meridiem with minutes", "Friday 10:30 am", time.Date(2024, 7, 5, 10, 30, 0, 0, time.UTC)},
		{"twenty four hour", "2024-07-03 16:45", time.Date(2024, 7, 3, 16, 45, 0, 0, time.UTC)},
		{"noon", "tomorrow noon", time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)},
		{"midnight pm edge", "tomorrow at 12am", time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)},
		{"time only means today", "at 4pm", time.Date(2024, 7, 1, 16, 0, 0, 0, time.UTC)},
		{"now", "now", mondayMorning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.input, mondayMorning, "UTC")
			require.NoError(t, err)
			assert.Equal(t, KindInstant, res.Kind)
			assert.True(t, tt.want.Equal(res.Instant().UTC), "got %s, want %s", res.Instant().UTC, tt.want)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target any
	}{
		{"february 30", "February 30", new(*InvalidDateError)},
		{"30th february", "30th February", new(*InvalidDateError)},
		{"april 31", "31 april", new(*InvalidDateError)},
		{"explicit invalid leap day", "2025-02-29", new(*InvalidDateError)},
		{"both numbers too large", "13/14", new(*InvalidDateError)},
		{"ambiguous numeric", "6/7", new(*AmbiguousDateError)},
		{"yesterday", "yesterday", new(*PastDateError)},
		{"earlier today", "today at 9am", new(*PastDateError)},
		{"explicit past date", "2023-05-01", new(*PastDateError)},
		{"past year", "29 June 2023", new(*PastDateError)},
		{"gibberish", "whenever the moon is full", new(*ParseError)},
		{"empty", "   ", new(*ParseError)},
		{"bad meridiem", "tomorrow at 13pm", new(*ParseError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.input, mondayMorning, "UTC")
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "unexpected error type %T: %v", err, err)
		})
	}
}

func TestResolve_AmbiguousCandidates(t *testing.T) {
	_, err := Resolve("6/7", mondayMorning, "UTC")
	var amb *AmbiguousDateError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"6 July", "June 7"}, amb.Candidates)
}

func TestResolve_UsesZone(t *testing.T) {
	kolkata, err := LoadZone("IST")
	require.NoError(t, err)

	// 10:00 UTC is 15:30 in Kolkata; tomorrow starts at local midnight.
	res, err := Resolve("tomorrow", mondayMorning, "IST")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", res.Range.Start.Zone)
	assert.True(t, day(2024, 7, 2, kolkata).Equal(res.Range.Start.UTC))

	// 23:00 UTC Monday is already Tuesday in Tokyo.
	late := time.Date(2024, 7, 1, 23, 0, 0, 0, time.UTC)
	res, err = Resolve("today", late, "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Range.Start.Local().Day())
}

func TestResolve_DSTDayLength(t *testing.T) {
	eastern, err := LoadZone("US/Eastern")
	require.NoError(t, err)
	ref := time.Date(2024, 3, 9, 12, 0, 0, 0, eastern)

	res, err := Resolve("tomorrow", ref, "EST")
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, res.Range.Duration())
}

func TestResolve_UnknownZone(t *testing.T) {
	_, err := Resolve("tomorrow", mondayMorning, "Mars/Olympus")
	var zerr *UnknownZoneError
	assert.ErrorAs(t, err, &zerr)
}

func TestResult_Window(t *testing.T) {
	res, err := Resolve("tomorrow at 3pm", mondayMorning, "UTC")
	require.NoError(t, err)

	w := res.Window()
	assert.True(t, time.Date(2024, 7, 2, 15, 0, 0, 0, time.UTC).Equal(w.Start.UTC))
	assert.True(t, day(2024, 7, 3, time.UTC).Equal(w.End.UTC))
}
