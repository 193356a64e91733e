package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalZone(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"IST", "Asia/Kolkata", false},
		{"ist", "Asia/Kolkata", false},
		{"GMT", "UTC", false},
		{"pst", "US/Pacific", false},
		{"Europe/Berlin", "Europe/Berlin", false},
		{"", "", true},
		{"Nowhere/Special", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := CanonicalZone(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnownAbbreviationsLoad(t *testing.T) {
	for _, abbr := range KnownAbbreviations() {
		_, err := LoadZone(abbr)
		assert.NoError(t, err, abbr)
	}
}

func TestZonedInstant_RoundTrip(t *testing.T) {
	original := At(time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC), "US/Eastern")

	for _, zone := range []string{"Asia/Kolkata", "Australia/Sydney", "UTC", "Canada/Atlantic"} {
		t.Run(zone, func(t *testing.T) {
			converted := original.In(zone)
			back := converted.In(original.Zone)
			assert.True(t, back.Equal(original))
			assert.Equal(t, original.UTC, back.UTC)
			assert.Equal(t, original.Zone, back.Zone)
		})
	}
}

func TestZonedInstant_Local(t *testing.T) {
	zi := At(time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC), "Asia/Kolkata")
	assert.Equal(t, 15, zi.Local().Hour())
	assert.Equal(t, 30, zi.Local().Minute())
	assert.Equal(t, "15:30", zi.Format("15:04"))

	// At always stores UTC, whatever the input location.
	tokyo := MustLoadZone("JST")
	zi = At(time.Date(2024, 7, 1, 9, 0, 0, 0, tokyo), "JST")
	assert.Equal(t, time.UTC, zi.UTC.Location())
	assert.Equal(t, 0, zi.UTC.Hour())
}
