package dates

import (
	"strings"
	"sync"
	"time"
)

// zoneAliases maps the abbreviations users type to IANA zones.
var zoneAliases = map[string]string{
	"GMT":  "UTC",
	"UTC":  "UTC",
	"IST":  "Asia/Kolkata",
	"AST":  "Canada/Atlantic",
	"EST":  "US/Eastern",
	"PST":  "US/Pacific",
	"CST":  "US/Central",
	"MST":  "US/Mountain",
	"AEST": "Australia/Sydney",
	"JST":  "Asia/Tokyo",
	"CET":  "Europe/Paris",
}

var zoneCache sync.Map // canonical name -> *time.Location

// CanonicalZone maps an abbreviation or IANA name to the IANA name used
// for storage. It returns UnknownZoneError for names that do not load.
func CanonicalZone(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &UnknownZoneError{Name: name}
	}
	if iana, ok := zoneAliases[strings.ToUpper(trimmed)]; ok {
		return iana, nil
	}
	if _, err := time.LoadLocation(trimmed); err != nil {
		return "", &UnknownZoneError{Name: name}
	}
	return trimmed, nil
}

// LoadZone returns the location for an IANA name or a known abbreviation.
func LoadZone(name string) (*time.Location, error) {
	canonical, err := CanonicalZone(name)
	if err != nil {
		return nil, err
	}
	if loc, ok := zoneCache.Load(canonical); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(canonical)
	if err != nil {
		return nil, &UnknownZoneError{Name: name}
	}
	zoneCache.Store(canonical, loc)
	return loc, nil
}

// MustLoadZone is LoadZone for names known to be valid; unknown names
// fall back to UTC.
func MustLoadZone(name string) *time.Location {
	loc, err := LoadZone(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// KnownAbbreviations lists the accepted timezone abbreviations.
func KnownAbbreviations() []string {
	return []string{"GMT", "UTC", "IST", "AST", "EST", "PST", "CST", "MST", "AEST", "JST", "CET"}
}
