package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/teemow/tailortalk/internal/dates"
)

var (
	reSlotRef   = regexp.MustCompile(`\b(?:slot|option|number|no\.?|#)\s*(\d{1,2})\b`)
	reBareNum   = regexp.MustCompile(`^\s*#?(\d{1,2})(?:\s|[,.!)]|$)`)
	reMinutes   = regexp.MustCompile(`\b(\d{1,3})\s*(?:-\s*)?(?:m|min|mins|minute|minutes)\b`)
	reHours     = regexp.MustCompile(`\b(\d{1,2}(?:\.\d+)?)\s*(?:-\s*)?(?:h|hr|hrs|hour|hours)\b`)
	reTitle     = regexp.MustCompile(`(?i)\b(?:titled|called|named)\s+["“']?([^"”']+?)["”']?\s*$`)
	reQuoted    = regexp.MustCompile(`["“]([^"”]+)["”]`)
	reZoneToken = regexp.MustCompile(`[A-Za-z_]+/[A-Za-z_]+(?:/[A-Za-z_]+)?|\b[A-Za-z]{2,4}\b`)
)

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

var (
	affirmative = []string{"yes", "yep", "yeah", "sure", "confirm", "confirmed", "ok", "okay", "go ahead", "book it", "please do", "sounds good"}
	negative    = []string{"no", "nope", "cancel", "don't", "dont", "not that", "another", "different"}
	timeWords   = []string{"what time", "current time", "time is it", "today's date", "todays date", "what day is"}
	linkWords   = []string{"link", "open calendar", "open my calendar", "show calendar", "show my calendar"}
	listWords   = []string{"events", "what's on", "whats on", "agenda", "what do i have", "my schedule", "my meetings"}
	searchWords = []string{"free", "available", "availability", "slot", "book", "schedule", "meeting", "meet", "call", "appointment", "time"}
	zoneWords   = []string{"timezone", "time zone", "switch to", "change to", "convert to"}
)

// Date phrases never start or end with a connective, and a few single
// words are ordinary English more often than dates.
var (
	leadingStop  = map[string]bool{"on": true, "the": true, "for": true, "at": true, "coming": true, "a": true, "an": true, "of": true}
	trailingStop = map[string]bool{"on": true, "the": true, "for": true, "at": true, "a": true, "an": true, "of": true, "in": true, "this": true, "next": true}
	loneStop     = map[string]bool{"this": true, "may": true, "sat": true, "sun": true, "mar": true, "now": true, "in": true, "next": true}
)

// Rules is a deterministic keyword classifier. It needs no network access
// and is used when no language model is configured.
type Rules struct{}

// NewRules returns a rule based classifier.
func NewRules() *Rules { return &Rules{} }

// Classify implements Classifier.
func (r *Rules) Classify(_ context.Context, req Request) (Decision, error) {
	text := strings.TrimSpace(req.Message)
	lower := strings.ToLower(text)
	zone := req.Timezone
	if zone == "" {
		zone = "UTC"
	}

	if tz, ok := mentionedZone(text); ok && containsAny(lower, zoneWords...) {
		return decide(ChangeTimezone, map[string]any{"timezone": tz})
	}
	if containsAny(lower, zoneWords...) {
		fields := strings.Fields(text)
		return decide(ChangeTimezone, map[string]any{"timezone": strings.Trim(fields[len(fields)-1], ".!?")})
	}

	if containsAny(lower, timeWords...) {
		return decide(GetCurrentTime, map[string]any{})
	}

	if containsAny(lower, linkWords...) {
		args := map[string]any{}
		for _, view := range []string{"day", "week", "month", "agenda"} {
			if hasWord(lower, view) {
				args["view"] = view
				break
			}
		}
		if d := extractDate(lower, req, zone); d != "" {
			args["date"] = d
		}
		return decide(OpenCalendarLink, args)
	}

	if req.State == "CONFIRMATION_PENDING" {
		switch {
		case hasPhrase(lower, negative...):
			return decide(BookMeeting, map[string]any{"confirmed": false})
		case hasPhrase(lower, affirmative...):
			args := map[string]any{"confirmed": true}
			if title := extractTitle(text); title != "" {
				args["title"] = title
			}
			return decide(BookMeeting, args)
		}
	}

	if req.OfferedSlots > 0 {
		if n, ok := slotNumber(lower); ok {
			args := map[string]any{"slot_number": n}
			if title := extractTitle(text); title != "" {
				args["title"] = title
			}
			return decide(BookMeeting, args)
		}
	}

	if containsAny(lower, listWords...) {
		args := map[string]any{}
		if d := extractDate(lower, req, zone); d != "" {
			args["date"] = d
		}
		return decide(ListEvents, args)
	}

	date := extractDate(lower, req, zone)
	if containsAny(lower, searchWords...) || date != "" {
		args := map[string]any{}
		if date != "" {
			args["date"] = date
		}
		if minutes := extractDuration(lower); minutes > 0 {
			args["duration_minutes"] = minutes
		}
		return decide(SearchSlots, args)
	}

	return Decision{}, nil
}

func decide(capability string, args map[string]any) (Decision, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Capability: capability, Arguments: raw}, nil
}

// extractDate returns the longest phrase in text the date resolver
// recognises, or "" if there is none. Phrases that resolve to an error
// other than ParseError still count: the agent reports that error.
func extractDate(text string, req Request, zone string) string {
	text = reMinutes.ReplaceAllString(text, " ")
	text = reHours.ReplaceAllString(text, " ")
	words := strings.Fields(strings.NewReplacer(",", " ", "?", " ", "!", " ").Replace(text))
	for i := range words {
		words[i] = strings.TrimSuffix(words[i], ".")
	}

	const maxWords = 6
	for size := min(maxWords, len(words)); size > 0; size-- {
		for i := 0; i+size <= len(words); i++ {
			phrase := words[i : i+size]
			if leadingStop[phrase[0]] || trailingStop[phrase[len(phrase)-1]] || (size == 1 && loneStop[phrase[0]]) {
				continue
			}
			candidate := strings.Join(phrase, " ")
			_, err := dates.Resolve(candidate, req.Now, zone)
			var parseErr *dates.ParseError
			var zoneErr *dates.UnknownZoneError
			if err == nil || (!errors.As(err, &parseErr) && !errors.As(err, &zoneErr)) {
				return candidate
			}
		}
	}
	return ""
}

func extractDuration(text string) int {
	if m := reMinutes.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := reHours.FindStringSubmatch(text); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		return int(h * 60)
	}
	switch {
	case strings.Contains(text, "half an hour"), strings.Contains(text, "half hour"):
		return 30
	case strings.Contains(text, "an hour"):
		return 60
	}
	return 0
}

func extractTitle(text string) string {
	if m := reTitle.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := reQuoted.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func slotNumber(text string) (int, bool) {
	if m := reSlotRef.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := reBareNum.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	for word, n := range ordinals {
		if hasWord(text, word) {
			return n, true
		}
	}
	return 0, false
}

// mentionedZone finds an IANA name or known abbreviation in text.
func mentionedZone(text string) (string, bool) {
	known := map[string]bool{}
	for _, abbr := range dates.KnownAbbreviations() {
		known[abbr] = true
	}
	for _, tok := range reZoneToken.FindAllString(text, -1) {
		if !strings.Contains(tok, "/") && !known[strings.ToUpper(tok)] {
			continue
		}
		if tz, err := dates.CanonicalZone(tok); err == nil {
			return tz, true
		}
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasPhrase matches whole words or phrases.
func hasPhrase(s string, phrases ...string) bool {
	padded := " " + strings.NewReplacer(",", " ", ".", " ", "!", " ", "?", " ").Replace(s) + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func hasWord(s, word string) bool {
	return hasPhrase(s, word)
}
