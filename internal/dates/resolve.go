package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reMeridiem = regexp.MustCompile(`\b(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	reClock    = regexp.MustCompile(`\b(?:at\s+)?([01]?\d|2[0-3]):([0-5]\d)\b`)
	reISO      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reNumeric  = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})(?:[/.](\d{4}|\d{2}))?$`)
	reDayMonth = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)(?:\s+(\d{4}))?$`)
	reMonthDay = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})(?:st|nd|rd|th)?(?:\s+(\d{4}))?$`)
	reInN      = regexp.MustCompile(`^in\s+(\d+|a|an|one|two|three|four|five|six|seven)\s+(days?|weeks?)$`)
)

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var smallNumbers = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
}

// partsOfDay narrow a day to [from, to) hours.
var partsOfDay = map[string][2]int{
	"morning":   {9, 12},
	"afternoon": {12, 17},
	"evening":   {17, 21},
	"tonight":   {17, 21},
}

type clock struct {
	hour, minute int
	set          bool
}

// Resolve converts a natural-language date or time expression into a zoned
// instant or range. Relative expressions resolve against ref in zone.
func Resolve(text string, ref time.Time, zone string) (Result, error) {
	canonical, err := CanonicalZone(zone)
	if err != nil {
		return Result{}, err
	}
	loc, err := LoadZone(canonical)
	if err != nil {
		return Result{}, err
	}

	input := normalize(text)
	if input == "" {
		return Result{}, &ParseError{Input: text}
	}
	if input == "now" || input == "right now" {
		at := At(ref, canonical)
		return Result{Kind: KindInstant, Range: DateRange{Start: at, End: at}}, nil
	}

	rest, tod, err := extractClock(input, text)
	if err != nil {
		return Result{}, err
	}
	rest, part := extractPartOfDay(rest)
	rest = stripFiller(rest)

	today := startOfDay(ref.In(loc))
	day, span, err := resolveDay(rest, text, today)
	if err != nil {
		return Result{}, err
	}
	var res Result
	switch {
	case tod.set:
		t := time.Date(day.Year(), day.Month(), day.Day(), tod.hour, tod.minute, 0, 0, loc)
		at := At(t, canonical)
		res = Result{Kind: KindInstant, Range: DateRange{Start: at, End: at}}
		if t.Before(ref.Truncate(time.Minute)) {
			return Result{}, &PastDateError{Input: text, Resolved: t}
		}
	case part != "":
		h := partsOfDay[part]
		start := time.Date(day.Year(), day.Month(), day.Day(), h[0], 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), h[1], 0, 0, 0, loc)
		res = Result{Kind: KindRange, Range: DateRange{Start: At(start, canonical), End: At(end, canonical)}}
	default:
		end := day.AddDate(0, 0, span)
		res = Result{Kind: KindRange, Range: DateRange{Start: At(day, canonical), End: At(end, canonical)}}
	}

	if res.Kind == KindRange && !res.Range.End.UTC.After(ref) {
		return Result{}, &PastDateError{Input: text, Resolved: res.Range.Start.UTC}
	}
	return res, nil
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.NewReplacer(",", " ", "?", " ", "!", " ").Replace(s)
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

func stripFiller(s string) string {
	fields := strings.Fields(s)
	for len(fields) > 0 {
		switch fields[0] {
		case "on", "the", "for", "at", "coming":
			fields = fields[1:]
			continue
		}
		break
	}
	for len(fields) > 0 && fields[len(fields)-1] == "at" {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func extractClock(s, original string) (string, clock, error) {
	if m := reMeridiem.FindStringSubmatchIndex(s); m != nil {
		hour, _ := strconv.Atoi(s[m[2]:m[3]])
		minute := 0
		if m[4] >= 0 {
			minute, _ = strconv.Atoi(s[m[4]:m[5]])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return "", clock{}, &ParseError{Input: original}
		}
		if s[m[6]:m[7]] == "pm" && hour != 12 {
			hour += 12
		} else if s[m[6]:m[7]] == "am" && hour == 12 {
			hour = 0
		}
		return strings.TrimSpace(s[:m[0]] + " " + s[m[1]:]), clock{hour: hour, minute: minute, set: true}, nil
	}
	if m := reClock.FindStringSubmatchIndex(s); m != nil {
		hour, _ := strconv.Atoi(s[m[2]:m[3]])
		minute, _ := strconv.Atoi(s[m[4]:m[5]])
		return strings.TrimSpace(s[:m[0]] + " " + s[m[1]:]), clock{hour: hour, minute: minute, set: true}, nil
	}
	for word, hour := range map[string]int{"noon": 12, "midday": 12, "midnight": 0} {
		if idx := indexWord(s, word); idx >= 0 {
			rest := strings.TrimSpace(s[:idx] + " " + s[idx+len(word):])
			return rest, clock{hour: hour, set: true}, nil
		}
	}
	return s, clock{}, nil
}

func extractPartOfDay(s string) (string, string) {
	for part := range partsOfDay {
		if idx := indexWord(s, part); idx >= 0 {
			rest := " " + s[:idx] + " " + s[idx+len(part):] + " "
			rest = strings.ReplaceAll(rest, " in the ", " ")
			return strings.Join(strings.Fields(rest), " "), part
		}
	}
	return s, ""
}

// indexWord finds word in s on word boundaries.
func indexWord(s, word string) int {
	return strings.Index(" "+s+" ", " "+word+" ")
}

// resolveDay returns the local midnight of the first day and the number of
// days the expression spans.
func resolveDay(s, original string, today time.Time) (time.Time, int, error) {
	switch s {
	case "", "today", "this":
		return today, 1, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), 1, nil
	case "day after tomorrow":
		return today.AddDate(0, 0, 2), 1, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), 1, nil
	case "this week":
		return today, 7 - mondayIndex(today.Weekday()), nil
	case "next week":
		return today.AddDate(0, 0, 7-mondayIndex(today.Weekday())), 7, nil
	case "weekend", "this weekend":
		return upcomingWeekend(today)
	case "next weekend":
		saturday := today.AddDate(0, 0, int(time.Saturday-today.Weekday()))
		if today.Weekday() == time.Sunday {
			saturday = today.AddDate(0, 0, -1)
		}
		return saturday.AddDate(0, 0, 7), 2, nil
	case "next month":
		first := time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, today.Location())
		return first, daysIn(first.Month(), first.Year()), nil
	}

	if m := reInN.FindStringSubmatch(s); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		if strings.HasPrefix(m[2], "week") {
			n *= 7
		}
		return today.AddDate(0, 0, n), 1, nil
	}

	if day, ok := resolveWeekday(s, today); ok {
		return day, 1, nil
	}

	if m := reISO.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		t, err := explicitDate(original, year, month, day, today.Location())
		return t, 1, err
	}

	if m := reNumeric.FindStringSubmatch(s); m != nil {
		return resolveNumeric(original, m, today)
	}

	if m := reDayMonth.FindStringSubmatch(s); m != nil {
		if month, ok := months[m[2]]; ok {
			day, _ := strconv.Atoi(m[1])
			return resolveDayMonth(original, month, day, m[3], today)
		}
	}
	if m := reMonthDay.FindStringSubmatch(s); m != nil {
		if month, ok := months[m[1]]; ok {
			day, _ := strconv.Atoi(m[2])
			return resolveDayMonth(original, month, day, m[3], today)
		}
	}

	if month, ok := months[strings.TrimPrefix(s, "in ")]; ok {
		return resolveMonth(month, today)
	}

	return time.Time{}, 0, &ParseError{Input: original}
}

func resolveWeekday(s string, today time.Time) (time.Time, bool) {
	next := false
	switch {
	case strings.HasPrefix(s, "next "):
		next = true
		s = strings.TrimPrefix(s, "next ")
	case strings.HasPrefix(s, "this "):
		s = strings.TrimPrefix(s, "this ")
	}
	wd, ok := weekdays[s]
	if !ok {
		return time.Time{}, false
	}
	offset := (int(wd) - int(today.Weekday()) + 7) % 7
	if offset == 0 && next {
		offset = 7
	}
	return today.AddDate(0, 0, offset), true
}

func resolveNumeric(original string, m []string, today time.Time) (time.Time, int, error) {
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])

	var day, month int
	switch {
	case a > 12 && b > 12:
		return time.Time{}, 0, &InvalidDateError{Input: original, Reason: "no month component"}
	case a > 12:
		day, month = a, b
	case b > 12:
		month, day = a, b
	case a == b:
		day, month = a, b
	default:
		return time.Time{}, 0, &AmbiguousDateError{
			Input: original,
			Candidates: []string{
				fmt.Sprintf("%d %s", a, time.Month(b)),
				fmt.Sprintf("%s %d", time.Month(a), b),
			},
		}
	}
	return resolveDayMonth(original, time.Month(month), day, m[3], today)
}

func resolveDayMonth(original string, month time.Month, day int, yearText string, today time.Time) (time.Time, int, error) {
	if month < time.January || month > time.December {
		return time.Time{}, 0, &InvalidDateError{Input: original, Reason: "month out of range"}
	}
	if day < 1 || day > maxDaysIn(month) {
		return time.Time{}, 0, &InvalidDateError{Input: original, Reason: fmt.Sprintf("%s has no day %d", month, day)}
	}

	if yearText != "" {
		year, _ := strconv.Atoi(yearText)
		if year < 100 {
			year += 2000
		}
		t, err := explicitDate(original, year, int(month), day, today.Location())
		return t, 1, err
	}

	for year := today.Year(); year <= today.Year()+8; year++ {
		if day > daysIn(month, year) {
			continue
		}
		candidate := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
		if !candidate.Before(today) {
			return candidate, 1, nil
		}
	}
	return time.Time{}, 0, &InvalidDateError{Input: original, Reason: "no future occurrence"}
}

func resolveMonth(month time.Month, today time.Time) (time.Time, int, error) {
	year := today.Year()
	if month < today.Month() {
		year++
	}
	if month == today.Month() {
		return today, daysIn(month, year) - today.Day() + 1, nil
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, today.Location()), daysIn(month, year), nil
}

func explicitDate(original string, year, month, day int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, &InvalidDateError{Input: original, Reason: "month out of range"}
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, &InvalidDateError{Input: original, Reason: fmt.Sprintf("%s %d has no day %d", time.Month(month), year, day)}
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), nil
}

func upcomingWeekend(today time.Time) (time.Time, int, error) {
	switch today.Weekday() {
	case time.Saturday:
		return today, 2, nil
	case time.Sunday:
		return today, 1, nil
	}
	return today.AddDate(0, 0, int(time.Saturday-today.Weekday())), 2, nil
}

// mondayIndex numbers weekdays from Monday = 0.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func maxDaysIn(month time.Month) int {
	if month == time.February {
		return 29
	}
	return daysIn(month, 2023)
}
