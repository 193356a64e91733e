package calendar

import (
	"fmt"
	"strings"
	"time"
)

const webBase = "https://calendar.google.com/calendar/u/0/r"

// Calendar web views.
const (
	ViewDay    = "day"
	ViewWeek   = "week"
	ViewMonth  = "month"
	ViewAgenda = "agenda"
)

// CalendarLink builds the web UI URL for view around date. An empty view
// defaults to week.
func CalendarLink(view string, date time.Time) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(view)); v {
	case "":
		return CalendarLink(ViewWeek, date)
	case ViewAgenda:
		return webBase + "/agenda", nil
	case ViewDay, ViewWeek, ViewMonth:
		return fmt.Sprintf("%s/%s/%04d/%02d/%02d", webBase, v, date.Year(), int(date.Month()), date.Day()), nil
	default:
		return "", fmt.Errorf("unknown calendar view %q: use day, week, month or agenda", view)
	}
}
