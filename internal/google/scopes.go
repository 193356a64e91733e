package google

import calendar "google.golang.org/api/calendar/v3"

// CalendarScopes are the OAuth scopes the scheduling agent needs: read
// free/busy and events, and create events on the user's calendar.
var CalendarScopes = []string{
	calendar.CalendarScope,
}
