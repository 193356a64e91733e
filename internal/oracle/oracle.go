// Package oracle classifies a chat message into one of the agent's
// capabilities plus structured arguments.
//
// A classifier only proposes; its output is untrusted and the caller
// validates the capability name and arguments before acting on them.
package oracle

import (
	"context"
	"encoding/json"
	"time"
)

// Capability names.
const (
	SearchSlots      = "search_slots"
	ListEvents       = "list_events"
	BookMeeting      = "book_meeting"
	OpenCalendarLink = "open_calendar_link"
	GetCurrentTime   = "get_current_time"
	ChangeTimezone   = "change_timezone"
)

// Capability describes one tool the classifier may choose.
type Capability struct {
	Name        string
	Description string
	// Parameters is a JSON schema object for the arguments.
	Parameters map[string]any
}

// Message is a prior turn sent as context.
type Message struct {
	Role    string
	Content string
}

// Request is the input to a classification.
type Request struct {
	Message      string
	History      []Message
	State        string
	Timezone     string
	Now          time.Time
	OfferedSlots int
	Capabilities []Capability
}

// Decision is the classifier's choice. An empty Capability means the
// classifier did not pick any tool.
type Decision struct {
	Capability string
	Arguments  json.RawMessage
}

// Classifier picks a capability for a message.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Decision, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, req Request) (Decision, error)

func (f Func) Classify(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Capabilities returns the fixed capability set.
func Capabilities() []Capability {
	return []Capability{
		{
			Name:        SearchSlots,
			Description: "Find free meeting slots within business hours for a day or range.",
			Parameters: object(map[string]any{
				"date": str("Date or range as the user said it, e.g. 'tomorrow afternoon', 'next week', '2024-07-02'."),
				"duration_minutes": map[string]any{
					"type": "integer", "minimum": 5, "maximum": 480,
					"description": "Meeting length in minutes.",
				},
			}),
		},
		{
			Name:        ListEvents,
			Description: "List the events already on the calendar.",
			Parameters: object(map[string]any{
				"date": str("First day to list, e.g. 'today' or 'friday'."),
				"days": map[string]any{
					"type": "integer", "minimum": 1, "maximum": 31,
					"description": "Number of days to list.",
				},
			}),
		},
		{
			Name:        BookMeeting,
			Description: "Select an offered slot, or confirm or decline the pending booking.",
			Parameters: object(map[string]any{
				"slot_number": map[string]any{
					"type": "integer", "minimum": 1,
					"description": "1-based number of the offered slot.",
				},
				"title":       str("Meeting title."),
				"description": str("Meeting description."),
				"confirmed": map[string]any{
					"type":        "boolean",
					"description": "True when the user confirms the pending booking, false when they decline.",
				},
			}),
		},
		{
			Name:        OpenCalendarLink,
			Description: "Give a link that opens the calendar.",
			Parameters: object(map[string]any{
				"view": map[string]any{
					"type": "string", "enum": []string{"day", "week", "month", "agenda"},
				},
				"date": str("Date to open the calendar at."),
			}),
		},
		{
			Name:        GetCurrentTime,
			Description: "Tell the current date and time in the user's timezone.",
			Parameters:  object(map[string]any{}),
		},
		{
			Name:        ChangeTimezone,
			Description: "Change the timezone times are shown in.",
			Parameters: object(map[string]any{
				"timezone": str("IANA name such as 'Asia/Kolkata' or an abbreviation such as 'IST'."),
			}, "timezone"),
		},
	}
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}
