package instrumentation

// Capability label values. Anything the oracle invents outside this set is
// recorded as "unknown" so a misbehaving model cannot explode label
// cardinality.
const (
	CapabilitySearchSlots      = "search_slots"
	CapabilityListEvents       = "list_events"
	CapabilityBookMeeting      = "book_meeting"
	CapabilityOpenCalendarLink = "open_calendar_link"
	CapabilityGetCurrentTime   = "get_current_time"
	CapabilityChangeTimezone   = "change_timezone"
	CapabilityNone             = "none"
	CapabilityUnknown          = "unknown"
)

var knownCapabilities = map[string]bool{
	CapabilitySearchSlots:      true,
	CapabilityListEvents:       true,
	CapabilityBookMeeting:      true,
	CapabilityOpenCalendarLink: true,
	CapabilityGetCurrentTime:   true,
	CapabilityChangeTimezone:   true,
	CapabilityNone:             true,
}

// NormalizeCapability maps a capability name to a bounded label value.
//
// Example:
//
//	NormalizeCapability("search_slots")  // "search_slots"
//	NormalizeCapability("")              // "none"
//	NormalizeCapability("delete_all")    // "unknown"
func NormalizeCapability(name string) string {
	if name == "" {
		return CapabilityNone
	}
	if knownCapabilities[name] {
		return name
	}
	return CapabilityUnknown
}

// Calendar operation label values.
const (
	OperationFreeBusy = "freebusy"
	OperationList     = "list"
	OperationInsert   = "insert"
	OperationVerify   = "verify"
)

// Booking outcome label values.
const (
	BookingBooked      = "booked"
	BookingReplayed    = "replayed"
	BookingConflict    = "conflict"
	BookingFailed      = "failed"
	BookingUnconfirmed = "unconfirmed"
)
