package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestMetrics_Record(t *testing.T) {
	ctx := context.Background()
	m := newTestProvider(t).Metrics()

	// None of these may panic.
	m.RecordHTTPRequest(ctx, "POST", "/api/chat", 200, 120*time.Millisecond)
	m.RecordChatTurn(ctx, CapabilitySearchSlots, "SLOTS_OFFERED", StatusSuccess, time.Second)
	m.RecordChatTurn(ctx, "drop_tables", "", StatusError, time.Second)
	m.RecordOracleCall(ctx, ProviderOpenAI, StatusSuccess, 800*time.Millisecond)
	m.RecordCalendarOperation(ctx, BackendGoogle, OperationFreeBusy, StatusSuccess, 300*time.Millisecond)
	m.RecordCalendarRetry(ctx, BackendGoogle, OperationInsert)
	m.RecordBooking(ctx, BookingConflict)
	m.RecordToolInvocation(ctx, "chat_send_message", StatusSuccess, time.Second)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)
}

func TestMetrics_NoOpWhenDisabled(t *testing.T) {
	ctx := context.Background()
	m := &Metrics{}

	m.RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
	m.RecordChatTurn(ctx, CapabilityBookMeeting, "BOOKED", StatusSuccess, time.Second)
	m.RecordCalendarOperation(ctx, BackendICS, OperationList, StatusSuccess, time.Millisecond)
	m.RecordBooking(ctx, BookingBooked)
	m.IncrementActiveSessions(ctx)

	var nilMetrics *Metrics
	nilMetrics.RecordOracleCall(ctx, ProviderRules, StatusSuccess, time.Millisecond)
}

func TestNormalizeCapability(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"search_slots", "search_slots"},
		{"change_timezone", "change_timezone"},
		{"", "none"},
		{"none", "none"},
		{"send_email", "unknown"},
		{"SEARCH_SLOTS", "unknown"},
	}
	for _, tt := range tests {
		if got := NormalizeCapability(tt.in); got != tt.want {
			t.Errorf("NormalizeCapability(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
