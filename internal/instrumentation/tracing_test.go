package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithSession("s1").
		WithCapability("book_meeting").
		WithState("").
		WithEventID("evt").
		Build()

	got := map[string]string{}
	for _, a := range attrs {
		got[string(a.Key)] = a.Value.AsString()
	}
	want := map[string]string{
		SpanAttrSession:    "s1",
		SpanAttrCapability: "book_meeting",
		SpanAttrEventID:    "evt",
	}
	if len(got) != len(want) {
		t.Fatalf("attrs = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestStartCalendarSpan(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartCalendarSpan(context.Background(), BackendGoogle, OperationInsert)
	if GetTraceID(ctx) == "" || GetSpanID(ctx) == "" {
		t.Error("expected trace and span ids in context")
	}
	EndSpan(span, errors.New("boom"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "calendar.insert" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
}

func TestStartTurnAndOracleSpans(t *testing.T) {
	rec := withRecorder(t)

	ctx, turn := StartTurnSpan(context.Background(), "s1")
	_, oracle := StartOracleSpan(ctx, ProviderRules)
	EndSpan(oracle, nil)
	EndSpan(turn, nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "oracle.classify" || spans[1].Name() != "chat.turn" {
		t.Errorf("span names = %q, %q", spans[0].Name(), spans[1].Name())
	}
	if spans[0].Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("oracle span should be a child of the turn span")
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("turn status = %v, want ok", spans[1].Status().Code)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("GetTraceID() = %q, want empty", id)
	}
	if id := GetSpanID(context.Background()); id != "" {
		t.Errorf("GetSpanID() = %q, want empty", id)
	}
}
