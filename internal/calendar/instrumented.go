package calendar

import (
	"context"
	"time"

	"github.com/teemow/tailortalk/internal/instrumentation"
)

// Instrumented records metrics and spans around every gateway call.
type Instrumented struct {
	next    Gateway
	backend string
	metrics *instrumentation.Metrics
}

// NewInstrumented wraps next. metrics may be nil.
func NewInstrumented(next Gateway, backend string, metrics *instrumentation.Metrics) *Instrumented {
	return &Instrumented{next: next, backend: backend, metrics: metrics}
}

// RecordRetry is suitable as GoogleOptions.OnRetry.
func RecordRetry(metrics *instrumentation.Metrics, backend string) func(context.Context, string) {
	return func(ctx context.Context, operation string) {
		metrics.RecordCalendarRetry(ctx, backend, operation)
	}
}

func (i *Instrumented) observe(ctx context.Context, operation string, fn func(ctx context.Context) error) {
	ctx, span := instrumentation.StartCalendarSpan(ctx, i.backend, operation)
	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	i.metrics.RecordCalendarOperation(ctx, i.backend, operation, status, time.Since(start))
	instrumentation.EndSpan(span, err)
}

func (i *Instrumented) GetBusyIntervals(ctx context.Context, window TimeRange) (busy []TimeRange, err error) {
	i.observe(ctx, instrumentation.OperationFreeBusy, func(ctx context.Context) error {
		busy, err = i.next.GetBusyIntervals(ctx, window)
		return err
	})
	return busy, err
}

func (i *Instrumented) ListEvents(ctx context.Context, window TimeRange) (events []Event, err error) {
	i.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		events, err = i.next.ListEvents(ctx, window)
		return err
	})
	return events, err
}

func (i *Instrumented) InsertEvent(ctx context.Context, draft Event, key string) (created *Event, err error) {
	i.observe(ctx, instrumentation.OperationInsert, func(ctx context.Context) error {
		created, err = i.next.InsertEvent(ctx, draft, key)
		return err
	})
	return created, err
}

func (i *Instrumented) VerifyExists(ctx context.Context, eventID string) (ok bool, err error) {
	i.observe(ctx, instrumentation.OperationVerify, func(ctx context.Context) error {
		ok, err = i.next.VerifyExists(ctx, eventID)
		return err
	})
	return ok, err
}
