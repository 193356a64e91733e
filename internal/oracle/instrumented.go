package oracle

import (
	"context"
	"time"

	"github.com/teemow/tailortalk/internal/instrumentation"
)

// Instrumented records a span and a metric around every classification.
type Instrumented struct {
	next     Classifier
	provider string
	metrics  *instrumentation.Metrics
}

// NewInstrumented wraps next. metrics may be nil.
func NewInstrumented(next Classifier, provider string, metrics *instrumentation.Metrics) *Instrumented {
	return &Instrumented{next: next, provider: provider, metrics: metrics}
}

func (i *Instrumented) Classify(ctx context.Context, req Request) (Decision, error) {
	ctx, span := instrumentation.StartOracleSpan(ctx, i.provider)
	start := time.Now()

	d, err := i.next.Classify(ctx, req)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	i.metrics.RecordOracleCall(ctx, i.provider, status, time.Since(start))
	instrumentation.EndSpan(span, err)
	return d, err
}
