package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/teemow/tailortalk/internal/logging"
)

// RetryPolicy bounds how gateway calls are retried.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is four attempts starting at 500ms, each bounded by 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		AttemptTimeout:  30 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// retrier runs gateway operations under a RetryPolicy.
type retrier struct {
	policy   RetryPolicy
	classify func(error) (error, failure)
	logger   *slog.Logger
	// onRetry is called before every retried attempt.
	onRetry func(ctx context.Context, operation string)
}

func doRetry[T any](ctx context.Context, r retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		actx := ctx
		if r.policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.policy.AttemptTimeout)
			defer cancel()
		}

		res, err := fn(actx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, backoff.Permanent(ctx.Err())
		}

		classified, kind := r.classify(err)
		if kind == failPermanent {
			return res, backoff.Permanent(classified)
		}
		var limited *RateLimitedError
		if errors.As(classified, &limited) && limited.RetryAfter > 0 {
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < limited.RetryAfter {
				return res, backoff.Permanent(classified)
			}
			return res, &retryHint{error: classified, wait: limited.RetryAfter}
		}
		return res, classified
	}

	maxTries := r.policy.MaxAttempts
	if maxTries == 0 {
		maxTries = 1
	}

	res, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(r.policy.backOff()),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			if r.logger != nil {
				r.logger.Warn("retrying calendar operation",
					logging.Operation(operation),
					slog.Duration("backoff", next),
					logging.Err(err),
				)
			}
			if r.onRetry != nil {
				r.onRetry(ctx, operation)
			}
		}),
	)
	var hint *retryHint
	if errors.As(err, &hint) {
		err = hint.error
	}
	return res, err
}

// retryHint makes the backoff loop wait for a server supplied Retry-After.
type retryHint struct {
	error
	wait time.Duration
}

func (h *retryHint) Unwrap() error { return h.error }

func (h *retryHint) As(target any) bool {
	if t, ok := target.(**backoff.RetryAfterError); ok {
		*t = &backoff.RetryAfterError{Duration: h.wait}
		return true
	}
	return false
}
