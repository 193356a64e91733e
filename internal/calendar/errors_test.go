package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestClassifyGoogle(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  failure
		wantAuth  bool
		wantLimit bool
	}{
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, failPermanent, true, false},
		{"refresh failure", fmt.Errorf("wrapped: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant"}), failPermanent, true, false},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, failTransient, false, true},
		{"quota 403", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, failTransient, false, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, failPermanent, false, false},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, failTransient, false, false},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, failPermanent, false, false},
		{"timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), failTransient, false, false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, failTransient, false, false},
		{"other", errors.New("boom"), failPermanent, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := classifyGoogle(tt.err)
			assert.Equal(t, tt.wantKind, kind)

			var authErr *AuthExpiredError
			assert.Equal(t, tt.wantAuth, errors.As(got, &authErr))
			var rl *RateLimitedError
			assert.Equal(t, tt.wantLimit, errors.As(got, &rl))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, retryAfter(h))
	assert.Zero(t, retryAfter(nil))

	err := &RateLimitedError{RetryAfter: 7 * time.Second, Err: errors.New("quota")}
	assert.Contains(t, err.Error(), "retry after 7s")
}

func TestDoRetry(t *testing.T) {
	r := retrier{policy: fastRetry, classify: classifyGoogle}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		attempts := 0
		retried := 0
		r := r
		r.onRetry = func(context.Context, string) { retried++ }

		got, err := doRetry(context.Background(), r, "list", func(context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", &googleapi.Error{Code: http.StatusInternalServerError}
			}
			return "ok", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 2, retried)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		attempts := 0
		_, err := doRetry(context.Background(), r, "insert", func(context.Context) (int, error) {
			attempts++
			return 0, &googleapi.Error{Code: http.StatusBadRequest}
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("applies attempt timeout", func(t *testing.T) {
		r := r
		r.policy.AttemptTimeout = 5 * time.Millisecond
		r.policy.MaxAttempts = 2
		attempts := 0
		_, err := doRetry(context.Background(), r, "freebusy", func(ctx context.Context) (int, error) {
			attempts++
			<-ctx.Done()
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 2, attempts)
	})

	transient := func(err error) (error, failure) { return err, failTransient }

	t.Run("waits for retry-after hint", func(t *testing.T) {
		r := r
		r.classify = transient
		r.policy.MaxAttempts = 2
		var first, second time.Time
		_, err := doRetry(context.Background(), r, "insert", func(context.Context) (int, error) {
			if first.IsZero() {
				first = time.Now()
				return 0, &RateLimitedError{RetryAfter: 50 * time.Millisecond}
			}
			second = time.Now()
			return 1, nil
		})
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, second.Sub(first), 50*time.Millisecond)
	})

	t.Run("exhausted rate limit surfaces RateLimitedError", func(t *testing.T) {
		r := r
		r.classify = transient
		r.policy.MaxAttempts = 2
		attempts := 0
		_, err := doRetry(context.Background(), r, "insert", func(context.Context) (int, error) {
			attempts++
			return 0, &RateLimitedError{RetryAfter: time.Millisecond}
		})
		var limited *RateLimitedError
		assert.ErrorAs(t, err, &limited)
		assert.IsType(t, &RateLimitedError{}, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("hint beyond deadline gives up", func(t *testing.T) {
		r := r
		r.classify = transient
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		attempts := 0
		start := time.Now()
		_, err := doRetry(ctx, r, "list", func(context.Context) (int, error) {
			attempts++
			return 0, &RateLimitedError{RetryAfter: time.Minute}
		})
		var limited *RateLimitedError
		assert.ErrorAs(t, err, &limited)
		assert.Equal(t, 1, attempts)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("cancelled parent is not retried", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		attempts := 0
		_, err := doRetry(ctx, r, "list", func(ctx context.Context) (int, error) {
			attempts++
			return 0, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.LessOrEqual(t, attempts, 1)
	})
}
