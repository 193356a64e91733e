package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

var fastRetry = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	AttemptTimeout:  time.Second,
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GoogleGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return NewGoogleGatewayWithService(svc, GoogleOptions{Retry: fastRetry})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, code int, reason string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": reason,
			"errors":  []map[string]string{{"reason": reason, "message": reason}},
		},
	})
}

var testWindow = TimeRange{
	Start: time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC),
}

func TestGoogleGateway_GetBusyIntervals(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/freeBusy"), r.URL.Path)
		var req calendar.FreeBusyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2024-07-02T00:00:00Z", req.TimeMin)
		assert.Equal(t, "primary", req.Items[0].Id)

		writeJSON(w, http.StatusOK, map[string]any{
			"calendars": map[string]any{
				"primary": map[string]any{
					"busy": []map[string]string{
						{"start": "2024-07-02T16:00:00+02:00", "end": "2024-07-02T17:00:00+02:00"},
					},
				},
			},
		})
	})

	busy, err := gw.GetBusyIntervals(context.Background(), testWindow)
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, time.Date(2024, 7, 2, 14, 0, 0, 0, time.UTC), busy[0].Start)
	assert.Equal(t, time.UTC, busy[0].Start.Location())
}

func TestGoogleGateway_ListEventsPaginates(t *testing.T) {
	var calls atomic.Int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"id": "a", "summary": "Standup", "start": map[string]string{"dateTime": "2024-07-02T09:00:00Z"}, "end": map[string]string{"dateTime": "2024-07-02T09:15:00Z"}},
					{"id": "gone", "status": "cancelled"},
				},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{
					"id": "b", "summary": "Offsite",
					"start": map[string]string{"date": "2024-07-02"}, "end": map[string]string{"date": "2024-07-03"},
					"extendedProperties": map[string]any{"private": map[string]string{"tailortalkKey": "k1"}},
				},
			},
		})
	})

	events, err := gw.ListEvents(context.Background(), testWindow)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Title)
	assert.True(t, events[1].AllDay)
	assert.Equal(t, "k1", events[1].IdempotencyKey)
}

func TestGoogleGateway_InsertEvent(t *testing.T) {
	start := time.Date(2024, 7, 2, 13, 0, 0, 0, time.UTC)
	draft := Event{Title: "Sync", Start: start, End: start.Add(time.Hour), TimeZone: "Asia/Kolkata"}

	t.Run("creates event with key", func(t *testing.T) {
		var inserted calendar.Event
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
				return
			}
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &inserted))
			inserted.Id = "evt-1"
			inserted.HtmlLink = "https://calendar.google.com/event?eid=evt-1"
			writeJSON(w, http.StatusOK, inserted)
		})

		ev, err := gw.InsertEvent(context.Background(), draft, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "evt-1", ev.ID)
		assert.Equal(t, "key-1", ev.IdempotencyKey)
		assert.Equal(t, "Asia/Kolkata", inserted.Start.TimeZone)
		assert.Equal(t, "key-1", inserted.ExtendedProperties.Private[keyProperty])
		assert.True(t, ev.Start.Equal(start))
	})

	t.Run("returns event already carrying key", func(t *testing.T) {
		var posts atomic.Int32
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				posts.Add(1)
			}
			if r.URL.Query().Get("privateExtendedProperty") == "tailortalkKey=key-1" {
				writeJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{
					{"id": "evt-old", "summary": "Sync", "start": map[string]string{"dateTime": "2024-07-02T13:00:00Z"}, "end": map[string]string{"dateTime": "2024-07-02T14:00:00Z"}},
				}})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		})

		ev, err := gw.InsertEvent(context.Background(), draft, "key-1")
		require.NoError(t, err)
		assert.Equal(t, "evt-old", ev.ID)
		assert.Zero(t, posts.Load())
	})

	t.Run("retries server errors without duplicating", func(t *testing.T) {
		var posts atomic.Int32
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
				return
			}
			if posts.Add(1) == 1 {
				apiError(w, http.StatusServiceUnavailable, "backendError")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "evt-2", "summary": "Sync"})
		})

		ev, err := gw.InsertEvent(context.Background(), draft, "key-2")
		require.NoError(t, err)
		assert.Equal(t, "evt-2", ev.ID)
		assert.EqualValues(t, 2, posts.Load())
	})
}

func TestGoogleGateway_AuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusUnauthorized, "authError")
	})

	_, err := gw.GetBusyIntervals(context.Background(), testWindow)
	var authErr *AuthExpiredError
	require.True(t, errors.As(err, &authErr), "got %v", err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGoogleGateway_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		apiError(w, http.StatusForbidden, "rateLimitExceeded")
	})

	_, err := gw.ListEvents(context.Background(), testWindow)
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.EqualValues(t, fastRetry.MaxAttempts, calls.Load())
}

func TestGoogleGateway_VerifyExists(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/events/live"):
			writeJSON(w, http.StatusOK, map[string]any{"id": "live", "status": "confirmed"})
		case strings.HasSuffix(r.URL.Path, "/events/cancelled"):
			writeJSON(w, http.StatusOK, map[string]any{"id": "cancelled", "status": "cancelled"})
		case strings.HasSuffix(r.URL.Path, "/events/deleted"):
			apiError(w, http.StatusGone, "deleted")
		default:
			apiError(w, http.StatusNotFound, "notFound")
		}
	})

	tests := []struct {
		id   string
		want bool
	}{
		{"live", true},
		{"cancelled", false},
		{"deleted", false},
		{"missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			ok, err := gw.VerifyExists(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestToEvent_Nil(t *testing.T) {
	assert.Equal(t, Event{}, toEvent(nil))
}
