package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/tailortalk/internal/conversation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryStore_UpdateCreatesSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)

	sess, err := store.Update(ctx, "s1", func(s *conversation.Session) error {
		assert.Equal(t, conversation.StateAwaitingIntent, s.State)
		s.Timezone = "Asia/Kolkata"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", got.Timezone)
	assert.Equal(t, 1, store.Count())
}

func TestMemoryStore_FailedUpdateIsDiscarded(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(s *conversation.Session) error {
		s.Timezone = "UTC"
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Update(ctx, "s1", func(s *conversation.Session) error {
		s.Timezone = "Europe/Berlin"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "UTC", got.Timezone)

	_, err = store.Update(ctx, "s2", func(*conversation.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	_, err = store.Get(ctx, "s2")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_, err := store.Update(ctx, "s1", func(s *conversation.Session) error {
		s.AppendTurn(conversation.RoleUser, "hi", time.Now(), 0)
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	got.History[0].Content = "changed"

	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.History[0].Content)
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(30*time.Minute, WithClock(clock.Now))
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(s *conversation.Session) error {
		s.LastEventID = "evt-1"
		return nil
	})
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)

	// Touching the session extends its lifetime.
	_, err = store.Update(ctx, "s1", func(*conversation.Session) error { return nil })
	require.NoError(t, err)
	clock.Advance(29 * time.Minute)
	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
	assert.Zero(t, store.Count())

	sess, err := store.Update(ctx, "s1", func(*conversation.Session) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, sess.LastEventID, "expired session is recreated")
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, WithClock(clock.Now))
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Update(ctx, id, func(*conversation.Session) error { return nil })
		require.NoError(t, err)
	}
	clock.Advance(2 * time.Minute)
	_, err := store.Update(ctx, "d", func(*conversation.Session) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 3, store.Sweep(ctx))
	assert.Equal(t, 1, store.Count())
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	_, err := store.Update(ctx, "s1", func(*conversation.Session) error { return nil })
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "s1"))
	assert.ErrorIs(t, store.Delete(ctx, "s1"), conversation.ErrSessionNotFound)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestMemoryStore_UpdatesAreSerialisedPerSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "shared", func(s *conversation.Session) error {
				s.AppendTurn(conversation.RoleUser, "msg", time.Now(), 0)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got.History, n)
	assert.Empty(t, store.locks)
}

func TestMemoryStore_DifferentSessionsDoNotBlock(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	entered := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Update(ctx, "slow", func(*conversation.Session) error {
			close(entered)
			<-proceed
			return nil
		})
	}()
	<-entered

	_, err := store.Update(ctx, "fast", func(*conversation.Session) error { return nil })
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Update(waitCtx, "slow", func(*conversation.Session) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proceed)
	<-done
}
