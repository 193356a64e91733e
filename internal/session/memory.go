package session

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/instrumentation"
)

// MemoryStore is an in-process conversation.Store.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	metrics *instrumentation.Metrics

	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]*keyLock
}

type memoryEntry struct {
	session   *conversation.Session
	expiresAt time.Time
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithMetrics records the active session count.
func WithMetrics(m *instrumentation.Metrics) MemoryOption {
	return func(s *MemoryStore) { s.metrics = m }
}

// NewMemoryStore creates a store evicting sessions idle for longer than
// ttl. A ttl <= 0 disables eviction.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update implements conversation.Store.
func (s *MemoryStore) Update(ctx context.Context, id string, fn conversation.UpdateFunc) (*conversation.Session, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if ok && s.expired(entry, now) {
		delete(s.sessions, id)
		s.metrics.DecrementActiveSessions(ctx)
		ok = false
	}
	s.mu.Unlock()

	var working *conversation.Session
	if ok {
		working = entry.session.Clone()
	} else {
		working = conversation.NewSession(id, now)
	}

	if err := fn(working); err != nil {
		return nil, err
	}

	working.UpdatedAt = now.UTC()
	s.mu.Lock()
	s.sessions[id] = memoryEntry{session: working.Clone(), expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	if !ok {
		s.metrics.IncrementActiveSessions(ctx)
	}
	return working, nil
}

// Get implements conversation.Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*conversation.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.expired(entry, s.now()) {
		return nil, conversation.ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

// Delete implements conversation.Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return conversation.ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.metrics.DecrementActiveSessions(ctx)
	if s.expired(entry, s.now()) {
		return conversation.ErrSessionNotFound
	}
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
			s.metrics.DecrementActiveSessions(ctx)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (s *MemoryStore) Count() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, entry := range s.sessions {
		if !s.expired(entry, now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(e memoryEntry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(e.expiresAt)
}

// lock acquires the per-id lock. The lock entry is removed once no
// caller references it.
func (s *MemoryStore) lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
