package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/logging"
)

// ErrSessionBusy is returned when the session lock could not be acquired
// within the configured wait.
var ErrSessionBusy = errors.New("session is busy")

// ErrLockLost is returned when the session lock expired before the update
// could be stored. The update is discarded.
var ErrLockLost = fmt.Errorf("%w: session lock lost", ErrSessionBusy)

var errLocked = errors.New("lock held")

const (
	defaultKeyPrefix   = "tailortalk:"
	defaultLockTTL     = 2 * time.Minute
	defaultLockTimeout = 10 * time.Second
)

const (
	releaseLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
	extendLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`
	storeLua = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`
)

var (
	// releaseScript deletes the lock only if it is still ours.
	releaseScript = valkey.NewLuaScript(releaseLua)
	// extendScript pushes the lock expiry out while we still hold it.
	extendScript = valkey.NewLuaScript(extendLua)
	// storeScript writes the session only while we still hold the lock.
	storeScript = valkey.NewLuaScript(storeLua)
)

// ValkeyConfig configures the connection to Valkey.
type ValkeyConfig struct {
	URL        string
	Password   string
	TLSEnabled bool
	DB         int
}

// NewValkeyClient connects to Valkey.
func NewValkeyClient(cfg ValkeyConfig) (valkey.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("valkey URL is required")
	}
	opt := valkey.ClientOption{
		InitAddress:  []string{cfg.URL},
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	}
	if cfg.TLSEnabled {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", cfg.URL, err)
	}
	return client, nil
}

// ValkeyOptions configures a ValkeyStore.
type ValkeyOptions struct {
	KeyPrefix string
	// TTL is the inactivity window; every update extends it.
	TTL time.Duration
	// LockTTL bounds how long a crashed holder can block a session. A live
	// holder renews the lock every LockTTL/3.
	LockTTL time.Duration
	// LockTimeout bounds how long Update waits for a busy session.
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// ValkeyStore is a conversation.Store backed by Valkey.
type ValkeyStore struct {
	client valkey.Client
	opts   ValkeyOptions
	logger *slog.Logger
	now    func() time.Time
}

// NewValkeyStore creates a store using client.
func NewValkeyStore(client valkey.Client, opts ValkeyOptions) *ValkeyStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ValkeyStore{
		client: client,
		opts:   opts,
		logger: logging.WithComponent(opts.Logger, "session_store"),
		now:    time.Now,
	}
}

func (s *ValkeyStore) sessionKey(id string) string { return s.opts.KeyPrefix + "session:" + id }
func (s *ValkeyStore) lockKey(id string) string    { return s.opts.KeyPrefix + "lock:" + id }

// Update implements conversation.Store.
func (s *ValkeyStore) Update(ctx context.Context, id string, fn conversation.UpdateFunc) (*conversation.Session, error) {
	token, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, id, token)

	stop := s.keepAlive(ctx, id, token)
	defer stop()

	working, err := s.load(ctx, id)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		working = conversation.NewSession(id, s.now())
	} else if err != nil {
		return nil, err
	}

	err = fn(working)
	if lost := stop(); lost {
		return nil, ErrLockLost
	}
	if err != nil {
		return nil, err
	}

	working.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(working)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	// The turn may have used up ctx; its result is still stored.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	stored, err := storeScript.Exec(wctx, s.client,
		[]string{s.lockKey(id), s.sessionKey(id)},
		[]string{token, string(raw), strconv.FormatInt(s.opts.TTL.Milliseconds(), 10)},
	).AsInt64()
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if stored == 0 {
		s.logger.Warn("session lock expired before store", logging.Session(id))
		return nil, ErrLockLost
	}
	return working, nil
}

// keepAlive renews the lock until the returned stop func is called. stop
// reports whether the lock was lost in the meantime and may be called more
// than once.
func (s *ValkeyStore) keepAlive(ctx context.Context, id, token string) (stop func() bool) {
	done := make(chan struct{})
	var (
		wg   sync.WaitGroup
		once sync.Once
		lost bool
	)
	interval := s.opts.LockTTL / 3
	ttl := strconv.FormatInt(s.opts.LockTTL.Milliseconds(), 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interval)
			n, err := extendScript.Exec(ectx, s.client, []string{s.lockKey(id)}, []string{token, ttl}).AsInt64()
			cancel()
			switch {
			case err != nil:
				s.logger.Warn("failed to extend session lock", logging.Session(id), logging.Err(err))
			case n == 0:
				lost = true
				return
			}
		}
	}()

	return func() bool {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
		return lost
	}
}

// Get implements conversation.Store.
func (s *ValkeyStore) Get(ctx context.Context, id string) (*conversation.Session, error) {
	return s.load(ctx, id)
}

// Delete implements conversation.Store.
func (s *ValkeyStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Do(ctx, s.client.B().Del().Key(s.sessionKey(id)).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return conversation.ErrSessionNotFound
	}
	return nil
}

// Ping checks connectivity.
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) load(ctx context.Context, id string) (*conversation.Session, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.sessionKey(id)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, conversation.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess conversation.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// A record we cannot read is treated as expired.
		s.logger.Warn("discarding unreadable session", logging.Session(id), logging.Err(err))
		return nil, conversation.ErrSessionNotFound
	}
	if !sess.State.Valid() {
		s.logger.Warn("discarding session in unknown state", logging.Session(id), logging.State(string(sess.State)))
		return nil, conversation.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *ValkeyStore) acquire(ctx context.Context, id string) (string, error) {
	token := uuid.NewString()
	key := s.lockKey(id)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(token).Nx().
			PxMilliseconds(s.opts.LockTTL.Milliseconds()).Build()).Error()
		switch {
		case valkey.IsValkeyNil(err):
			return struct{}{}, errLocked
		case err != nil:
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to lock session: %w", err))
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(s.opts.LockTimeout))
	if errors.Is(err, errLocked) {
		return "", ErrSessionBusy
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *ValkeyStore) release(ctx context.Context, id, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := releaseScript.Exec(ctx, s.client, []string{s.lockKey(id)}, []string{token}).Error(); err != nil {
		s.logger.Warn("failed to release session lock", logging.Session(id), logging.Err(err))
	}
}
