package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/teemow/tailortalk/internal/agent"
	"github.com/teemow/tailortalk/internal/availability"
	"github.com/teemow/tailortalk/internal/booking"
	"github.com/teemow/tailortalk/internal/calendar"
	"github.com/teemow/tailortalk/internal/config"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/google"
	"github.com/teemow/tailortalk/internal/instrumentation"
	"github.com/teemow/tailortalk/internal/ledger"
	"github.com/teemow/tailortalk/internal/oracle"
	"github.com/teemow/tailortalk/internal/server"
	"github.com/teemow/tailortalk/internal/session"
)

// sweepInterval is how often the memory store evicts idle sessions.
const sweepInterval = time.Minute

// app is the assembled engine: the orchestrator and what it owns.
type app struct {
	agent   *agent.Agent
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	checks  map[string]server.Check
	closers []func() error
	logger  *slog.Logger
}

// Close releases the resources opened by buildApp in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bind hands the orchestrator, checks and instrumentation to sc.
func (a *app) bind(sc *server.ServerContext) {
	for name, check := range a.checks {
		sc.AddCheck(name, check)
	}
	sc.SetInstrumentation(a.metrics, a.audit)
}

// buildApp wires the calendar backend, session store, booking ledger and
// oracle selected by cfg into an agent.
func buildApp(ctx context.Context, cfg *config.Config, provider *instrumentation.Provider, audit instrumentation.AuditLoggingConfig, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	policy, err := policyFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		metrics: provider.Metrics(),
		audit:   instrumentation.NewAuditLoggerWithConfig(logger, audit),
		checks:  make(map[string]server.Check),
		logger:  logger,
	}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	gateway, err := newGateway(ctx, cfg, a.metrics, logger)
	if err != nil {
		return nil, err
	}

	l, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, l.Close)
	a.checks["ledger"] = l.Ping

	store, err := a.newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	classifier, err := oracle.New(oracle.Config{
		Provider: cfg.Oracle.Provider,
		OpenAI: oracle.OpenAIConfig{
			APIKey:  cfg.Oracle.APIKey,
			BaseURL: cfg.Oracle.BaseURL,
			Model:   cfg.Oracle.Model,
		},
	}, a.metrics, logger)
	if err != nil {
		return nil, err
	}

	bookings := booking.NewService(gateway, booking.Options{
		Ledger:  l,
		Logger:  logger,
		Audit:   a.audit,
		Metrics: a.metrics,
	})

	a.agent, err = agent.New(agent.Deps{
		Store:   store,
		Oracle:  classifier,
		Gateway: gateway,
		Booking: bookings,
		Logger:  logger,
		Metrics: a.metrics,
	}, agent.Config{
		Policy:          policy,
		DefaultTimezone: cfg.Timezone,
		OracleTimeout:   cfg.Oracle.Timeout,
		HistoryTurns:    cfg.Oracle.HistoryTurns,
		HistoryLimit:    cfg.Sessions.HistoryLimit,
		SearchDays:      cfg.BusinessHours.SearchDays,
		TurnTimeout:     cfg.TurnTimeout,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func newGateway(ctx context.Context, cfg *config.Config, metrics *instrumentation.Metrics, logger *slog.Logger) (calendar.Gateway, error) {
	switch cfg.Calendar.Backend {
	case config.BackendICS:
		gw := calendar.NewICSGateway(cfg.Calendar.ICSPath, logger)
		return calendar.NewInstrumented(gw, config.BackendICS, metrics), nil
	case config.BackendGoogle:
		path := cfg.Calendar.TokenFile
		if !google.HasToken(path) {
			return nil, errors.New(google.AuthenticationErrorMessage(path))
		}
		provider := google.NewFileTokenProvider(path, google.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret))
		gw, err := calendar.NewGoogleGateway(ctx, provider, calendar.GoogleOptions{
			CalendarID: cfg.Calendar.CalendarID,
			Retry: calendar.RetryPolicy{
				MaxAttempts:     cfg.Retry.MaxAttempts,
				InitialInterval: cfg.Retry.InitialInterval,
				MaxInterval:     cfg.Retry.MaxInterval,
				AttemptTimeout:  cfg.Calendar.Timeout,
			},
			Logger:  logger,
			OnRetry: calendar.RecordRetry(metrics, config.BackendGoogle),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Calendar gateway: %w", err)
		}
		return calendar.NewInstrumented(gw, config.BackendGoogle, metrics), nil
	default:
		return nil, fmt.Errorf("unsupported calendar backend %q", cfg.Calendar.Backend)
	}
}

func (a *app) newStore(ctx context.Context, cfg *config.Config) (conversation.Store, error) {
	switch cfg.Sessions.Store {
	case config.StoreValkey:
		vc := cfg.Sessions.Valkey
		client, err := session.NewValkeyClient(session.ValkeyConfig{
			URL:        vc.URL,
			Password:   vc.Password,
			TLSEnabled: vc.TLSEnabled,
			DB:         vc.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
		store := session.NewValkeyStore(client, session.ValkeyOptions{
			KeyPrefix:   vc.KeyPrefix,
			TTL:         cfg.Sessions.TTL,
			LockTimeout: vc.LockTimeout,
			Logger:      a.logger,
		})
		a.checks["valkey"] = store.Ping
		return store, nil
	case config.StoreMemory:
		store := session.NewMemoryStore(cfg.Sessions.TTL, session.WithMetrics(a.metrics))
		if cfg.Sessions.TTL > 0 {
			sweepCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				sweepSessions(sweepCtx, store, a.logger)
			}()
			a.closers = append(a.closers, func() error {
				cancel()
				<-done
				return nil
			})
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.Sessions.Store)
	}
}

func sweepSessions(ctx context.Context, store *session.MemoryStore, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(ctx); n > 0 {
				logger.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

// policyFromConfig converts the business hours configuration into an
// availability policy.
func policyFromConfig(cfg *config.Config) (availability.Policy, error) {
	days, err := cfg.BusinessWeekdays()
	if err != nil {
		return availability.Policy{}, err
	}
	bh := cfg.BusinessHours
	policy := availability.Policy{
		StartHour:       bh.StartHour,
		EndHour:         bh.EndHour,
		Zone:            bh.Timezone,
		DefaultDuration: time.Duration(bh.DurationMinutes) * time.Minute,
		Weekdays:        days,
		Granularity:     time.Duration(bh.GranularityMinutes) * time.Minute,
		MaxCandidates:   bh.MaxCandidates,
	}
	if err := policy.Validate(); err != nil {
		return availability.Policy{}, fmt.Errorf("invalid business hours: %w", err)
	}
	return policy, nil
}

// loadConfig loads path, or the default location when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		path = filepath.Join(dir, "tailortalk", "config.yaml")
	}
	return config.Load(path)
}

// newLogger returns the process logger. Logs go to stderr so that the
// stdio transport keeps stdout for protocol traffic.
func newLogger(debug, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
