package server

import (
	"context"
	"sort"
	"sync"

	"github.com/teemow/tailortalk/internal/agent"
	"github.com/teemow/tailortalk/internal/instrumentation"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// ServerContext holds what the chat API and the MCP tools share: the
// orchestrator, the dependency checks and the shutdown state.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	agent    *agent.Agent
	checks   map[string]Check
	mu       sync.RWMutex
	shutdown bool

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, a *agent.Agent) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		agent:  a,
		checks: make(map[string]Check),
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Agent returns the orchestrator.
func (sc *ServerContext) Agent() *agent.Agent {
	return sc.agent
}

// SetInstrumentation sets the metrics and audit logger used by the MCP tools.
func (sc *ServerContext) SetInstrumentation(metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
	sc.auditLogger = audit
}

// Metrics returns the metrics recorder, nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the audit logger, nil when auditing is off.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// AddCheck registers a readiness check under name.
func (sc *ServerContext) AddCheck(name string, check Check) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.checks[name] = check
}

// RunChecks runs every registered check and returns the failures by name.
func (sc *ServerContext) RunChecks(ctx context.Context) map[string]error {
	sc.mu.RLock()
	names := make([]string, 0, len(sc.checks))
	for name := range sc.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(sc.checks))
	for k, v := range sc.checks {
		checks[k] = v
	}
	sc.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = checks[name](ctx)
	}
	return results
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
