package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/tailortalk/internal/agent"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/instrumentation"
	"github.com/teemow/tailortalk/internal/session"
)

const (
	// DefaultChatAddr is the default listen address of the chat API.
	DefaultChatAddr = ":8080"

	defaultChatReadTimeout  = 15 * time.Second
	defaultChatWriteTimeout = 60 * time.Second
	defaultChatIdleTimeout  = 120 * time.Second
)

// ChatServerConfig configures the chat API.
type ChatServerConfig struct {
	Addr         string
	AllowOrigins []string
	// WriteTimeout must exceed the agent's turn timeout.
	WriteTimeout time.Duration
	Metrics      *instrumentation.Metrics
	Logger       *slog.Logger
}

// ChatServer exposes the orchestrator over HTTP.
type ChatServer struct {
	echo         *echo.Echo
	handler      http.Handler
	httpServer   *http.Server
	sc           *ServerContext
	logger       *slog.Logger
	addr         string
	writeTimeout time.Duration
}

// NewChatServer builds the echo router for the chat API and the health
// endpoints.
func NewChatServer(sc *ServerContext, health *HealthChecker, config ChatServerConfig) *ChatServer {
	if config.Addr == "" {
		config.Addr = DefaultChatAddr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultChatWriteTimeout
	}
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &ChatServer{
		echo:         e,
		sc:           sc,
		logger:       config.Logger,
		addr:         config.Addr,
		writeTimeout: config.WriteTimeout,
	}

	e.Use(middleware.Recover())
	e.Use(requestLogger(config.Logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))
	e.Use(httpMetrics(config.Metrics))

	e.POST("/api/chat", s.handleChat)
	e.DELETE("/api/sessions/:id", s.handleDeleteSession)
	if health != nil {
		health.RegisterEcho(e)
	}

	s.handler = otelhttp.NewHandler(e, "tailortalk.http")
	return s
}

// Mount serves h for every method under path, e.g. the MCP streamable
// HTTP endpoint.
func (s *ChatServer) Mount(path string, h http.Handler) {
	s.echo.Any(path, echo.WrapHandler(h))
}

// Handler returns the traced HTTP handler.
func (s *ChatServer) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *ChatServer) Addr() string {
	return s.addr
}

// Start serves until Shutdown is called.
func (s *ChatServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: defaultChatReadTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       defaultChatIdleTimeout,
	}
	s.logger.Info("starting chat server", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *ChatServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down chat server")
	return s.httpServer.Shutdown(ctx)
}

// handleChat runs one conversation turn.
// POST /api/chat
func (s *ChatServer) handleChat(c echo.Context) error {
	if s.sc.IsShutdown() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "server is shutting down"})
	}

	var req agent.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := s.sc.Agent().Handle(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrEmptyMessage):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
		case errors.Is(err, session.ErrSessionBusy):
			return c.JSON(http.StatusConflict, map[string]string{"error": "session is busy, retry shortly"})
		}
		s.logger.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process message"})
	}

	return c.JSON(http.StatusOK, resp)
}

// handleDeleteSession drops a conversation.
// DELETE /api/sessions/:id
func (s *ChatServer) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session id is required"})
	}

	if err := s.sc.Agent().Reset(c.Request().Context(), id); err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		s.logger.Error("failed to delete session", "session_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}

	return c.NoContent(http.StatusNoContent)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				logger.Warn("http request", attrs...)
				return nil
			}
			logger.Debug("http request", attrs...)
			return nil
		},
	})
}

func httpMetrics(metrics *instrumentation.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.RecordHTTPRequest(c.Request().Context(), c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}
