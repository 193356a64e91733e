package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/tailortalk/internal/config"
	"github.com/teemow/tailortalk/internal/instrumentation"
	"github.com/teemow/tailortalk/internal/server"
	"github.com/teemow/tailortalk/internal/tools/chat_tools"
)

const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		listen    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling server",
		Long: `Start the scheduling assistant.

Supports two transport types:
  - http: chat API on --listen (POST /api/chat, DELETE /api/sessions/:id),
    MCP streamable HTTP on /mcp and health probes on /healthz and /readyz (default)
  - stdio: MCP over standard input/output

Configuration is read from --config and overridden by environment variables
(OPENAI_API_KEY, TAILORTALK_CALENDAR_BACKEND, VALKEY_URL, METRICS_ENABLED, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			return runServe(cfg, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportHTTP, "Transport type: http or stdio")
	cmd.Flags().StringVar(&listen, "listen", ":8080", "HTTP listen address (overrides the config file)")

	return cmd
}

func runServe(cfg *config.Config, transport string) error {
	if transport != transportHTTP && transport != transportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: http, stdio)", transport)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(debugMode, transport == transportHTTP)
	slog.SetDefault(logger)

	instrConfig := instrumentation.ConfigFromEnv(version)
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("error during instrumentation shutdown", "error", err)
		}
	}()

	a, err := buildApp(shutdownCtx, cfg, provider, instrConfig.AuditLogging, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("error while closing resources", "error", err)
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx, a.agent)
	a.bind(serverContext)
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	switch transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	default:
		return runHTTPServer(shutdownCtx, cfg, mcpSrv, serverContext, provider, a, logger)
	}
}

// newMCPServer creates the MCP server and registers all tools
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("tailortalk", version,
		mcpserver.WithToolCapabilities(true),
	)

	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Chat",
			register: func() error {
				return chat_tools.RegisterChatTools(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return nil, fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return mcpSrv, nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, cfg *config.Config, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, provider *instrumentation.Provider, a *app, logger *slog.Logger) error {
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error during metrics server shutdown", "error", err)
			}
		}()
	}

	healthChecker := server.NewHealthChecker(sc)
	chatServer := server.NewChatServer(sc, healthChecker, server.ChatServerConfig{
		Addr:         cfg.Listen,
		WriteTimeout: cfg.TurnTimeout + 15*time.Second,
		Metrics:      a.metrics,
		Logger:       logger,
	})
	chatServer.Mount("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv))

	fmt.Printf("tailortalk server starting on %s\n", chatServer.Addr())
	fmt.Printf("  Chat endpoint: POST /api/chat\n")
	fmt.Printf("  MCP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  Calendar backend: %s, session store: %s\n", cfg.Calendar.Backend, cfg.Sessions.Store)
	if metricsServer != nil {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsServer.Addr())
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := chatServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := chatServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}
