package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/tailortalk/internal/instrumentation"
	"github.com/teemow/tailortalk/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = mcpserver.ToolHandlerFunc

// InstrumentedToolHandler wraps a tool handler with metrics, tracing and
// audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx)
		if id := SessionIDFromArgs(request.GetArguments()); id != "" {
			invocation.WithSession(id)
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		failed := err != nil || (result != nil && result.IsError)
		invocation.Complete(!failed, err)
		instrumentation.EndSpan(span, err)

		metrics.RecordToolInvocation(ctx, toolName, invocation.Status(), duration)
		auditLogger.LogToolInvocation(invocation)

		return result, err
	}
}

// SessionIDFromArgs returns the session_id argument, or "".
func SessionIDFromArgs(args map[string]interface{}) string {
	if id, ok := args["session_id"].(string); ok {
		return id
	}
	return ""
}
