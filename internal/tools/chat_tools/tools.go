package chat_tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/tailortalk/internal/agent"
	"github.com/teemow/tailortalk/internal/conversation"
	"github.com/teemow/tailortalk/internal/server"
	"github.com/teemow/tailortalk/internal/tools/common"
)

const (
	ToolSendMessage  = "chat_send_message"
	ToolResetSession = "chat_reset_session"
)

// RegisterChatTools registers the conversation tools with the MCP server
func RegisterChatTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc.Agent() == nil {
		return errors.New("chat tools require an agent")
	}

	sendTool := mcp.NewTool(ToolSendMessage,
		mcp.WithDescription("Send a message to the meeting scheduling assistant. It can search free slots, list events, book a meeting after confirmation, open a calendar link, tell the time and change the timezone."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user's message in natural language (e.g., 'find me 30 minutes tomorrow afternoon')"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation to continue. Omit to start a new one; the reply carries the new id."),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone or abbreviation for displaying times (e.g., 'Europe/Berlin', 'PST')"),
		),
	)

	s.AddTool(sendTool, common.InstrumentedToolHandler(ToolSendMessage, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSendMessage(ctx, request, sc)
		}))

	resetTool := mcp.NewTool(ToolResetSession,
		mcp.WithDescription("Forget a conversation, dropping its offered slots and pending booking"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("The conversation to forget"),
		),
	)

	s.AddTool(resetTool, common.InstrumentedToolHandler(ToolResetSession, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleResetSession(ctx, request, sc)
		}))

	return nil
}

func handleSendMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message, ok := args["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message is required"), nil
	}
	timezone, _ := args["timezone"].(string)

	resp, err := sc.Agent().Handle(ctx, agent.ChatRequest{
		SessionID: common.SessionIDFromArgs(args),
		Message:   message,
		Timezone:  timezone,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to process message: %v", err)), nil
	}

	return mcp.NewToolResultText(formatResponse(resp)), nil
}

func handleResetSession(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	id := common.SessionIDFromArgs(request.GetArguments())
	if id == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	if err := sc.Agent().Reset(ctx, id); err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Session %s not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reset session: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s reset", id)), nil
}

func formatResponse(resp *agent.ChatResponse) string {
	var b strings.Builder
	b.WriteString(resp.Response)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Session: %s\n", resp.SessionID)
	fmt.Fprintf(&b, "State: %s\n", resp.State)
	return b.String()
}
