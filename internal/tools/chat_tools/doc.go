// Package chat_tools exposes the scheduling conversation as MCP tools, so
// an MCP client can drive the same sessions as the HTTP chat API.
package chat_tools
