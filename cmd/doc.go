// Package cmd implements the command-line interface for tailortalk.
//
// This package provides the following commands:
//   - serve: Start the HTTP chat API and MCP endpoint, or MCP over stdio
//   - chat: Hold a scheduling conversation in the terminal
//   - auth: Authorize Google Calendar access
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
