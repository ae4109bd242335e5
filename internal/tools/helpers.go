// Package tools provides shared helper utilities for MCP tool handlers.
package tools

import (
	"time"

	"github.com/jamesprial/github-graphql-mcp/internal/audit"
	"github.com/mark3labs/mcp-go/mcp"
)

// TextResult wraps an already-serialized payload in an mcp.CallToolResult.
func TextResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

// LogAudit records a tool invocation that began at start, silently ignoring
// a nil logger. Timestamp and Duration on entry are filled in from start.
func LogAudit(l *audit.Logger, entry audit.Entry, start time.Time) {
	if l == nil {
		return
	}
	entry.Timestamp = start
	entry.Duration = time.Since(start)
	_ = l.Log(entry)
}
