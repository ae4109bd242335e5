package tools_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jamesprial/github-graphql-mcp/internal/audit"
	"github.com/jamesprial/github-graphql-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// resultText extracts the text string from the first Content element of a
// CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("CallToolResult is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("CallToolResult.Content is empty")
	}
	tc, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("Content[0] is %T, want mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

func Test_TextResult_PassesTextThrough(t *testing.T) {
	payload := `{"data":{"viewer":{"login":"octocat"}}}`
	got := resultText(t, tools.TextResult(payload))
	if got != payload {
		t.Errorf("text = %q, want %q", got, payload)
	}
}

func Test_LogAudit_NilLogger_NoPanic(t *testing.T) {
	tools.LogAudit(nil, audit.Entry{Tool: "x"}, time.Now())
}

func Test_LogAudit_FillsTimestampAndDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLogger(&buf)

	start := time.Now().Add(-50 * time.Millisecond)
	tools.LogAudit(logger, audit.Entry{
		Tool:      "github_execute_graphql",
		RequestID: "abc",
		Outcome:   "success",
	}, start)

	var entry audit.Entry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("audit output is not valid JSON: %v\n%s", err, buf.String())
	}
	if !entry.Timestamp.Equal(start) {
		t.Errorf("Timestamp = %v, want %v", entry.Timestamp, start)
	}
	if entry.Duration < 50*time.Millisecond {
		t.Errorf("Duration = %v, want at least 50ms", entry.Duration)
	}
	if entry.Outcome != "success" || entry.RequestID != "abc" {
		t.Errorf("entry = %+v", entry)
	}
}

func Test_RegisterAll_ReturnsNamesInOrder(t *testing.T) {
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(false))
	noop := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return tools.TextResult("{}"), nil
	}

	regs := []tools.Registration{
		{Tool: mcp.NewTool("first"), Handler: noop},
		{Tool: mcp.NewTool("second"), Handler: noop},
	}
	names := tools.RegisterAll(s, regs)

	if strings.Join(names, ",") != "first,second" {
		t.Errorf("names = %v, want [first second]", names)
	}
}
