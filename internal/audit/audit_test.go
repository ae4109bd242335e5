package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func Test_Logger_Log_WritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	entry := Entry{
		Timestamp:    time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		RequestID:    "req-1",
		Tool:         "github_execute_graphql",
		QueryPreview: "query { viewer { login } }",
		HasVariables: true,
		Outcome:      "success",
		Duration:     150 * time.Millisecond,
	}
	if err := logger.Log(entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("output %q does not end with newline", out)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got["tool"] != "github_execute_graphql" {
		t.Errorf("tool = %v", got["tool"])
	}
	if got["request_id"] != "req-1" {
		t.Errorf("request_id = %v", got["request_id"])
	}
	if got["has_variables"] != true {
		t.Errorf("has_variables = %v, want true", got["has_variables"])
	}
	if got["duration_ns"] != float64(150*time.Millisecond) {
		t.Errorf("duration_ns = %v", got["duration_ns"])
	}
	if _, ok := got["message"]; ok {
		t.Error("empty message should be omitted")
	}
}

func Test_Logger_Log_KeepsQueryCharactersUnescaped(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	const preview = `query { search(query: "a<b && c>d") { issueCount } }`
	if err := logger.Log(Entry{Tool: "github_execute_graphql", QueryPreview: preview}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := logger.Log(Entry{Tool: "github_execute_graphql", Outcome: "success"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, `\u003c`) || strings.Contains(out, `\u0026`) {
		t.Errorf("output %q has HTML-escaped characters", out)
	}
	if !strings.Contains(out, `a<b && c>d`) {
		t.Errorf("output %q does not carry the preview verbatim", out)
	}

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out)
	}
	var e Entry
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if e.QueryPreview != preview {
		t.Errorf("query_preview = %q, want %q", e.QueryPreview, preview)
	}
}

func Test_Logger_NilCases(t *testing.T) {
	if l := NewLogger(nil); l != nil {
		t.Fatal("NewLogger(nil) should return nil")
	}
	var l *Logger
	if err := l.Log(Entry{}); !errors.Is(err, ErrNilWriter) {
		t.Errorf("nil logger Log error = %v, want ErrNilWriter", err)
	}
}

func Test_Logger_WriterError(t *testing.T) {
	logger := NewLogger(failingWriter{})
	if err := logger.Log(Entry{Tool: "x"}); err == nil {
		t.Fatal("expected writer error, got nil")
	}
}

func Test_Logger_ConcurrentWritesStayLineAligned(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = logger.Log(Entry{Tool: "github_execute_graphql", Outcome: "success"})
		}()
	}
	wg.Wait()

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != n {
		t.Errorf("got %d lines, want %d", lines, n)
	}
}
