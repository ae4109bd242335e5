// Package audit records relay tool invocations as newline-delimited JSON.
package audit

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrNilWriter is returned by Logger.Log when the logger was constructed
// with a nil writer.
var ErrNilWriter = errors.New("audit logger: writer is nil")

// Entry captures a single tool invocation. The query is stored only as a
// truncated preview and variables values are never recorded.
type Entry struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestID    string        `json:"request_id"`
	Tool         string        `json:"tool"`
	QueryPreview string        `json:"query_preview"`
	HasVariables bool          `json:"has_variables"`
	Outcome      string        `json:"outcome"`
	Message      string        `json:"message,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Logger writes Entry records to an io.Writer. It is safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewLogger returns a Logger that writes to w. If w is nil the returned
// logger is also nil; Log on a nil logger reports ErrNilWriter.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Logger{enc: enc}
}

// Log writes entry as one JSON line. The encoder emits each record with a
// single Write, so concurrent entries never interleave.
func (l *Logger) Log(entry Entry) error {
	if l == nil || l.enc == nil {
		return ErrNilWriter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}
