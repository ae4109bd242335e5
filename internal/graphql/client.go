package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jamesprial/github-graphql-mcp/internal/config"
	"github.com/jamesprial/github-graphql-mcp/internal/logging"
	"github.com/jamesprial/github-graphql-mcp/internal/metrics"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = config.DefaultTimeoutSeconds * time.Second

	// maxResponseBytes bounds how much of a response body is buffered.
	maxResponseBytes = 64 << 20
)

// Relay sends GraphQL documents to a fixed endpoint with bearer
// authentication. It holds no per-call state and is safe for concurrent use.
type Relay struct {
	httpClient *http.Client
	url        string
	token      string
	userAgent  string
	lowWater   int
	logger     logrus.FieldLogger
	metrics    *metrics.Metrics
}

// Option customizes a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the HTTP client. The client's Timeout is used as-is.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.httpClient = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Relay) { r.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// NewRelay constructs a Relay from cfg. It returns an error if cfg.URL is
// empty. An empty token is accepted here but makes every Execute call return
// the missing-credential result. Zero or negative timeouts and low-water
// marks fall back to the defaults.
func NewRelay(cfg config.GitHubConfig, opts ...Option) (*Relay, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("graphql: URL is required")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = defaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}

	lowWater := cfg.RateLimitLowWater
	if lowWater <= 0 {
		lowWater = config.DefaultRateLimitLowWater
	}

	r := &Relay{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		token:      cfg.Token,
		userAgent:  userAgent,
		lowWater:   lowWater,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// outcome is what each call path produces before it is collapsed into a
// Result at the Execute boundary.
type outcome struct {
	kind    ErrorKind
	message string
	body    []byte
	errors  []GraphQLError
}

func failure(kind ErrorKind, format string, args ...any) outcome {
	return outcome{kind: kind, message: fmt.Sprintf(format, args...)}
}

func (o outcome) result() Result {
	switch o.kind {
	case KindSuccess, KindPassthrough:
		res := Result{raw: json.RawMessage(o.body), Errors: o.errors, kind: o.kind}
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(o.body, &env) == nil {
			res.Data = env.Data
		}
		return res
	default:
		return errorResult(o.kind, o.message)
	}
}

// Execute sends query and variables to the endpoint and classifies the
// outcome. It never panics and never returns a Go error: network failures,
// non-2xx statuses and malformed bodies all come back as a Result with a
// single descriptive error. A 2xx body is returned verbatim, including any
// GraphQL errors it carries.
func (r *Relay) Execute(ctx context.Context, query string, variables map[string]any) (res Result) {
	start := time.Now()

	reqID := RequestIDFrom(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	log := r.logger.WithField("request_id", reqID)

	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("recovered panic during GitHub request")
			res = errorResult(KindUnexpected, fmt.Sprintf("An unexpected error occurred: %v", p))
		}
		r.metrics.ObserveRequest(res.Kind().String(), time.Since(start))
	}()

	if query == "" {
		log.Warn("received empty query")
		return errorResult(KindEmptyQuery, MsgEmptyQuery)
	}
	if r.token == "" {
		log.Error("GitHub API token is missing, cannot make request")
		return errorResult(KindMissingCredential, MsgMissingToken)
	}

	o := r.do(ctx, log, query, variables)
	if o.kind != KindSuccess && o.kind != KindPassthrough {
		log.WithField("kind", o.kind.String()).Error(o.message)
	}
	return o.result()
}

// ExecuteJSON runs Execute and serializes the Result to a JSON string.
func (r *Relay) ExecuteJSON(ctx context.Context, query string, variables map[string]any) string {
	return EncodeResult(r.Execute(ctx, query, variables))
}

// EncodeResult serializes res to a single JSON string. Wrapped remote bodies
// are returned byte-for-byte.
func EncodeResult(res Result) string {
	if res.raw != nil {
		return string(res.raw)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return `{"errors":[{"message":"An unexpected error occurred: result could not be serialized"}]}`
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

func (r *Relay) do(ctx context.Context, log logrus.FieldLogger, query string, variables map[string]any) outcome {
	bodyBytes, err := json.Marshal(Request{Query: query, Variables: variables})
	if err != nil {
		return failure(KindUnexpected, "An unexpected error occurred: marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return failure(KindUnexpected, "An unexpected error occurred: create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	log.WithField("query", logging.Preview(query, 100)).Debug("sending request to GitHub")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return failure(KindTransport, "HTTP Request Error connecting to GitHub: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	r.observeRateLimit(log, resp.Header)

	body, err := readBody(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return failure(KindTransport, "HTTP Request Error connecting to GitHub: %v", err)
		}
		return failure(KindUnexpected, "An unexpected error occurred: read response: %v", err)
	}

	log = log.WithField("status", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithField("body", logging.Preview(string(body), 500)).Debug("GitHub returned non-2xx status")
		return outcome{kind: KindRemoteStatus, message: statusMessage(resp.StatusCode, body)}
	}
	log.Debug("GitHub response received")

	return classifyBody(log, body)
}

// classifyBody handles a 2xx body: it must be a JSON object, and a non-empty
// errors array in it marks the result as a pass-through of GraphQL-level
// errors.
func classifyBody(log logrus.FieldLogger, body []byte) outcome {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return failure(KindUnexpected, "An unexpected error occurred: invalid JSON in GitHub response")
	}

	fields, ok := decodeObject(body)
	if !ok {
		return failure(KindUnexpected, "An unexpected error occurred: GitHub response is not a JSON object")
	}

	var errs []GraphQLError
	if raw, found := fields["errors"]; found && json.Unmarshal(raw, &errs) == nil && len(errs) > 0 {
		log.WithField("errors", errs).Warn("GraphQL errors in response")
		return outcome{kind: KindPassthrough, body: body, errors: errs}
	}
	return outcome{kind: KindSuccess, body: body}
}

// statusMessage composes the error text for a non-2xx response, enriched
// with the first GraphQL error message or the top-level message when the
// body is a JSON object carrying one as a non-empty string.
func statusMessage(status int, body []byte) string {
	msg := fmt.Sprintf("HTTP Status Error: %d", status)

	fields, ok := decodeObject(body)
	if !ok {
		return msg
	}
	if detail := firstErrorMessage(fields["errors"]); detail != "" {
		return msg + " - " + detail
	}
	if detail := stringField(fields["message"]); detail != "" {
		return msg + " - " + detail
	}
	return msg
}

// decodeObject splits a JSON object into its raw members. ok is false for
// anything other than an object, including null.
func decodeObject(body []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// firstErrorMessage returns errors[0].message when raw is an array whose
// first element is an object with a string message.
func firstErrorMessage(raw json.RawMessage) string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return ""
	}
	first, ok := decodeObject(items[0])
	if !ok {
		return ""
	}
	return stringField(first["message"])
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
