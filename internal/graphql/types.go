// Package graphql relays caller-supplied GraphQL documents to the GitHub
// GraphQL API and exposes the relay as an MCP tool.
package graphql

import (
	"context"
	"encoding/json"
)

// ErrorKind classifies how a relay call ended.
type ErrorKind int

const (
	// KindSuccess is a 2xx response without GraphQL errors.
	KindSuccess ErrorKind = iota
	// KindPassthrough is a 2xx response whose body carries its own errors array.
	KindPassthrough
	KindMissingCredential
	KindEmptyQuery
	KindInvalidVariables
	KindTransport
	KindRemoteStatus
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPassthrough:
		return "passthrough"
	case KindMissingCredential:
		return "missing_credential"
	case KindEmptyQuery:
		return "empty_query"
	case KindInvalidVariables:
		return "invalid_variables"
	case KindTransport:
		return "transport"
	case KindRemoteStatus:
		return "remote_status"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Messages returned to callers for failures detected before any network I/O.
const (
	MsgEmptyQuery   = "Query cannot be empty."
	MsgMissingToken = "Server missing GitHub API token."
)

// GraphQLError represents a single error returned in a GraphQL response.
type GraphQLError struct {
	Message string `json:"message"`
}

// Request is the JSON body sent to the GraphQL endpoint. Nil or empty
// variables are omitted from the body.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Result is the normalized {data?, errors?} value returned for every call.
// For 2xx responses it wraps the remote body, which is serialized verbatim.
type Result struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`

	raw  json.RawMessage
	kind ErrorKind
}

// Kind reports how the call ended.
func (r Result) Kind() ErrorKind {
	return r.kind
}

// Message returns the first error message, or "" when there is none.
func (r Result) Message() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// MarshalJSON returns the remote body unchanged when the result wraps one.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	type plain Result
	return json.Marshal(plain(r))
}

// errorResult builds a Result holding exactly one error message.
func errorResult(kind ErrorKind, msg string) Result {
	return Result{
		Errors: []GraphQLError{{Message: msg}},
		kind:   kind,
	}
}

// Executor performs one relay call. It never returns a Go error; every
// failure is reported inside the Result.
type Executor interface {
	Execute(ctx context.Context, query string, variables map[string]any) Result
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id used in relay log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
