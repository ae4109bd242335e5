package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jamesprial/github-graphql-mcp/internal/audit"
	"github.com/jamesprial/github-graphql-mcp/internal/logging"
	"github.com/jamesprial/github-graphql-mcp/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

const toolNameExecuteGraphQL = "github_execute_graphql"

const toolDescription = `Executes an arbitrary GraphQL query or mutation against the GitHub API.
The query is passed through unchanged with full control over selection sets and variables, and the complete JSON response (data and errors) is returned.

Schema discovery works through GraphQL introspection, for example:

  query { __schema { queryType { name } types { name kind description } } }
  query { __type(name: "Repository") { name fields { name description type { name kind } } } }

Variables are supplied as a JSON object whose keys match the variable names declared in the operation, for example:

  query: query($owner: String!, $name: String!) { repository(owner: $owner, name: $name) { name stargazerCount } }
  variables: {"owner": "octocat", "name": "Hello-World"}

A response containing an "errors" array with HTTP 200 is a GraphQL-level error reported by GitHub and is returned as-is.`

// GraphQLTools returns the tool registrations for the GitHub GraphQL relay.
// A nil logger discards log output; a nil audit logger disables auditing.
func GraphQLTools(exec Executor, auditLog *audit.Logger, logger logrus.FieldLogger) []tools.Registration {
	if logger == nil {
		logger = logging.Discard()
	}
	return []tools.Registration{
		toolExecuteGraphQL(exec, auditLog, logger),
	}
}

// toolExecuteGraphQL constructs the github_execute_graphql Registration.
func toolExecuteGraphQL(exec Executor, auditLog *audit.Logger, logger logrus.FieldLogger) tools.Registration {
	tool := mcp.NewTool(toolNameExecuteGraphQL,
		mcp.WithDescription(toolDescription),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The complete GraphQL query or mutation to execute."),
		),
		mcp.WithObject("variables",
			mcp.Description("Optional variables for the operation, keyed by the variable names it declares."),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		reqID := uuid.NewString()
		ctx = WithRequestID(ctx, reqID)

		query := req.GetString("query", "")
		variables, err := parseVariables(req.GetArguments()["variables"])

		var res Result
		if err != nil {
			logger.WithField("request_id", reqID).Warnf("invalid variables: %v", err)
			res = errorResult(KindInvalidVariables, fmt.Sprintf("Invalid variables: %v", err))
		} else {
			logger.WithFields(logrus.Fields{
				"request_id": reqID,
				"query":      logging.Preview(query, 50),
			}).Info("executing github_execute_graphql")
			res = exec.Execute(ctx, query, variables)
		}

		tools.LogAudit(auditLog, audit.Entry{
			RequestID:    reqID,
			Tool:         toolNameExecuteGraphQL,
			QueryPreview: logging.Preview(query, 100),
			HasVariables: len(variables) > 0,
			Outcome:      res.Kind().String(),
			Message:      res.Message(),
		}, start)

		return tools.TextResult(EncodeResult(res)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// parseVariables accepts the variables argument as a JSON object or, for
// hosts that cannot send objects, as a JSON-encoded string. Absent, null and
// empty-string values yield nil.
func parseVariables(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("parse variables JSON: %w", err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("variables must be an object, got %T", raw)
	}
}
