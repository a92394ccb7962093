package chat_tools

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/server"
)

type toolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// instrumented wraps a tool handler with metrics and audit logging. The
// audit entry is attributed to the author argument when one is given.
//
// Usage:
//
//	s.AddTool(tool, instrumented("chat_send_message", sc, handler))
func instrumented(toolName string, sc *server.ServerContext, handler toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		start := time.Now()
		args := request.GetArguments()
		author, _ := args["author"].(string)
		invocation := instrumentation.NewCommandInvocation("mcp:"+toolName).
			WithUser(author, channelFromArgs(args)).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.Complete(err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			invocation.Complete(errors.New(resultText(result)))
		default:
			invocation.Complete(nil)
		}

		metrics.RecordToolInvocation(ctx, toolName, status, time.Since(start))
		auditLogger.LogCommand(invocation)

		return result, err
	}
}

// resultText returns the first text content of result.
func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return "tool error"
}
