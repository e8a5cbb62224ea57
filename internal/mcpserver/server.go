// Package mcpserver exposes the co-expression operations as MCP tools so
// agents can submit jobs through the same authenticated client.
package mcpserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/lydakis/coex/internal/coexpression"
	"github.com/lydakis/coex/internal/display"
	"github.com/lydakis/coex/internal/jsonrpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// VersionTool is the name of the tool reporting the server version.
const VersionTool = "coexpression_version"

// Service is the subset of the client the tools call.
type Service interface {
	Submit(ctx context.Context, op string, args ...any) ([]string, error)
	Version(ctx context.Context) (string, error)
}

// Options customizes New.
type Options struct {
	// OnSubmit, when set, is called after every successful submission.
	OnSubmit func(op string, params coexpression.Params, jobIDs []string)
}

// New builds an MCP server with one tool per domain operation plus
// VersionTool.
func New(svc Service, version string, opts Options) *server.MCPServer {
	s := server.NewMCPServer("coex", version)
	for _, op := range []string{coexpression.OpFilterGenes, coexpression.OpConstCoexNetClust} {
		s.AddTool(submitTool(op), submitHandler(svc, op, opts.OnSubmit))
	}
	s.AddTool(mcp.Tool{
		Name:        VersionTool,
		Description: "Returns the semantic version reported by the co-expression service.",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]any{}},
	}, func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := svc.Version(ctx)
		if err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultStructuredOnly(map[string]any{"version": v}), nil
	})
	return s
}

// Serve runs s over stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func submitTool(op string) mcp.Tool {
	fields, _ := coexpression.FieldsFor(op)
	spec, _ := display.Lookup(op)

	description := fmt.Sprintf("Submits %s to the co-expression service and returns the queued job ids.", op)
	if spec != nil && spec.Tooltip != "" {
		description = spec.Tooltip + " Returns the queued job ids."
	}

	props := make(map[string]any, len(fields))
	for _, field := range fields {
		props[field] = map[string]any{
			"type":        []string{"string", "number"},
			"title":       spec.Label(field),
			"description": spec.Hint(field),
		}
	}
	required := append([]string(nil), fields...)
	sort.Strings(required)

	return mcp.Tool{
		Name:        op,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
		OutputSchema: mcp.ToolOutputSchema{
			Type: "object",
			Properties: map[string]any{
				"job_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			Required: []string{"job_ids"},
		},
	}
}

func submitHandler(svc Service, op string, onSubmit func(string, coexpression.Params, []string)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params, err := coexpression.CoerceParams(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		jobIDs, err := svc.Submit(ctx, op, params)
		if err != nil {
			return toolError(err), nil
		}
		if onSubmit != nil {
			onSubmit(op, params, jobIDs)
		}
		return mcp.NewToolResultStructuredOnly(map[string]any{"job_ids": jobIDs}), nil
	}
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", jsonrpc.KindOf(err), err))
}
