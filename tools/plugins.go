package tools

import (
	"context"
	"errors"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"concierge/mcp"
)

// PluginTools is the source of plugin tools, satisfied by *mcp.Manager.
type PluginTools interface {
	Tools() []mcptypes.Tool
	CallTool(ctx context.Context, name string, args map[string]any) (*mcptypes.CallToolResult, error)
}

// RegisterPluginTools exposes every plugin tool as a local function. Tools
// whose name is already registered are skipped.
func RegisterPluginTools(r *Registry, src PluginTools) (int, error) {
	added := 0
	for _, tool := range src.Tools() {
		name := tool.Name
		err := r.Register(Function{
			Name:        name,
			Description: tool.Description,
			Schema:      mcp.ToolParameters(tool),
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				result, err := src.CallTool(ctx, name, args)
				if err != nil {
					return nil, err
				}
				if result.IsError {
					return nil, errors.New(mcp.ResultText(result))
				}
				return mcp.ResultValue(result), nil
			},
		})
		switch {
		case errors.Is(err, ErrDuplicateFunction):
			continue
		case err != nil:
			return added, err
		}
		added++
	}
	return added, nil
}
