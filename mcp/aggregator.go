package mcp

import (
	"context"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

type ToolAggregator struct {
	processManager *ProcessManager
}

func NewToolAggregator(pm *ProcessManager) *ToolAggregator {
	return &ToolAggregator{
		processManager: pm,
	}
}

// Tools returns every running plugin's tools with namespaced names.
func (ta *ToolAggregator) Tools() []mcptypes.Tool {
	var allTools []mcptypes.Tool

	for _, pluginID := range ta.processManager.PluginIDs() {
		tools, err := ta.processManager.GetTools(pluginID)
		if err != nil {
			continue
		}

		for _, tool := range tools {
			namespacedTool := tool
			namespacedTool.Name = NamespacedToolName(pluginID, tool.Name)
			allTools = append(allTools, namespacedTool)
		}
	}

	return allTools
}

func (ta *ToolAggregator) ExecuteTool(ctx context.Context, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	pluginID, actualToolName := parseToolName(toolName)
	if pluginID == "" {
		return nil, fmt.Errorf("tool %q is not namespaced by a plugin", toolName)
	}

	client, err := ta.processManager.GetClient(pluginID)
	if err != nil {
		return nil, err
	}

	return client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      actualToolName,
			Arguments: args,
		},
	})
}

func NamespacedToolName(pluginID, toolName string) string {
	return pluginID + ToolSeparator + toolName
}

func parseToolName(namespacedName string) (string, string) {
	idx := strings.Index(namespacedName, ToolSeparator)
	if idx == -1 {
		return "", namespacedName
	}
	return namespacedName[:idx], namespacedName[idx+len(ToolSeparator):]
}
