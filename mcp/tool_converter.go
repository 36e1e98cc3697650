package mcp

import (
	"encoding/json"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolParameters converts an MCP tool's input schema to the JSON schema map
// of a function declaration.
func ToolParameters(tool mcptypes.Tool) map[string]any {
	if len(tool.RawInputSchema) > 0 {
		var raw map[string]any
		if err := json.Unmarshal(tool.RawInputSchema, &raw); err == nil {
			return raw
		}
	}

	schemaType := tool.InputSchema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	properties := tool.InputSchema.Properties
	if properties == nil {
		properties = map[string]any{}
	}

	params := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(tool.InputSchema.Required) > 0 {
		params["required"] = tool.InputSchema.Required
	}
	if tool.InputSchema.Defs != nil {
		params["$defs"] = tool.InputSchema.Defs
	}
	return params
}

// ResultText joins the text blocks of a tool result.
func ResultText(result *mcptypes.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, content := range result.Content {
		if text, ok := mcptypes.AsTextContent(content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ResultValue is the JSON-serializable value of a tool result: structured
// content when present, otherwise the text, embedded as JSON when it is JSON.
func ResultValue(result *mcptypes.CallToolResult) any {
	if result == nil {
		return nil
	}
	if result.StructuredContent != nil {
		return result.StructuredContent
	}
	text := ResultText(result)
	if trimmed := strings.TrimSpace(text); trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return text
}
