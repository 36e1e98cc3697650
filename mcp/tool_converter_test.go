package mcp

import (
	"encoding/json"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func TestToolParameters(t *testing.T) {
	tests := []struct {
		name  string
		input mcptypes.Tool
		want  map[string]any
	}{
		{
			name:  "empty schema",
			input: mcptypes.Tool{Name: "ping"},
			want:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			name: "required and defs",
			input: mcptypes.Tool{
				Name: "calculate",
				InputSchema: mcptypes.ToolInputSchema{
					Type:       "object",
					Properties: map[string]any{"a": map[string]any{"type": "number"}},
					Required:   []string{"a"},
					Defs:       map[string]any{"n": map[string]any{"type": "number"}},
				},
			},
			want: map[string]any{
				"type":       "object",
				"properties": map[string]any{"a": map[string]any{"type": "number"}},
				"required":   []string{"a"},
				"$defs":      map[string]any{"n": map[string]any{"type": "number"}},
			},
		},
		{
			name:  "raw schema",
			input: mcptypes.NewToolWithRawSchema("raw", "", json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)),
			want: map[string]any{
				"type":       "object",
				"properties": map[string]any{"q": map[string]any{"type": "string"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToolParameters(tt.input))
		})
	}
}

func TestResultValue(t *testing.T) {
	assert.Nil(t, ResultValue(nil))
	assert.Equal(t, "sunny", ResultValue(mcptypes.NewToolResultText("sunny")))
	assert.Equal(t, json.RawMessage(`{"ok":true}`), ResultValue(mcptypes.NewToolResultText(` {"ok":true} `)))

	structured := map[string]any{"temp": 21.0}
	assert.Equal(t, structured, ResultValue(mcptypes.NewToolResultStructured(structured, "21")))
}

func TestResultTextJoinsBlocks(t *testing.T) {
	result := &mcptypes.CallToolResult{Content: []mcptypes.Content{
		mcptypes.NewTextContent("one"),
		mcptypes.NewImageContent("data", "image/png"),
		mcptypes.NewTextContent("two"),
	}}
	assert.Equal(t, "one\ntwo", ResultText(result))
}
