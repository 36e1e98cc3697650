package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"

	"concierge/config"
)

const defaultMCPServerLabel = "mcp-server"

// BuildDeclarations returns the tools array sent with each turn, in the order
// web_search, file_search, code_interpreter, functions, mcp. globalApproval
// disables approval prompts for the remote MCP server.
func BuildDeclarations(tc config.ToolsConfig, reg *Registry, globalApproval bool) ([]json.RawMessage, error) {
	var decls []responses.ToolUnionParam

	if tc.WebSearch {
		decl := responses.ToolParamOfWebSearch(responses.WebSearchToolTypeWebSearch)
		if loc := tc.WebSearchLocation; !loc.IsZero() {
			decl.OfWebSearch.UserLocation = responses.WebSearchToolUserLocationParam{
				Type:    "approximate",
				Country: optString(loc.Country),
				Region:  optString(loc.Region),
				City:    optString(loc.City),
			}
		}
		decls = append(decls, decl)
	}

	if tc.FileSearch {
		switch {
		case tc.VectorStoreID == "":
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tools] file_search enabled without a vector store; not declared")
			}
		default:
			decls = append(decls, responses.ToolParamOfFileSearch([]string{tc.VectorStoreID}))
		}
	}

	if tc.CodeInterpreter {
		decls = append(decls, responses.ToolParamOfCodeInterpreter(
			responses.ToolCodeInterpreterContainerCodeInterpreterContainerAutoParam{},
		))
	}

	if tc.Functions && reg != nil {
		for _, fn := range reg.Functions() {
			decls = append(decls, functionDeclaration(fn))
		}
	}

	if tc.MCP.Enabled && tc.MCP.ServerURL != "" {
		decls = append(decls, mcpDeclaration(tc.MCP, globalApproval))
	}

	out := make([]json.RawMessage, 0, len(decls))
	for _, decl := range decls {
		b, err := json.Marshal(decl)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool declaration: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func functionDeclaration(fn Function) responses.ToolUnionParam {
	var decl responses.ToolUnionParam
	switch {
	case fn.Schema != nil:
		decl = responses.ToolParamOfFunction(fn.Name, fn.Schema, false)
	default:
		decl = responses.ToolParamOfFunction(fn.Name, strictSchema(fn.Parameters), true)
	}
	if fn.Description != "" {
		decl.OfFunction.Description = openai.String(fn.Description)
	}
	return decl
}

func mcpDeclaration(mc config.MCPConfig, globalApproval bool) responses.ToolUnionParam {
	label := strings.TrimSpace(mc.ServerLabel)
	if label == "" {
		label = defaultMCPServerLabel
	}

	decl := responses.ToolParamOfMcp(label)
	decl.OfMcp.ServerURL = openai.String(mc.ServerURL)
	if mc.SkipApproval || globalApproval {
		decl.OfMcp.RequireApproval.OfMcpToolApprovalSetting = openai.String("never")
	}
	if allowed := SplitAllowedTools(mc.AllowedTools); len(allowed) > 0 {
		decl.OfMcp.AllowedTools.OfMcpAllowedTools = allowed
	}
	return decl
}

// SplitAllowedTools parses a comma separated tool list, dropping blanks.
func SplitAllowedTools(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func optString(s string) param.Opt[string] {
	if s == "" {
		return param.Opt[string]{}
	}
	return openai.String(s)
}
