package mcp

import (
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Transports accepted in a plugin's transport setting.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ToolSeparator joins a plugin id and a tool name into the function name
// declared to the model. Function names may not contain dots.
const ToolSeparator = "__"

type PluginProcess struct {
	ID        string
	Command   string
	Args      []string
	Process   *exec.Cmd
	Client    *client.Client
	Tools     []mcptypes.Tool
	Running   bool
	IsRemote  bool
	ServerURL string
}
