package config

const (
	DefaultServerURL = "http://localhost:3000/api/turn_response"
	DefaultModel     = "gpt-4.1"
	DefaultMaxTurns  = 10
	DefaultMCPLabel  = "mcp-server"
)

const DefaultDeveloperPrompt = `You are a hotel concierge helping the user find destinations, hotels,
rooms and prices. Prefer the hotel tools over free-form answers when they apply.
When a tool returns structured results, summarize them briefly; the results are
shown to the user as cards.`

// Defaults returns a Config with every field populated.
func Defaults() *Config {
	return &Config{
		DataDirectory:   GetDefaultDataDir(),
		ServerURL:       DefaultServerURL,
		Model:           DefaultModel,
		DeveloperPrompt: DefaultDeveloperPrompt,
		MaxTurns:        DefaultMaxTurns,
		Tools: ToolsConfig{
			Functions: true,
			MCP: MCPConfig{
				SkipApproval: true,
			},
		},
	}
}

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/concierge",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		ServerURL: DefaultServerURL,
		Model:     DefaultModel,
		MaxTurns:  DefaultMaxTurns,
		Tools: ToolsConfig{
			Functions: true,
			MCP: MCPConfig{
				SkipApproval: true,
			},
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Concierge System Configuration
# Location: ~/.config/concierge/settings.toml
# This file uses TOML format: https://toml.io

# Directory where transcripts, preferences and user config are stored
data_directory = "~/.local/share/concierge"
`
}

func GenerateUserConfigTemplate() string {
	return `# Concierge User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Endpoint that proxies turns to the model and streams SSE frames back.
# Leave empty to call the Responses API directly from this process.
server_url = "http://localhost:3000/api/turn_response"

# Model used by "concierge serve" and by direct mode
model = "gpt-4.1"

# Upper bound on chained turns after local tool calls
max_turns = 10

# Replaces the built-in developer prompt (optional)
developer_prompt = ""

[openai]
# Falls back to OPENAI_API_KEY when empty
api_key = ""
base_url = ""

[tools]
web_search = false
file_search = false
vector_store_id = ""
code_interpreter = false
functions = true

[tools.web_search_location]
country = ""
region = ""
city = ""

[tools.mcp]
enabled = false
server_label = "mcp-server"
server_url = ""
# Comma separated list, empty allows all tools
allowed_tools = ""
skip_approval = true

# Local MCP servers whose tools run in this process as functions
# [[plugins]]
# id = "files"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
`
}
