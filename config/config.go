package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type OpenAIConfig struct {
	APIKey  string `toml:"api_key,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
}

// WebSearchLocation is the approximate user location forwarded to web search.
type WebSearchLocation struct {
	Country string `toml:"country"`
	Region  string `toml:"region"`
	City    string `toml:"city"`
}

func (l WebSearchLocation) IsZero() bool {
	return l.Country == "" && l.Region == "" && l.City == ""
}

// MCPConfig describes the remote MCP server declared to the model.
type MCPConfig struct {
	Enabled      bool   `toml:"enabled"`
	ServerLabel  string `toml:"server_label"`
	ServerURL    string `toml:"server_url"`
	AllowedTools string `toml:"allowed_tools"`
	SkipApproval bool   `toml:"skip_approval"`
}

type ToolsConfig struct {
	WebSearch         bool              `toml:"web_search"`
	WebSearchLocation WebSearchLocation `toml:"web_search_location"`
	FileSearch        bool              `toml:"file_search"`
	VectorStoreID     string            `toml:"vector_store_id"`
	CodeInterpreter   bool              `toml:"code_interpreter"`
	Functions         bool              `toml:"functions"`
	MCP               MCPConfig         `toml:"mcp"`
}

// PluginConfig is a locally launched (or remotely reachable) MCP server whose
// tools are executed by this client as local functions.
type PluginConfig struct {
	ID        string            `toml:"id"`
	Command   string            `toml:"command,omitempty"`
	Args      []string          `toml:"args,omitempty"`
	Env       map[string]string `toml:"env,omitempty"`
	ServerURL string            `toml:"server_url,omitempty"`
	Transport string            `toml:"transport,omitempty"`
}

type UserConfig struct {
	ServerURL       string         `toml:"server_url"`
	Model           string         `toml:"model"`
	DeveloperPrompt string         `toml:"developer_prompt,omitempty"`
	MaxTurns        int            `toml:"max_turns"`
	OpenAI          OpenAIConfig   `toml:"openai"`
	Tools           ToolsConfig    `toml:"tools"`
	Plugins         []PluginConfig `toml:"plugins,omitempty"`
}

type Config struct {
	DataDirectory   string
	ServerURL       string
	Model           string
	DeveloperPrompt string
	MaxTurns        int
	OpenAI          OpenAIConfig
	Tools           ToolsConfig
	Plugins         []PluginConfig
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyUserConfig(u *UserConfig) {
	if u.ServerURL != "" {
		c.ServerURL = u.ServerURL
	}
	if u.Model != "" {
		c.Model = u.Model
	}
	if u.DeveloperPrompt != "" {
		c.DeveloperPrompt = u.DeveloperPrompt
	}
	if u.MaxTurns > 0 {
		c.MaxTurns = u.MaxTurns
	}
	c.OpenAI = u.OpenAI
	c.Tools = u.Tools
	c.Plugins = u.Plugins
}

func (c *Config) applyEnvOverrides() {
	if serverURL := os.Getenv("CONCIERGE_SERVER_URL"); serverURL != "" {
		c.ServerURL = serverURL
	}
	if model := os.Getenv("CONCIERGE_MODEL"); model != "" {
		c.Model = model
	}
	if dataDir := os.Getenv("CONCIERGE_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = apiKey
	}
}

func CheckDebug() bool {
	debug := os.Getenv("CONCIERGE_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: the log contains conversation fragments and tool arguments
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (CONCIERGE_DEBUG=%s) ===", os.Getenv("CONCIERGE_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load reads settings.toml for the data directory, then <data_dir>/config.toml,
// then applies environment overrides. Missing files are created from templates.
func Load() (*Config, error) {
	cfg := Defaults()

	if dataDir := os.Getenv("CONCIERGE_DATA_DIR"); dataDir == "" {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory
	} else {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Ensure data directory has correct permissions (fix if needed)
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadFromFile loads a user config file directly, bypassing settings.toml.
// Used when --config is passed on the command line.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	userCfg, err := LoadUserConfigFromPath(ExpandPath(path))
	if err != nil {
		return nil, err
	}
	if userCfg == nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()

	if err := os.MkdirAll(cfg.DataDir(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}
