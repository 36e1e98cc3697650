package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesTemplates(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CONCIERGE_DATA_DIR", "")
	t.Setenv("CONCIERGE_SERVER_URL", "")
	t.Setenv("CONCIERGE_MODEL", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultMaxTurns, cfg.MaxTurns)
	assert.Equal(t, DefaultDeveloperPrompt, cfg.DeveloperPrompt)
	assert.True(t, cfg.Tools.Functions)
	assert.True(t, cfg.Tools.MCP.SkipApproval)

	assert.FileExists(t, filepath.Join(home, ".config", "concierge", "settings.toml"))
	assert.FileExists(t, filepath.Join(home, ".local", "share", "concierge", "config.toml"))
}

func TestLoadEnvOverrides(t *testing.T) {
	home := t.TempDir()
	dataDir := filepath.Join(t.TempDir(), "data")
	t.Setenv("HOME", home)
	t.Setenv("CONCIERGE_DATA_DIR", dataDir)
	t.Setenv("CONCIERGE_SERVER_URL", "http://proxy.test/turn")
	t.Setenv("CONCIERGE_MODEL", "gpt-test")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir())
	assert.Equal(t, "http://proxy.test/turn", cfg.ServerURL)
	assert.Equal(t, "gpt-test", cfg.Model)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("CONCIERGE_SERVER_URL", "")
	t.Setenv("CONCIERGE_MODEL", "")
	t.Setenv("CONCIERGE_DATA_DIR", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "custom.toml")
	content := `
model = "gpt-4.1-mini"
max_turns = 3

[tools]
web_search = true
functions = false

[tools.web_search_location]
city = "Lisbon"

[tools.mcp]
enabled = true
server_url = "https://mcp.example.com/sse"
allowed_tools = "find_hotel_by_query, book_hotel"

[[plugins]]
id = "files"
command = "npx"
args = ["-y", "server-filesystem"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1-mini", cfg.Model)
	assert.Equal(t, 3, cfg.MaxTurns)
	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.True(t, cfg.Tools.WebSearch)
	assert.False(t, cfg.Tools.Functions)
	assert.Equal(t, "Lisbon", cfg.Tools.WebSearchLocation.City)
	assert.False(t, cfg.Tools.WebSearchLocation.IsZero())
	assert.True(t, cfg.Tools.MCP.Enabled)
	assert.True(t, cfg.Tools.MCP.SkipApproval, "unset keys keep their defaults")
	require.Len(t, cfg.Plugins, 1)
	assert.Equal(t, []string{"-y", "server-filesystem"}, cfg.Plugins[0].Args)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, "/home/tester/data", ExpandPath("~/data"))
	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/tmp/x", ExpandPath("/tmp/./x"))
}
