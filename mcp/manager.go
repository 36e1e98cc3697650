package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"concierge/config"
)

const startTimeout = 30 * time.Second

// Manager runs the configured plugins and exposes their tools under
// namespaced names.
type Manager struct {
	mu            sync.RWMutex
	processes     *ProcessManager
	aggregator    *ToolAggregator
	failedPlugins map[string]error
}

func NewManager() *Manager {
	pm := NewProcessManager()
	return &Manager{
		processes:     pm,
		aggregator:    NewToolAggregator(pm),
		failedPlugins: make(map[string]error),
	}
}

// StartAll starts every plugin. A plugin that fails to start is recorded and
// skipped; the returned map holds those failures.
func (m *Manager) StartAll(ctx context.Context, plugins []config.PluginConfig) map[string]error {
	var wg sync.WaitGroup
	var failMu sync.Mutex
	failures := make(map[string]error)

	for _, plugin := range plugins {
		wg.Add(1)
		go func(p config.PluginConfig) {
			defer wg.Done()

			startCtx, cancel := context.WithTimeout(ctx, startTimeout)
			defer cancel()

			if err := m.processes.StartPlugin(startCtx, p); err != nil {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[MCP] StartAll: Plugin '%s' failed: %v", p.ID, err)
				}
				failMu.Lock()
				failures[p.ID] = err
				failMu.Unlock()
			}
		}(plugin)
	}
	wg.Wait()

	m.mu.Lock()
	for id, err := range failures {
		m.failedPlugins[id] = err
	}
	m.mu.Unlock()

	return failures
}

// Attach registers an already constructed client under id.
func (m *Manager) Attach(ctx context.Context, id string, c *client.Client) error {
	return m.processes.Attach(ctx, id, c)
}

func (m *Manager) Tools() []mcptypes.Tool {
	return m.aggregator.Tools()
}

func (m *Manager) CallTool(ctx context.Context, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] CallTool: %s", toolName)
	}
	result, err := m.aggregator.ExecuteTool(ctx, toolName, args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", toolName, err)
	}
	return result, nil
}

func (m *Manager) ActivePlugins() []string {
	return m.processes.PluginIDs()
}

func (m *Manager) FailedPlugins() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]error, len(m.failedPlugins))
	for id, err := range m.failedPlugins {
		out[id] = err
	}
	return out
}

func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.processes.Shutdown(ctx)

	m.mu.Lock()
	m.failedPlugins = make(map[string]error)
	m.mu.Unlock()

	return err
}
