package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"concierge/config"
)

const (
	protocolVersion = "2025-06-18"
	clientName      = "concierge"
	clientVersion   = "1.0.0"
	closeTimeout    = 1 * time.Second
)

var pluginIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+(_[A-Za-z0-9-]+)*$`)

type ProcessManager struct {
	processes map[string]*PluginProcess
	mu        sync.RWMutex
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[string]*PluginProcess),
	}
}

// ValidatePluginID rejects ids that cannot be embedded in a function name.
func ValidatePluginID(id string) error {
	if !pluginIDPattern.MatchString(id) {
		return fmt.Errorf("invalid plugin id %q: use letters, digits, '-' and single '_'", id)
	}
	return nil
}

func (pm *ProcessManager) StartPlugin(ctx context.Context, plugin config.PluginConfig) error {
	if err := ValidatePluginID(plugin.ID); err != nil {
		return err
	}
	if pm.isRunning(plugin.ID) {
		return fmt.Errorf("plugin %s already running", plugin.ID)
	}

	isRemote := plugin.ServerURL != ""

	var mcpClient *client.Client
	var capturedCmd *exec.Cmd
	var err error

	switch {
	case isRemote:
		mcpClient, err = pm.createRemoteClient(ctx, plugin)
		if err != nil {
			return fmt.Errorf("failed to connect to remote plugin %s: %w", plugin.ID, err)
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] Connected to remote plugin '%s' at %s", plugin.ID, plugin.ServerURL)
		}

	case plugin.Command != "":
		mcpClient, capturedCmd, err = pm.createLocalClient(plugin)
		if err != nil {
			return fmt.Errorf("failed to start local plugin %s: %w", plugin.ID, err)
		}

	default:
		return fmt.Errorf("plugin %s has neither a command nor a server_url", plugin.ID)
	}

	proc := &PluginProcess{
		ID:        plugin.ID,
		Command:   plugin.Command,
		Args:      plugin.Args,
		Process:   capturedCmd,
		Client:    mcpClient,
		IsRemote:  isRemote,
		ServerURL: plugin.ServerURL,
	}
	if err := pm.register(ctx, proc); err != nil {
		_ = mcpClient.Close()
		return err
	}
	return nil
}

// Attach registers an already started client, such as an in-process server.
func (pm *ProcessManager) Attach(ctx context.Context, id string, mcpClient *client.Client) error {
	if err := ValidatePluginID(id); err != nil {
		return err
	}
	if pm.isRunning(id) {
		return fmt.Errorf("plugin %s already running", id)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start plugin %s: %w", id, err)
	}
	return pm.register(ctx, &PluginProcess{ID: id, Client: mcpClient})
}

// register initializes the client, lists its tools and stores the process.
func (pm *ProcessManager) register(ctx context.Context, proc *PluginProcess) error {
	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}

	if _, err := proc.Client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize plugin %s: %w", proc.ID, err)
	}

	toolsResult, err := proc.Client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list tools for %s: %w", proc.ID, err)
	}

	proc.Tools = toolsResult.Tools
	proc.Running = true

	pm.mu.Lock()
	pm.processes[proc.ID] = proc
	pm.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Plugin '%s' ready with %d tools", proc.ID, len(proc.Tools))
	}
	return nil
}

func (pm *ProcessManager) isRunning(id string) bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	proc := pm.processes[id]
	return proc != nil && proc.Running
}

func (pm *ProcessManager) StopPlugin(ctx context.Context, pluginID string) error {
	pm.mu.Lock()

	proc, exists := pm.processes[pluginID]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("plugin %s not found", pluginID)
	}

	// Remove from map immediately so it can't be used
	proc.Running = false
	delete(pm.processes, pluginID)
	pm.mu.Unlock()

	clientClosed := false
	if proc.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- proc.Client.Close()
		}()

		select {
		case err := <-closeDone:
			switch {
			case err != nil && config.DebugLog != nil:
				config.DebugLog.Printf("[MCP] StopPlugin: Error closing client for '%s': %v", pluginID, err)
			case err == nil:
				clientClosed = true
			}
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] StopPlugin: Close timeout for '%s'", pluginID)
			}
		}
	}

	// Kill local process only when the client did not shut it down
	if !clientClosed && !proc.IsRemote && proc.Process != nil && proc.Process.Process != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] StopPlugin: Killing process for '%s' (PID: %d)", pluginID, proc.Process.Process.Pid)
		}
		if err := proc.Process.Process.Kill(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] StopPlugin: Error killing process for '%s': %v", pluginID, err)
		}
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] StopPlugin: Plugin '%s' stopped", pluginID)
	}
	return nil
}

func (pm *ProcessManager) GetClient(pluginID string) (*client.Client, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[pluginID]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("plugin %s not running", pluginID)
	}

	return proc.Client, nil
}

func (pm *ProcessManager) GetTools(pluginID string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[pluginID]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("plugin %s not running", pluginID)
	}

	return proc.Tools, nil
}

// PluginIDs returns the running plugins, sorted.
func (pm *ProcessManager) PluginIDs() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ids := make([]string, 0, len(pm.processes))
	for id, proc := range pm.processes {
		if proc.Running {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (pm *ProcessManager) RefreshTools(ctx context.Context, pluginID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	proc, exists := pm.processes[pluginID]
	if !exists || !proc.Running {
		return fmt.Errorf("plugin %s not running", pluginID)
	}

	toolsResult, err := proc.Client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to refresh tools: %w", err)
	}

	proc.Tools = toolsResult.Tools
	return nil
}

func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	pluginIDs := pm.PluginIDs()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Shutdown: Stopping %d plugins", len(pluginIDs))
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(pluginIDs))

	for _, pluginID := range pluginIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := pm.StopPlugin(ctx, id); err != nil {
				errChan <- err
			}
		}(pluginID)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func (pm *ProcessManager) createRemoteClient(ctx context.Context, plugin config.PluginConfig) (*client.Client, error) {
	kind := plugin.Transport
	if kind == "" {
		kind = TransportSSE
	}

	switch kind {
	case TransportStreamableHTTP:
		return pm.createStreamableHttpClient(ctx, plugin)
	case TransportSSE:
		return pm.createSSEClient(ctx, plugin)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", kind)
	}
}

// createSSEClient sends the plugin's env entries as request headers.
func (pm *ProcessManager) createSSEClient(ctx context.Context, plugin config.PluginConfig) (*client.Client, error) {
	var opts []transport.ClientOption
	if len(plugin.Env) > 0 {
		opts = append(opts, transport.WithHeaders(copyMap(plugin.Env)))
	}

	mcpClient, err := client.NewSSEMCPClient(plugin.ServerURL, opts...)
	if err != nil {
		return nil, err
	}

	// SSE transport must be started before Initialize/ListTools
	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Started SSE transport for %s", plugin.ID)
	}
	return mcpClient, nil
}

func (pm *ProcessManager) createStreamableHttpClient(ctx context.Context, plugin config.PluginConfig) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(plugin.Env) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(copyMap(plugin.Env)))
	}

	mcpClient, err := client.NewStreamableHttpClient(plugin.ServerURL, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Started streamable HTTP transport for %s", plugin.ID)
	}
	return mcpClient, nil
}

func (pm *ProcessManager) createLocalClient(plugin config.PluginConfig) (*client.Client, *exec.Cmd, error) {
	env := configToEnv(plugin.Env)
	var capturedCmd *exec.Cmd

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] StartPlugin: Plugin '%s' - Command='%s', Args=%v", plugin.ID, plugin.Command, plugin.Args)
	}

	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		plugin.Command,
		env,
		plugin.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Started local plugin '%s' with PID %d", plugin.ID, capturedCmd.Process.Pid)
	}
	return mcpClient, capturedCmd, nil
}

func configToEnv(envMap map[string]string) []string {
	// Start with current process environment to preserve PATH and other system vars
	env := os.Environ()
	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
