package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"concierge/assistant"
	"concierge/config"
	"concierge/mcp"
	"concierge/model"
	"concierge/provider"
	"concierge/storage"
	"concierge/tools"
	"concierge/ui"
)

var (
	resumeChat  bool
	pluginSpecs []string
)

var chatCmd = &cobra.Command{
	Use:   "chat [transcript-id]",
	Short: "Open the chat view",
	Long: `Open the chat view. Pass a transcript id, or --resume for the last saved
conversation, to continue an earlier chat.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, chatCmd} {
		c.Flags().BoolVarP(&resumeChat, "resume", "r", false, "continue the last saved conversation")
		c.Flags().StringArrayVar(&pluginSpecs, "plugin", nil, `extra MCP plugin, e.g. "files=npx -y server-filesystem /tmp"`)
	}
	rootCmd.AddCommand(chatCmd)
}

// session is everything the chat view needs, built from config.
type session struct {
	processor   *assistant.Processor
	updates     chan model.TranscriptUpdatedMsg
	transcripts *storage.TranscriptStore
	prefs       *storage.PreferenceStore
	registry    *tools.Registry
	plugins     *mcp.Manager
	transport   provider.Config
	snapshot    *storage.Snapshot
}

func newSession(cfg *config.Config) (*session, error) {
	prefs, err := storage.NewPreferenceStore(cfg.DataDir())
	if err != nil {
		return nil, err
	}
	transcripts, err := storage.NewTranscriptStore(cfg.GetTranscriptsDir())
	if err != nil {
		prefs.Close()
		return nil, err
	}

	transportCfg := provider.ConfigFrom(cfg)
	transport, err := provider.NewTransport(transportCfg)
	if err != nil {
		prefs.Close()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	reg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(reg, tools.DefaultServices()); err != nil {
		prefs.Close()
		return nil, err
	}

	s := &session{
		updates:     make(chan model.TranscriptUpdatedMsg, 1),
		transcripts: transcripts,
		prefs:       prefs,
		registry:    reg,
		plugins:     mcp.NewManager(),
		transport:   transportCfg,
	}
	s.processor = assistant.New(assistant.Options{
		Transport:       transport,
		Executor:        reg,
		Tools:           assistant.ToolDeclarerFunc(func() ([]json.RawMessage, error) { return s.declarations(cfg.Tools) }),
		DeveloperPrompt: cfg.DeveloperPrompt,
		MaxTurns:        cfg.MaxTurns,
		OnUpdate:        ui.Forward(s.updates),
	})
	return s, nil
}

// declarations rebuilds the tools array per turn so preference changes and
// late plugin tools are picked up.
func (s *session) declarations(base config.ToolsConfig) ([]json.RawMessage, error) {
	tc, err := s.prefs.ApplyTools(base)
	if err != nil {
		return nil, err
	}
	return tools.BuildDeclarations(tc, s.registry, s.prefs.GlobalApproval())
}

// resume loads the snapshot id, or the last saved one when id is empty.
func (s *session) resume(id string) error {
	if id == "" {
		current, err := s.transcripts.LoadCurrentID()
		if err != nil {
			return fmt.Errorf("no saved conversation to resume: %w", err)
		}
		id = current
	}
	snap, err := s.transcripts.Load(id)
	if err != nil {
		return err
	}
	if err := s.processor.Load(snap.Items); err != nil {
		return err
	}
	s.snapshot = snap
	return nil
}

// startPlugins returns a command that starts the plugins and registers
// their tools once they are up.
func (s *session) startPlugins(plugins []config.PluginConfig) tea.Cmd {
	if len(plugins) == 0 {
		return nil
	}
	return func() tea.Msg {
		failures := s.plugins.StartAll(context.Background(), plugins)
		n, err := tools.RegisterPluginTools(s.registry, s.plugins)
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[CLI] Registering plugin tools: %v", err)
		}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[CLI] %d plugin tools registered from %v", n, s.plugins.ActivePlugins())
		}
		return model.PluginStartupCompleteMsg{Failures: failures}
	}
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.plugins.Shutdown(ctx); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[CLI] Plugin shutdown: %v", err)
	}
	s.prefs.Close()
}

func parsePluginSpecs(specs []string) ([]config.PluginConfig, error) {
	var out []config.PluginConfig
	for _, spec := range specs {
		p, err := mcp.ParsePluginSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid --plugin %q: %w", spec, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	extra, err := parsePluginSpecs(pluginSpecs)
	if err != nil {
		return err
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if len(args) == 1 || resumeChat {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		if err := s.resume(id); err != nil {
			return err
		}
	}

	view := ui.NewChatView(ui.Options{
		Processor:   s.processor,
		Updates:     s.updates,
		Transcripts: s.transcripts,
		Preferences: s.prefs,
		Transport:   s.transport,
		Model:       cfg.Model,
		Snapshot:    s.snapshot,
		Startup:     s.startPlugins(append(cfg.Plugins, extra...)),
	})

	if _, err := tea.NewProgram(view, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("chat view failed: %w", err)
	}
	return nil
}
