package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"concierge/assistant"
	"concierge/config"
	"concierge/model"
	"concierge/provider"
	"concierge/storage"
)

type Options struct {
	Processor   *assistant.Processor
	Updates     <-chan model.TranscriptUpdatedMsg
	Transcripts *storage.TranscriptStore
	Preferences *storage.PreferenceStore
	Transport   provider.Config
	Model       string
	// Snapshot is the transcript the processor was loaded from, if any.
	Snapshot *storage.Snapshot
	// Startup runs alongside Init, e.g. to start MCP plugins.
	Startup tea.Cmd
}

// ChatView is the Bubble Tea model of the chat screen.
type ChatView struct {
	processor   *assistant.Processor
	updates     <-chan model.TranscriptUpdatedMsg
	transcripts *storage.TranscriptStore
	prefs       *storage.PreferenceStore
	transport   provider.Config
	modelName   string
	startup     tea.Cmd

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	markdown *markdownCache

	width  int
	height int
	ready  bool

	items  []model.Item
	state  string
	busy   bool
	cancel context.CancelFunc

	snapshotID   string
	snapshotName string

	showHelp      bool
	confirmReset  bool
	noticeTitle   string
	notice        string
	serverWarning string
	status        string
	statusIsError bool
}

func NewChatView(opts Options) ChatView {
	ta := textarea.New()
	ta.Placeholder = "Ask the concierge... (Enter to send, Alt+Enter for a new line)"
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	v := ChatView{
		processor:   opts.Processor,
		updates:     opts.Updates,
		transcripts: opts.Transcripts,
		prefs:       opts.Preferences,
		transport:   opts.Transport,
		modelName:   opts.Model,
		startup:     opts.Startup,
		viewport:    viewport.New(0, 0),
		textarea:    ta,
		spinner:     sp,
		markdown:    newMarkdownCache(),
		state:       assistant.StateIdle.String(),
	}
	if opts.Processor != nil {
		v.items = opts.Processor.Items()
	}
	if opts.Snapshot != nil {
		v.snapshotID = opts.Snapshot.ID
		v.snapshotName = opts.Snapshot.Name
	}
	return v
}

func (a ChatView) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		waitForUpdate(a.updates),
		provider.PingServer(a.transport),
	}
	if a.startup != nil {
		cmds = append(cmds, a.startup)
	}
	return tea.Batch(cmds...)
}

func (a ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// title (1) + blank (1) + textarea (3) + status bar (1)
		a.viewport.Width = a.width
		a.viewport.Height = a.height - 6
		a.textarea.SetWidth(a.width)
		a.ready = true
		a.refresh(true)
		return a, nil

	case tea.KeyMsg:
		next, cmd, handled := a.handleKey(msg)
		if handled {
			return next, cmd
		}
		a = next

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.refresh(false)
		return a, cmd

	case model.TranscriptUpdatedMsg:
		a.items = msg.Items
		a.state = msg.State
		a.refresh(true)
		return a, waitForUpdate(a.updates)

	case model.TurnDoneMsg:
		return a.turnDone(msg)

	case model.TranscriptSavedMsg:
		if msg.Err != nil {
			return a.flash(fmt.Sprintf("Save failed: %v", msg.Err), true)
		}
		a.snapshotID = msg.ID
		if a.snapshotName == "" {
			a.snapshotName = storage.GenerateSnapshotName(firstUserText(a.items))
		}
		if msg.Auto {
			return a, nil
		}
		return a.flash("Transcript saved", false)

	case model.ClipboardCopiedMsg:
		if msg.Err != nil {
			return a.flash(fmt.Sprintf("Copy failed: %v", msg.Err), true)
		}
		return a.flash("Copied last reply", false)

	case model.PreferenceSavedMsg:
		if msg.Err != nil {
			return a.flash(fmt.Sprintf("Could not save preference: %v", msg.Err), true)
		}
		if msg.Key == storage.KeyGlobalApproval {
			return a.flash("MCP tools will run without asking", false)
		}
		return a, nil

	case model.PluginStartupCompleteMsg:
		if len(msg.Failures) > 0 {
			var lines []string
			for id, err := range msg.Failures {
				lines = append(lines, fmt.Sprintf("%s: %v", id, err))
			}
			sort.Strings(lines)
			a.noticeTitle = "Plugin Startup Failed"
			a.notice = strings.Join(lines, "\n")
		}
		return a, nil

	case provider.PingServerMsg:
		if msg.Err != nil {
			a.serverWarning = "server unreachable"
		} else {
			a.serverWarning = ""
		}
		return a, nil

	case model.FlashTickMsg:
		a.status = ""
		a.statusIsError = false
		return a, nil
	}

	var cmd tea.Cmd
	if a.pendingApproval() == nil {
		a.textarea, cmd = a.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// handleKey returns handled=false for keys that fall through to the
// textarea and viewport.
func (a ChatView) handleKey(msg tea.KeyMsg) (ChatView, tea.Cmd, bool) {
	if a.showHelp {
		switch msg.String() {
		case "esc", "alt+h", "q":
			a.showHelp = false
		}
		return a, nil, true
	}
	if a.notice != "" {
		switch msg.String() {
		case "enter", "esc":
			a.notice = ""
			a.noticeTitle = ""
		}
		return a, nil, true
	}
	if a.confirmReset {
		switch msg.String() {
		case "y":
			a.confirmReset = false
			next, cmd := a.reset()
			return next, cmd, true
		case "n", "esc":
			a.confirmReset = false
		}
		return a, nil, true
	}

	switch msg.String() {
	case "ctrl+c", "alt+q":
		if a.cancel != nil {
			a.cancel()
		}
		return a, tea.Quit, true

	case "esc":
		if a.busy && a.cancel != nil {
			a.cancel()
			return a, nil, true
		}
		return a, nil, false

	case "alt+h":
		a.showHelp = true
		return a, nil, true

	case "ctrl+y":
		text := a.lastReply()
		if text == "" {
			next, cmd := a.flash("Nothing to copy yet", true)
			return next, cmd, true
		}
		return a, copyCmd(text), true

	case "ctrl+s":
		if a.transcripts == nil || len(a.items) == 0 {
			return a, nil, true
		}
		a.ensureSnapshotID()
		return a, saveTranscriptCmd(a.transcripts, a.snapshot(), false), true

	case "ctrl+r":
		if a.busy || a.processor == nil {
			return a, nil, true
		}
		a.confirmReset = true
		return a, nil, true
	}

	if req := a.pendingApproval(); req != nil && !a.busy {
		switch msg.String() {
		case "y":
			next, cmd := a.resolve(req.ID, true, nil)
			return next, cmd, true
		case "n":
			next, cmd := a.resolve(req.ID, false, nil)
			return next, cmd, true
		case "a":
			// The preference must be stored before the next request is built.
			next, cmd := a.resolve(req.ID, true, saveGlobalApprovalCmd(a.prefs))
			return next, cmd, true
		}
		// The textarea stays inactive until the request is answered.
		return a, nil, msg.Type == tea.KeyRunes
	}

	if msg.Type == tea.KeyEnter && !a.busy {
		text := strings.TrimSpace(a.textarea.Value())
		if text == "" || a.processor == nil {
			return a, nil, true
		}
		a.textarea.Reset()
		ctx, cancel := context.WithCancel(context.Background())
		a.startTurn(cancel)
		return a, tea.Batch(sendCmd(ctx, a.processor, text), a.spinner.Tick), true
	}
	return a, nil, false
}

func (a ChatView) reset() (ChatView, tea.Cmd) {
	if err := a.processor.Reset(); err != nil {
		return a.flash(err.Error(), true)
	}
	a.items = nil
	a.snapshotID = ""
	a.snapshotName = ""
	a.refresh(true)
	return a.flash("New conversation", false)
}

func (a *ChatView) startTurn(cancel context.CancelFunc) {
	a.busy = true
	a.cancel = cancel
	a.status = ""
	a.statusIsError = false
}

func (a ChatView) resolve(id string, approve bool, before tea.Cmd) (ChatView, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	a.startTurn(cancel)
	run := approvalCmd(ctx, a.processor, id, approve)
	if before != nil {
		run = tea.Sequence(before, run)
	}
	return a, tea.Batch(run, a.spinner.Tick)
}

func (a ChatView) turnDone(msg model.TurnDoneMsg) (tea.Model, tea.Cmd) {
	if a.cancel != nil {
		a.cancel()
	}
	a.busy = false
	a.cancel = nil
	a.items = a.processor.Items()
	a.state = a.processor.State().String()
	a.refresh(true)

	var cmds []tea.Cmd
	if a.transcripts != nil && len(a.items) > 0 {
		a.ensureSnapshotID()
		cmds = append(cmds, saveTranscriptCmd(a.transcripts, a.snapshot(), true))
	}

	if msg.Err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] Turn ended with error: %v", msg.Err)
		}
		next, cmd := a.flash(describeError(msg.Err), true)
		return next, tea.Batch(append(cmds, cmd)...)
	}
	return a, tea.Batch(cmds...)
}

// describeError turns a turn failure into a status line.
func describeError(err error) string {
	var se *provider.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, assistant.ErrTurnLimit):
		return "Stopped: too many tool round trips"
	case errors.As(err, &se):
		if se.Message != "" {
			return fmt.Sprintf("Server error %d: %s", se.StatusCode, se.Message)
		}
		return fmt.Sprintf("Server error %d", se.StatusCode)
	default:
		return "Error: " + err.Error()
	}
}

func (a ChatView) flash(text string, isErr bool) (ChatView, tea.Cmd) {
	a.status = text
	a.statusIsError = isErr
	return a, tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return model.FlashTickMsg{}
	})
}

func (a *ChatView) refresh(gotoBottom bool) {
	if !a.ready {
		return
	}
	a.viewport.SetContent(renderTranscript(a.items, a.width, a.markdown, a.busy, a.spinner.View()))
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

// pendingApproval returns the undecided approval request, if any.
func (a ChatView) pendingApproval() *model.McpApprovalRequest {
	for i := len(a.items) - 1; i >= 0; i-- {
		if req, ok := a.items[i].(*model.McpApprovalRequest); ok && req.Decision == model.DecisionPending {
			return req
		}
	}
	return nil
}

func (a ChatView) lastReply() string {
	for i := len(a.items) - 1; i >= 0; i-- {
		if m, ok := a.items[i].(*model.Message); ok && m.Role == model.RoleAssistant && m.Text() != "" {
			return m.Text()
		}
	}
	return ""
}

// ensureSnapshotID fixes the id before the first save so autosaves that
// overlap write the same file.
func (a *ChatView) ensureSnapshotID() {
	if a.snapshotID == "" {
		a.snapshotID = uuid.NewString()
	}
}

func (a ChatView) snapshot() storage.Snapshot {
	return storage.Snapshot{
		ID:    a.snapshotID,
		Name:  a.snapshotName,
		Model: a.modelName,
		Items: a.items,
	}
}

func firstUserText(items []model.Item) string {
	for _, it := range items {
		if m, ok := it.(*model.Message); ok && m.Role == model.RoleUser {
			return m.Text()
		}
	}
	return ""
}

func (a ChatView) View() string {
	if !a.ready {
		return "Loading Concierge..."
	}
	if a.showHelp {
		return renderHelpModal(a.width, a.height)
	}
	if a.notice != "" {
		return RenderAcknowledgeModal(a.noticeTitle, a.notice, ModalTypeError, a.width, a.height)
	}
	if a.confirmReset {
		return RenderConfirmationModal("Start a new conversation?", "The current transcript stays in your history.", a.width, a.height)
	}

	name := a.snapshotName
	if name == "" {
		name = "New conversation"
	}
	title := AssistantStyle.Render("Concierge") +
		TitleStyle.Render(" - "+a.modelName) +
		UserStyle.Render(" - "+name)
	if a.serverWarning != "" {
		title += " " + ErrorStyle.Render("| "+a.serverWarning)
	}
	if a.busy {
		title += " " + DimStyle.Render("| "+a.state)
	}

	input := a.textarea.View()
	if a.pendingApproval() != nil && !a.busy {
		input = "\n" + FormatFooter("y", "Approve", "a", "Always approve", "n", "Deny") + "\n"
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		input,
		a.statusBar(),
	)
}

func (a ChatView) statusBar() string {
	if a.status != "" {
		if a.statusIsError {
			return ErrorStyle.Render(a.status)
		}
		return SuccessStyle.Render(a.status)
	}
	descStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	bar := fmt.Sprintf("Alt+Q %s  Enter %s  Esc %s  Ctrl+Y %s  Ctrl+S %s  Ctrl+R %s  Alt+H %s",
		descStyle.Render("Quit"),
		descStyle.Render("Send"),
		descStyle.Render("Cancel"),
		descStyle.Render("Copy"),
		descStyle.Render("Save"),
		descStyle.Render("New"),
		descStyle.Render("Help"),
	)
	return StatusStyle.Render(bar)
}
