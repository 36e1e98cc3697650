// Package assistant runs conversation turns against a streaming model
// endpoint and folds the resulting events into the transcript.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"concierge/config"
	"concierge/model"
	"concierge/stream"
)

// ToolDeclarer supplies the tools array sent with every turn. It is asked
// again before each turn so preference changes apply immediately.
type ToolDeclarer interface {
	Declarations() ([]json.RawMessage, error)
}

// ToolDeclarerFunc adapts a function to ToolDeclarer.
type ToolDeclarerFunc func() ([]json.RawMessage, error)

func (f ToolDeclarerFunc) Declarations() ([]json.RawMessage, error) { return f() }

// StaticTools declares a fixed tools array.
type StaticTools []json.RawMessage

func (s StaticTools) Declarations() ([]json.RawMessage, error) { return s, nil }

type Options struct {
	Transport       model.Transport
	Executor        model.ToolExecutor
	Tools           ToolDeclarer
	DeveloperPrompt string
	// MaxTurns bounds a chain of turns started by one Send or
	// ResolveApproval. Zero means config.DefaultMaxTurns.
	MaxTurns int
	// OnUpdate is called after every change, outside the processor lock.
	OnUpdate func(Snapshot)
	// NewID names user messages. Defaults to uuid.NewString.
	NewID func() string
}

// Processor owns one conversation: its transcript, the wire history replayed
// to the model and the turn state machine. Only one chain of turns runs at a
// time.
type Processor struct {
	transport       model.Transport
	executor        model.ToolExecutor
	tools           ToolDeclarer
	developerPrompt string
	maxTurns        int
	onUpdate        func(Snapshot)
	newID           func() string

	mu         sync.RWMutex
	transcript *model.Transcript
	wire       model.WireHistory
	state      State
	running    bool
	lastErr    error
}

func New(opts Options) *Processor {
	p := &Processor{
		transport:       opts.Transport,
		executor:        opts.Executor,
		tools:           opts.Tools,
		developerPrompt: opts.DeveloperPrompt,
		maxTurns:        opts.MaxTurns,
		onUpdate:        opts.OnUpdate,
		newID:           opts.NewID,
		transcript:      model.NewTranscript(),
	}
	if p.maxTurns <= 0 {
		p.maxTurns = config.DefaultMaxTurns
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	if p.tools == nil {
		p.tools = StaticTools(nil)
	}
	if p.executor == nil {
		p.executor = model.ToolExecutorFunc(func(_ context.Context, name string, _ map[string]any) any {
			return map[string]string{"error": fmt.Sprintf("no executor for %s", name)}
		})
	}
	return p
}

// Send appends a user message and runs turns until the model settles, asks
// for approval, or fails.
func (p *Processor) Send(ctx context.Context, text string) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrTurnInProgress
	}
	p.running = true
	p.lastErr = nil
	p.transcript.Append(model.NewUserMessage(p.newID(), text))
	err := p.wire.Append(model.WireMessage{Role: model.RoleUser, Content: text})
	p.mu.Unlock()

	if err != nil {
		return p.finish(err)
	}
	p.notify()
	return p.finish(p.run(ctx))
}

// ResolveApproval records the user's decision on a pending MCP approval
// request and continues the conversation.
func (p *Processor) ResolveApproval(ctx context.Context, requestID string, approve bool) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrTurnInProgress
	}
	req, ok := p.transcript.ApprovalRequest(requestID)
	if !ok || req.Decision != model.DecisionPending {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoPendingApproval, requestID)
	}
	p.running = true
	p.lastErr = nil
	req.Decision = model.DecisionDenied
	if approve {
		req.Decision = model.DecisionApproved
	}
	err := p.wire.Append(model.NewMcpApprovalResponse(requestID, approve))
	p.mu.Unlock()

	if err != nil {
		return p.finish(err)
	}
	p.notify()
	return p.finish(p.run(ctx))
}

// Reset clears the conversation.
func (p *Processor) Reset() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrTurnInProgress
	}
	p.transcript.Reset()
	p.wire.Reset()
	p.lastErr = nil
	p.state = StateIdle
	p.mu.Unlock()

	p.notify()
	return nil
}

// Load replaces the conversation with a saved transcript. The wire history is
// rebuilt from its text messages; tool calls are not replayed.
func (p *Processor) Load(items []model.Item) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrTurnInProgress
	}
	p.transcript.Load(items)
	p.wire.Reset()
	var err error
	for _, it := range items {
		msg, ok := it.(*model.Message)
		if !ok || msg.Text() == "" {
			continue
		}
		if err = p.wire.Append(model.WireMessage{Role: msg.Role, Content: msg.Text()}); err != nil {
			break
		}
	}
	p.lastErr = nil
	p.state = StateIdle
	p.mu.Unlock()

	p.notify()
	return err
}

func (p *Processor) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Processor) snapshotLocked() Snapshot {
	return Snapshot{Items: p.transcript.Items(), State: p.state, Err: p.lastErr}
}

func (p *Processor) Items() []model.Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.transcript.Items()
}

func (p *Processor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Processor) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// WireHistory returns the entries replayed to the model on the next turn.
func (p *Processor) WireHistory() []json.RawMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.wire.Entries()
}

// PendingApprovals lists approval requests still waiting on a decision.
func (p *Processor) PendingApprovals() []*model.McpApprovalRequest {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*model.McpApprovalRequest
	for _, it := range p.transcript.Items() {
		if req, ok := it.(*model.McpApprovalRequest); ok && req.Decision == model.DecisionPending {
			out = append(out, req)
		}
	}
	return out
}

// run is the turn loop: a turn that completed local function calls is
// followed by another one, up to maxTurns.
func (p *Processor) run(ctx context.Context) error {
	for turn := 1; ; turn++ {
		if turn > p.maxTurns {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Assistant] Max turns (%d) reached", p.maxTurns)
			}
			return fmt.Errorf("%w: %d", ErrTurnLimit, p.maxTurns)
		}

		more, err := p.turn(ctx, turn)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		p.setState(StateRecursing)
	}
}

// turn issues one request and folds its stream. It reports whether local
// function results are waiting to be sent back.
func (p *Processor) turn(ctx context.Context, n int) (bool, error) {
	p.setState(StateSending)

	tools, err := p.tools.Declarations()
	if err != nil {
		return false, fmt.Errorf("failed to build tool declarations: %w", err)
	}

	p.mu.RLock()
	req := model.TurnRequest{Messages: p.requestMessages(), Tools: tools}
	p.mu.RUnlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Assistant] Turn %d: %d messages, %d tools", n, len(req.Messages), len(req.Tools))
	}

	body, err := p.transport.OpenTurn(ctx, req)
	if err != nil {
		return false, &TransportError{Turn: n, Err: err}
	}
	defer body.Close()

	p.setState(StateStreaming)

	fold := newTurnFold(p.transcript, &p.wire)
	reader := stream.NewReader(body)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		env, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, stream.ErrMalformedFrame) {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Assistant] Skipping frame: %v", err)
			}
			continue
		}
		if err != nil {
			return false, fmt.Errorf("turn %d: read stream: %w", n, err)
		}

		ev, err := stream.Decode(env)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Assistant] Skipping event %s: %v", env.Event, err)
			}
			continue
		}

		p.mu.Lock()
		call := fold.apply(ev)
		p.mu.Unlock()
		p.notify()

		if call != nil {
			if err := p.execute(ctx, call); err != nil {
				return false, err
			}
		}
	}

	return fold.continues(), nil
}

// execute runs a local function call and records its output.
func (p *Processor) execute(ctx context.Context, call *functionCall) error {
	p.setState(StateAwaitingToolExecution)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Assistant] Executing %s (%s)", call.name, call.callID)
	}
	result := p.executor.Execute(ctx, call.name, call.args)

	output, err := json.Marshal(result)
	if err != nil {
		output, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("failed to encode %s result: %v", call.name, err)})
	}

	p.mu.Lock()
	if tc, ok := p.transcript.ToolCall(call.itemID); ok {
		tc.Output = string(output)
	}
	err = p.wire.Append(model.NewFunctionCallOutput(call.callID, string(output)))
	p.state = StateStreaming
	p.mu.Unlock()
	p.notify()

	return err
}

// requestMessages is the developer prompt followed by the wire history.
func (p *Processor) requestMessages() []json.RawMessage {
	entries := p.wire.Entries()
	if p.developerPrompt == "" {
		return entries
	}
	dev, err := json.Marshal(model.WireMessage{Role: model.RoleDeveloper, Content: p.developerPrompt})
	if err != nil {
		return entries
	}
	return append([]json.RawMessage{dev}, entries...)
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	p.mu.Unlock()
	if changed {
		p.notify()
	}
}

// finish ends a chain of turns, recording err.
func (p *Processor) finish(err error) error {
	p.mu.Lock()
	p.running = false
	p.state = StateIdle
	p.lastErr = err
	p.mu.Unlock()

	if err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Assistant] Turn failed: %v", err)
	}
	p.notify()
	return err
}

func (p *Processor) notify() {
	if p.onUpdate == nil {
		return
	}
	p.onUpdate(p.Snapshot())
}
