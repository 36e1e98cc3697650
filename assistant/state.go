package assistant

import (
	"errors"
	"fmt"

	"concierge/model"
)

// State is the phase of the turn chain currently running.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateAwaitingToolExecution
	StateRecursing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateAwaitingToolExecution:
		return "awaiting_tool_execution"
	case StateRecursing:
		return "recursing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrTurnInProgress    = errors.New("a turn is already in progress")
	ErrTurnLimit         = errors.New("turn limit reached")
	ErrNoPendingApproval = errors.New("no pending approval request with that id")
)

// TransportError reports a turn that could not be opened. The transcript is
// left as it was before the turn.
type TransportError struct {
	Turn int
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("turn %d: transport: %v", e.Turn, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Snapshot is a read-only copy of the processor state handed to renderers.
type Snapshot struct {
	Items []model.Item
	State State
	Err   error
}
