package model

import (
	"context"
	"encoding/json"
	"io"
)

// TurnRequest is the body sent to the turn endpoint: the wire history and the
// tool declarations, passed through opaquely.
type TurnRequest struct {
	Messages []json.RawMessage `json:"messages"`
	Tools    []json.RawMessage `json:"tools"`
}

// Transport opens one model turn and returns its SSE byte stream.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations can import model, and the assistant
// package can depend on Transport without importing provider.
type Transport interface {
	// OpenTurn issues the request. A non-nil error means no stream was
	// opened; the caller owns closing the returned body.
	OpenTurn(ctx context.Context, req TurnRequest) (io.ReadCloser, error)
}

// ToolExecutor runs local function calls. Execute never fails: errors are
// returned as a JSON-serializable error result.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) any
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, name string, args map[string]any) any

func (f ToolExecutorFunc) Execute(ctx context.Context, name string, args map[string]any) any {
	return f(ctx, name, args)
}
