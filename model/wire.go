package model

import (
	"encoding/json"
	"fmt"
)

// WireHistory is the conversation as replayed to the model. Entries are kept
// as raw JSON so items received from the stream are sent back unchanged.
type WireHistory struct {
	entries []json.RawMessage
}

// WireMessage is a plain role/content input message.
type WireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type FunctionCallOutput struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
	Status string `json:"status,omitempty"`
}

type McpApprovalResponse struct {
	Type              string `json:"type"`
	ApprovalRequestID string `json:"approval_request_id"`
	Approve           bool   `json:"approve"`
}

func NewFunctionCallOutput(callID, output string) FunctionCallOutput {
	return FunctionCallOutput{Type: "function_call_output", CallID: callID, Output: output, Status: string(StatusCompleted)}
}

func NewMcpApprovalResponse(requestID string, approve bool) McpApprovalResponse {
	return McpApprovalResponse{Type: "mcp_approval_response", ApprovalRequestID: requestID, Approve: approve}
}

// Append encodes v and adds it.
func (w *WireHistory) Append(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode wire entry: %w", err)
	}
	w.entries = append(w.entries, raw)
	return nil
}

// AppendRaw adds an already-encoded entry.
func (w *WireHistory) AppendRaw(raw json.RawMessage) {
	w.entries = append(w.entries, append(json.RawMessage(nil), raw...))
}

// Entries returns a copy of the history.
func (w *WireHistory) Entries() []json.RawMessage {
	out := make([]json.RawMessage, len(w.entries))
	for i, e := range w.entries {
		out[i] = append(json.RawMessage(nil), e...)
	}
	return out
}

func (w *WireHistory) Len() int { return len(w.entries) }

func (w *WireHistory) Reset() { w.entries = nil }
