package assistant

import (
	"encoding/json"
	"strings"

	"concierge/config"
	"concierge/model"
	"concierge/partialjson"
	"concierge/stream"
	"concierge/widget"
)

// Output item types as they appear in the stream.
const (
	itemMessage            = "message"
	itemFunctionCall       = "function_call"
	itemWebSearchCall      = "web_search_call"
	itemFileSearchCall     = "file_search_call"
	itemMcpCall            = "mcp_call"
	itemCodeInterpreter    = "code_interpreter_call"
	itemMcpListTools       = "mcp_list_tools"
	itemMcpApprovalRequest = "mcp_approval_request"
)

// functionCall is a completed local call waiting to be executed.
type functionCall struct {
	itemID string
	callID string
	name   string
	args   map[string]any
}

// turnFold applies the events of one turn to the transcript and the wire
// history. Callers hold the processor lock.
type turnFold struct {
	transcript *model.Transcript
	wire       *model.WireHistory

	// argument buffers keyed by item id; function and MCP calls never share one
	args     map[string]string
	done     map[string]bool
	lastCode string

	pendingCalls int
	halted       bool
}

func newTurnFold(t *model.Transcript, w *model.WireHistory) *turnFold {
	return &turnFold{
		transcript: t,
		wire:       w,
		args:       make(map[string]string),
		done:       make(map[string]bool),
	}
}

// continues reports whether the turn must be followed by another one.
func (f *turnFold) continues() bool {
	return f.pendingCalls > 0 && !f.halted
}

// apply folds ev. A non-nil functionCall must be executed before the next
// event is folded.
func (f *turnFold) apply(ev stream.Event) *functionCall {
	switch e := ev.(type) {
	case stream.OutputTextDelta:
		f.appendText(e.ItemID, e.Delta, nil)
	case stream.OutputTextAnnotationAdded:
		f.appendText(e.ItemID, e.Delta, e.Annotation)
	case stream.OutputItemAdded:
		f.itemAdded(e.Item)
	case stream.OutputItemDone:
		return f.itemDone(e.Item)
	case stream.FunctionCallArgumentsDelta:
		f.argumentsDelta(e.ItemID, e.Delta)
	case stream.FunctionCallArgumentsDone:
		f.argumentsDone(e.ItemID, e.Arguments)
	case stream.McpCallArgumentsDelta:
		f.argumentsDelta(e.ItemID, e.Delta)
	case stream.McpCallArgumentsDone:
		f.argumentsDone(e.ItemID, e.Arguments)
	case stream.WebSearchCallCompleted:
		f.searchCompleted(e.ItemID, e.Output)
	case stream.FileSearchCallCompleted:
		f.searchCompleted(e.ItemID, e.Output)
	case stream.CodeInterpreterCodeDelta:
		if tc, ok := f.openCodeCall(e.ItemID); ok {
			tc.Code += e.Delta
		}
	case stream.CodeInterpreterCodeDone:
		if tc, ok := f.openCodeCall(e.ItemID); ok {
			tc.Code = e.Code
			tc.Status = model.StatusCompleted
		}
	case stream.CodeInterpreterCallCompleted:
		if tc, ok := f.transcript.ToolCall(e.ItemID); ok {
			tc.Status = model.StatusCompleted
		}
	case stream.ResponseCompleted:
		f.responseCompleted(e.Response.Output)
	case stream.Unknown:
		logf("[Assistant] Ignoring event %s", e.Event)
	}
	return nil
}

// appendText adds a text delta to the current assistant message, starting a
// new one when the last item is not an assistant message for itemID.
func (f *turnFold) appendText(itemID, delta string, annotation json.RawMessage) {
	msg, ok := f.transcript.Last().(*model.Message)
	if !ok || msg.Role != model.RoleAssistant || (itemID != "" && msg.ID != itemID) {
		msg = model.NewAssistantMessage(itemID, "")
		f.transcript.Append(msg)
	}
	msg.AppendText(delta)

	if !present(annotation) {
		return
	}
	a := model.NormalizeAnnotation(annotation)
	msg.AddAnnotation(a)
	if a.Type == "container_file_citation" {
		f.attachFile(a)
	}
}

// attachFile records a cited container file on the latest code interpreter
// call of the turn.
func (f *turnFold) attachFile(a model.Annotation) {
	tc, ok := f.transcript.ToolCall(f.lastCode)
	if !ok || a.FileID == "" {
		return
	}
	for _, file := range tc.Files {
		if file.FileID == a.FileID {
			return
		}
	}
	tc.Files = append(tc.Files, model.CodeFile{FileID: a.FileID, ContainerID: a.ContainerID, Filename: a.Filename})
}

func (f *turnFold) itemAdded(item stream.OutputItem) {
	switch item.Type {
	case itemMessage:
		f.transcript.Append(messageFromItem(item))

	case itemFunctionCall:
		f.args[item.ID] = item.Arguments
		f.transcript.Append(&model.ToolCall{
			ID:              item.ID,
			CallID:          item.CallID,
			ToolType:        model.ToolFunctionCall,
			Status:          model.StatusInProgress,
			Name:            item.Name,
			RawArguments:    item.Arguments,
			ParsedArguments: map[string]any{},
		})

	case itemWebSearchCall, itemFileSearchCall:
		f.transcript.Append(&model.ToolCall{
			ID:       item.ID,
			ToolType: model.ToolType(item.Type),
			Status:   statusOr(item.Status, model.StatusInProgress),
		})

	case itemMcpCall:
		f.args[item.ID] = item.Arguments
		f.transcript.Append(&model.ToolCall{
			ID:              item.ID,
			ToolType:        model.ToolMcpCall,
			Status:          model.StatusInProgress,
			Name:            item.Name,
			ServerLabel:     item.ServerLabel,
			RawArguments:    item.Arguments,
			ParsedArguments: parseArguments(item.Arguments, map[string]any{}),
		})

	case itemCodeInterpreter:
		f.lastCode = item.ID
		f.transcript.Append(&model.ToolCall{
			ID:       item.ID,
			ToolType: model.ToolCodeInterpreterCall,
			Status:   statusOr(item.Status, model.StatusInProgress),
			Files:    []model.CodeFile{},
		})

	default:
		logf("[Assistant] Output item %s added (%s)", item.ID, item.Type)
	}
}

// itemDone pushes the finished item into the wire history and settles its
// transcript entry. A completed local function call is returned for execution.
func (f *turnFold) itemDone(item stream.OutputItem) *functionCall {
	if item.ID != "" {
		if f.done[item.ID] {
			logf("[Assistant] Output item %s already done", item.ID)
			return nil
		}
		f.done[item.ID] = true
	}

	if len(item.Raw) > 0 {
		f.wire.AppendRaw(item.Raw)
	} else if err := f.wire.Append(item); err != nil {
		logf("[Assistant] %v", err)
	}

	switch item.Type {
	case itemMessage:
		if msg, ok := f.transcript.Message(item.ID); ok {
			if msg.Text() == "" {
				*msg = *messageFromItem(item)
			}
		} else {
			f.transcript.Append(messageFromItem(item))
		}

	case itemMcpCall:
		if !f.transcript.HasWidget(item.ID) {
			if w, ok := widget.Normalize(item.Name, item.ID, item.Output); ok {
				f.transcript.Append(w)
			}
		}
		tc := f.toolCallFor(item, model.ToolMcpCall)
		tc.Output = outputText(item.Output)
		tc.Status = model.StatusCompleted
		if present(item.Error) {
			tc.Status = model.StatusFailed
			tc.Output = outputText(item.Error)
		}

	case itemFunctionCall:
		tc := f.toolCallFor(item, model.ToolFunctionCall)
		tc.Status = model.StatusCompleted
		if item.Arguments != "" && item.Arguments != tc.RawArguments {
			tc.RawArguments = item.Arguments
			tc.ParsedArguments = parseArguments(item.Arguments, tc.ParsedArguments)
		}
		if tc.ParsedArguments == nil {
			tc.ParsedArguments = parseArguments(tc.RawArguments, map[string]any{})
		}
		f.pendingCalls++
		return &functionCall{
			itemID: item.ID,
			callID: item.CallID,
			name:   tc.Name,
			args:   cloneArgs(tc.ParsedArguments),
		}

	case itemCodeInterpreter:
		tc := f.toolCallFor(item, model.ToolCodeInterpreterCall)
		if item.Code != "" {
			tc.Code = item.Code
		}
		tc.Status = model.StatusCompleted

	case itemWebSearchCall, itemFileSearchCall:
		tc := f.toolCallFor(item, model.ToolType(item.Type))
		tc.Status = statusOr(item.Status, model.StatusCompleted)
	}
	return nil
}

// toolCallFor returns the transcript entry of item, creating it when the
// matching output_item.added was never seen.
func (f *turnFold) toolCallFor(item stream.OutputItem, tt model.ToolType) *model.ToolCall {
	if tc, ok := f.transcript.ToolCall(item.ID); ok {
		return tc
	}
	tc := &model.ToolCall{
		ID:              item.ID,
		CallID:          item.CallID,
		ToolType:        tt,
		Status:          model.StatusInProgress,
		Name:            item.Name,
		ServerLabel:     item.ServerLabel,
		RawArguments:    item.Arguments,
		ParsedArguments: parseArguments(item.Arguments, map[string]any{}),
	}
	f.transcript.Append(tc)
	return tc
}

func (f *turnFold) argumentsDelta(itemID, delta string) {
	buf := f.args[itemID] + delta
	f.args[itemID] = buf

	tc, ok := f.transcript.ToolCall(itemID)
	if !ok {
		return
	}
	tc.RawArguments = buf
	tc.ParsedArguments = parseArguments(buf, tc.ParsedArguments)
}

func (f *turnFold) argumentsDone(itemID, arguments string) {
	f.args[itemID] = arguments

	tc, ok := f.transcript.ToolCall(itemID)
	if !ok {
		return
	}
	tc.RawArguments = arguments
	tc.ParsedArguments = parseArguments(arguments, tc.ParsedArguments)
	tc.Status = model.StatusCompleted
}

func (f *turnFold) searchCompleted(itemID string, output json.RawMessage) {
	tc, ok := f.transcript.ToolCall(itemID)
	if !ok {
		return
	}
	if present(output) {
		tc.Output = outputText(output)
	}
	tc.Status = model.StatusCompleted
}

// openCodeCall finds the code interpreter call itemID if it is still running.
func (f *turnFold) openCodeCall(itemID string) (*model.ToolCall, bool) {
	tc, ok := f.transcript.ToolCall(itemID)
	if !ok || tc.ToolType != model.ToolCodeInterpreterCall || tc.Status == model.StatusCompleted {
		return nil, false
	}
	return tc, true
}

// responseCompleted surfaces tool listings and approval requests. An approval
// request halts the chain until the user decides.
func (f *turnFold) responseCompleted(output []stream.OutputItem) {
	for _, item := range output {
		switch item.Type {
		case itemMcpListTools:
			if f.transcript.Has(model.KindMcpListTools, item.ID) {
				continue
			}
			f.transcript.Append(&model.McpListTools{
				ID:          item.ID,
				ServerLabel: item.ServerLabel,
				Tools:       decodeTools(item.Tools),
			})

		case itemMcpApprovalRequest:
			f.halted = true
			if f.transcript.Has(model.KindMcpApprovalRequest, item.ID) {
				continue
			}
			f.transcript.Append(&model.McpApprovalRequest{
				ID:          item.ID,
				ServerLabel: item.ServerLabel,
				Name:        item.Name,
				Arguments:   item.Arguments,
			})
		}
	}
}

func messageFromItem(item stream.OutputItem) *model.Message {
	msg := model.NewAssistantMessage(item.ID, "")
	for _, part := range item.TextParts() {
		msg.AppendText(part.Text)
		for _, raw := range part.Annotations {
			msg.AddAnnotation(model.NormalizeAnnotation(raw))
		}
	}
	return msg
}

// parseArguments parses the longest valid prefix of s, keeping prev when
// nothing usable can be read.
func parseArguments(s string, prev map[string]any) map[string]any {
	if strings.TrimSpace(s) == "" {
		return prev
	}
	parsed, err := partialjson.ParseObject(s)
	if err != nil {
		return prev
	}
	return parsed
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func decodeTools(raw json.RawMessage) []model.McpTool {
	if !present(raw) {
		return nil
	}
	var tools []model.McpTool
	if err := json.Unmarshal(raw, &tools); err != nil {
		logf("[Assistant] Failed to decode MCP tool list: %v", err)
		return nil
	}
	return tools
}

// outputText renders a tool output for display: JSON strings are unquoted,
// anything else is kept as JSON.
func outputText(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func present(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

func statusOr(s string, def model.ToolStatus) model.ToolStatus {
	switch st := model.ToolStatus(s); st {
	case model.StatusInProgress, model.StatusCompleted, model.StatusFailed, model.StatusSearching:
		return st
	}
	return def
}

func logf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf(format, args...)
	}
}
