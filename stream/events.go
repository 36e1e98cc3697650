package stream

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Event names carried in the envelope's "event" field.
const (
	EventOutputTextDelta              = "response.output_text.delta"
	EventOutputTextAnnotationAdded    = "response.output_text.annotation.added"
	EventOutputItemAdded              = "response.output_item.added"
	EventOutputItemDone               = "response.output_item.done"
	EventFunctionCallArgumentsDelta   = "response.function_call_arguments.delta"
	EventFunctionCallArgumentsDone    = "response.function_call_arguments.done"
	EventMcpCallArgumentsDelta        = "response.mcp_call_arguments.delta"
	EventMcpCallArgumentsDone         = "response.mcp_call_arguments.done"
	EventWebSearchCallCompleted       = "response.web_search_call.completed"
	EventFileSearchCallCompleted      = "response.file_search_call.completed"
	EventCodeInterpreterCodeDelta     = "response.code_interpreter_call_code.delta"
	EventCodeInterpreterCodeDone      = "response.code_interpreter_call_code.done"
	EventCodeInterpreterCallCompleted = "response.code_interpreter_call.completed"
	EventResponseCompleted            = "response.completed"
)

// Event is the closed set of stream events the turn processor folds. The
// unexported method keeps implementations inside this package.
type Event interface {
	Name() string
	isEvent()
}

// OutputItem is an entry of the response's output list. Only the fields the
// fold reads are typed; Raw holds the full object for replay to the model.
type OutputItem struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Status      string          `json:"status,omitempty"`
	Role        string          `json:"role,omitempty"`
	Name        string          `json:"name,omitempty"`
	CallID      string          `json:"call_id,omitempty"`
	Arguments   string          `json:"arguments,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	ServerLabel string          `json:"server_label,omitempty"`
	Tools       json.RawMessage `json:"tools,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Code        string          `json:"code,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (o *OutputItem) UnmarshalJSON(b []byte) error {
	type plain OutputItem
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*o = OutputItem(p)
	o.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// TextParts returns the output_text fragments of a message item.
func (o OutputItem) TextParts() []TextPart {
	var parts []TextPart
	content := gjson.ParseBytes(o.Content)
	if content.IsObject() {
		// some servers send a single content object instead of a list
		return []TextPart{{Text: content.Get("text").String(), Annotations: rawArray(content.Get("annotations"))}}
	}
	content.ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").String() {
		case "output_text", "input_text", "text":
			parts = append(parts, TextPart{
				Text:        part.Get("text").String(),
				Annotations: rawArray(part.Get("annotations")),
			})
		}
		return true
	})
	return parts
}

// TextPart is one text fragment of a message item.
type TextPart struct {
	Text        string
	Annotations []json.RawMessage
}

func rawArray(r gjson.Result) []json.RawMessage {
	if !r.IsArray() {
		return nil
	}
	var out []json.RawMessage
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, json.RawMessage(v.Raw))
		return true
	})
	return out
}

type OutputTextDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type OutputTextAnnotationAdded struct {
	ItemID     string          `json:"item_id"`
	Delta      string          `json:"delta"`
	Annotation json.RawMessage `json:"annotation"`
}

type OutputItemAdded struct {
	OutputIndex int        `json:"output_index"`
	Item        OutputItem `json:"item"`
}

type OutputItemDone struct {
	OutputIndex int        `json:"output_index"`
	Item        OutputItem `json:"item"`
}

type FunctionCallArgumentsDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type FunctionCallArgumentsDone struct {
	ItemID    string `json:"item_id"`
	Arguments string `json:"arguments"`
}

type McpCallArgumentsDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type McpCallArgumentsDone struct {
	ItemID    string `json:"item_id"`
	Arguments string `json:"arguments"`
}

type WebSearchCallCompleted struct {
	ItemID string          `json:"item_id"`
	Output json.RawMessage `json:"output,omitempty"`
}

type FileSearchCallCompleted struct {
	ItemID string          `json:"item_id"`
	Output json.RawMessage `json:"output,omitempty"`
}

type CodeInterpreterCodeDelta struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

type CodeInterpreterCodeDone struct {
	ItemID string `json:"item_id"`
	Code   string `json:"code"`
}

type CodeInterpreterCallCompleted struct {
	ItemID string `json:"item_id"`
}

// ResponseCompleted carries the final output list of the response.
type ResponseCompleted struct {
	Response struct {
		ID     string       `json:"id"`
		Status string       `json:"status"`
		Output []OutputItem `json:"output"`
	} `json:"response"`
}

// Unknown is any event the fold does not react to. It is returned rather than
// dropped so callers can log it.
type Unknown struct {
	Event string
	Data  json.RawMessage
}

func (OutputTextDelta) Name() string { return EventOutputTextDelta }
func (OutputTextAnnotationAdded) Name() string { return EventOutputTextAnnotationAdded }
func (OutputItemAdded) Name() string { return EventOutputItemAdded }
func (OutputItemDone) Name() string { return EventOutputItemDone }
func (FunctionCallArgumentsDelta) Name() string { return EventFunctionCallArgumentsDelta }
func (FunctionCallArgumentsDone) Name() string { return EventFunctionCallArgumentsDone }
func (McpCallArgumentsDelta) Name() string { return EventMcpCallArgumentsDelta }
func (McpCallArgumentsDone) Name() string { return EventMcpCallArgumentsDone }
func (WebSearchCallCompleted) Name() string { return EventWebSearchCallCompleted }
func (FileSearchCallCompleted) Name() string { return EventFileSearchCallCompleted }
func (CodeInterpreterCodeDelta) Name() string { return EventCodeInterpreterCodeDelta }
func (CodeInterpreterCodeDone) Name() string { return EventCodeInterpreterCodeDone }
func (CodeInterpreterCallCompleted) Name() string { return EventCodeInterpreterCallCompleted }
func (ResponseCompleted) Name() string { return EventResponseCompleted }
func (u Unknown) Name() string { return u.Event }

func (OutputTextDelta) isEvent() {}
func (OutputTextAnnotationAdded) isEvent() {}
func (OutputItemAdded) isEvent() {}
func (OutputItemDone) isEvent() {}
func (FunctionCallArgumentsDelta) isEvent() {}
func (FunctionCallArgumentsDone) isEvent() {}
func (McpCallArgumentsDelta) isEvent() {}
func (McpCallArgumentsDone) isEvent() {}
func (WebSearchCallCompleted) isEvent() {}
func (FileSearchCallCompleted) isEvent() {}
func (CodeInterpreterCodeDelta) isEvent() {}
func (CodeInterpreterCodeDone) isEvent() {}
func (CodeInterpreterCallCompleted) isEvent() {}
func (ResponseCompleted) isEvent() {}
func (Unknown) isEvent() {}

// Decode interprets an envelope's payload according to its event name.
// Unrecognized names yield Unknown; a payload that does not match the shape
// of a recognized name yields a *DecodeError.
func Decode(env Envelope) (Event, error) {
	var ev Event
	var err error

	switch env.Event {
	case EventOutputTextDelta:
		ev, err = decodeAs[OutputTextDelta](env.Data)
	case EventOutputTextAnnotationAdded:
		ev, err = decodeAs[OutputTextAnnotationAdded](env.Data)
	case EventOutputItemAdded:
		ev, err = decodeAs[OutputItemAdded](env.Data)
	case EventOutputItemDone:
		ev, err = decodeAs[OutputItemDone](env.Data)
	case EventFunctionCallArgumentsDelta:
		ev, err = decodeAs[FunctionCallArgumentsDelta](env.Data)
	case EventFunctionCallArgumentsDone:
		ev, err = decodeAs[FunctionCallArgumentsDone](env.Data)
	case EventMcpCallArgumentsDelta:
		ev, err = decodeAs[McpCallArgumentsDelta](env.Data)
	case EventMcpCallArgumentsDone:
		ev, err = decodeAs[McpCallArgumentsDone](env.Data)
	case EventWebSearchCallCompleted:
		ev, err = decodeAs[WebSearchCallCompleted](env.Data)
	case EventFileSearchCallCompleted:
		ev, err = decodeAs[FileSearchCallCompleted](env.Data)
	case EventCodeInterpreterCodeDelta:
		ev, err = decodeAs[CodeInterpreterCodeDelta](env.Data)
	case EventCodeInterpreterCodeDone:
		ev, err = decodeAs[CodeInterpreterCodeDone](env.Data)
	case EventCodeInterpreterCallCompleted:
		ev, err = decodeAs[CodeInterpreterCallCompleted](env.Data)
	case EventResponseCompleted:
		ev, err = decodeAs[ResponseCompleted](env.Data)
	default:
		return Unknown{Event: env.Event, Data: env.Data}, nil
	}

	if err != nil {
		return nil, &DecodeError{Frame: env.Event, Err: fmt.Errorf("decode %s: %w", env.Event, err)}
	}
	return ev, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var v T
	if len(data) == 0 || gjson.ParseBytes(data).Type == gjson.Null {
		return v, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json payload")
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
