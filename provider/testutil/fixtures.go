package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frame is one turn stream frame wrapping data under event.
func Frame(event, data string) string {
	return fmt.Sprintf("data: {\"event\":%q,\"data\":%s}\n\n", event, data)
}

// Turn joins frames and appends the [DONE] sentinel.
func Turn(frames ...string) string {
	return strings.Join(frames, "") + "data: [DONE]\n\n"
}

// TextDelta is an output_text delta frame.
func TextDelta(itemID, delta string) string {
	data, _ := json.Marshal(map[string]any{"type": "response.output_text.delta", "item_id": itemID, "delta": delta})
	return Frame("response.output_text.delta", string(data))
}

// APIEvent is an event as the Responses API streams it: the payload carries
// its own type field.
type APIEvent struct {
	Type string
	Data map[string]any
}

func (e APIEvent) JSON() []byte {
	data := map[string]any{"type": e.Type}
	for k, v := range e.Data {
		data[k] = v
	}
	b, _ := json.Marshal(data)
	return b
}

// SampleAPIEvents is a short text answer.
func SampleAPIEvents() []APIEvent {
	return []APIEvent{
		{Type: "response.created", Data: map[string]any{"response": map[string]any{"id": "resp_1", "status": "in_progress", "output": []any{}}}},
		{Type: "response.output_text.delta", Data: map[string]any{"item_id": "msg_1", "output_index": 0, "content_index": 0, "delta": "Bonjour"}},
		{Type: "response.output_text.delta", Data: map[string]any{"item_id": "msg_1", "output_index": 0, "content_index": 0, "delta": " Paris"}},
		{Type: "response.completed", Data: map[string]any{"response": map[string]any{"id": "resp_1", "status": "completed", "output": []any{}}}},
	}
}
