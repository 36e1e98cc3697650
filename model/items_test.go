package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnnotation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Annotation
	}{
		{
			name: "snake case",
			raw:  `{"type":"container_file_citation","file_id":"f1","container_id":"c1","start_index":3,"end_index":9}`,
			want: Annotation{Type: "container_file_citation", FileID: "f1", ContainerID: "c1", StartIndex: 3, EndIndex: 9},
		},
		{
			name: "camel case",
			raw:  `{"type":"file_citation","fileId":"f2","containerId":"c2","filename":"report.pdf","index":4}`,
			want: Annotation{Type: "file_citation", FileID: "f2", ContainerID: "c2", Filename: "report.pdf", Index: 4},
		},
		{
			name: "url citation",
			raw:  `{"type":"url_citation","url":"https://example.com","title":"Example"}`,
			want: Annotation{Type: "url_citation", URL: "https://example.com", Title: "Example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAnnotation(json.RawMessage(tt.raw)))
		})
	}
}

func TestMessageAppend(t *testing.T) {
	m := &Message{ID: "msg_1", Role: RoleAssistant}
	m.AppendText("Hel")
	m.AppendText("lo")
	m.AddAnnotation(Annotation{Type: "url_citation", URL: "https://example.com"})

	assert.Equal(t, "Hello", m.Text())
	require.Len(t, m.Content, 1)
	assert.Equal(t, "output_text", m.Content[0].Type)
	assert.Len(t, m.Content[0].Annotations, 1)
}

func TestCloneIsDeep(t *testing.T) {
	call := &ToolCall{
		ID:              "fc_1",
		ToolType:        ToolFunctionCall,
		ParsedArguments: map[string]any{"location": "Boston", "days": []any{1.0, 2.0}},
	}
	c := call.Clone().(*ToolCall)
	c.ParsedArguments["location"] = "Paris"
	c.ParsedArguments["days"].([]any)[0] = 9.0

	assert.Equal(t, "Boston", call.ParsedArguments["location"])
	assert.Equal(t, 1.0, call.ParsedArguments["days"].([]any)[0])

	msg := NewAssistantMessage("msg_1", "hi")
	mc := msg.Clone().(*Message)
	mc.AppendText(" there")
	assert.Equal(t, "hi", msg.Text())

	hotels := &HotelList{ID: "mcp_1", Hotels: []Hotel{{Name: "Grand Hotel", Image: FlexStrings{"a.jpg"}}}}
	hc := hotels.Clone().(*HotelList)
	hc.Hotels[0].Image[0] = "b.jpg"
	assert.Equal(t, "a.jpg", hotels.Hotels[0].Image[0])
}

func TestMarshalItemsRoundTrip(t *testing.T) {
	items := []Item{
		NewUserMessage("user_1", "Find me a hotel in Lisbon"),
		&ToolCall{ID: "mcp_1", ToolType: ToolMcpCall, Status: StatusCompleted, Name: "find_hotel_by_query", RawArguments: `{"query":"Lisbon"}`, ParsedArguments: map[string]any{"query": "Lisbon"}},
		&HotelList{ID: "mcp_1", Hotels: []Hotel{{HotelID: "h1", Name: "Grand Hotel", NightlyPrice: "120"}}},
		&PriceComparisonList{ID: "mcp_2", HotelName: "Grand Hotel", CheckIn: "2025-06-01", Prices: []PriceOption{{Provider: "Direct", Price: 110}}},
		&McpApprovalRequest{ID: "apr_1", ServerLabel: "hotels", Name: "book_hotel", Decision: DecisionApproved},
		&McpListTools{ID: "lt_1", ServerLabel: "hotels", Tools: []McpTool{{Name: "book_hotel"}}},
	}

	data, err := MarshalItems(items)
	require.NoError(t, err)

	got, err := UnmarshalItems(data)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestUnmarshalItemsUnknownKind(t *testing.T) {
	_, err := UnmarshalItems([]byte(`[{"kind":"carousel","item":{}}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carousel")
}

func TestWireHistory(t *testing.T) {
	var w WireHistory
	require.NoError(t, w.Append(WireMessage{Role: RoleUser, Content: "hi"}))
	require.NoError(t, w.Append(NewFunctionCallOutput("call_1", `{"temp":20}`)))
	require.NoError(t, w.Append(NewMcpApprovalResponse("apr_1", true)))
	w.AppendRaw(json.RawMessage(`{"type":"function_call","id":"fc_1"}`))

	entries := w.Entries()
	require.Len(t, entries, 4)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(entries[0]))
	assert.JSONEq(t, `{"type":"function_call_output","call_id":"call_1","output":"{\"temp\":20}","status":"completed"}`, string(entries[1]))
	assert.JSONEq(t, `{"type":"mcp_approval_response","approval_request_id":"apr_1","approve":true}`, string(entries[2]))

	entries[3][0] = 'X'
	assert.JSONEq(t, `{"type":"function_call","id":"fc_1"}`, string(w.Entries()[3]))

	w.Reset()
	assert.Equal(t, 0, w.Len())
}
