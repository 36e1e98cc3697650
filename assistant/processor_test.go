package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"concierge/model"
)

// scriptedTransport answers each turn with the next canned SSE body.
type scriptedTransport struct {
	mu       sync.Mutex
	bodies   []string
	requests []model.TurnRequest
	err      error
}

func (s *scriptedTransport) OpenTurn(_ context.Context, req model.TurnRequest) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.bodies) == 0 {
		return nil, errors.New("no scripted turn left")
	}
	body := s.bodies[0]
	s.bodies = s.bodies[1:]
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s *scriptedTransport) Requests() []model.TurnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TurnRequest(nil), s.requests...)
}

type recordingExecutor struct {
	mu     sync.Mutex
	calls  []executedCall
	result any
}

type executedCall struct {
	Name string
	Args map[string]any
}

func (r *recordingExecutor) Execute(_ context.Context, name string, args map[string]any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, executedCall{Name: name, Args: args})
	return r.result
}

func event(name, data string) string {
	return fmt.Sprintf("data: {\"event\":%q,\"data\":%s}\n\n", name, data)
}

func sse(events ...string) string {
	return strings.Join(events, "") + "data: [DONE]\n\n"
}

func textDelta(itemID, delta string) string {
	data, _ := json.Marshal(map[string]string{"item_id": itemID, "delta": delta})
	return event("response.output_text.delta", string(data))
}

func newTestProcessor(tr model.Transport, exec model.ToolExecutor, opts ...func(*Options)) *Processor {
	o := Options{
		Transport:       tr,
		Executor:        exec,
		DeveloperPrompt: "You are a concierge.",
		NewID:           func() string { return "user_1" },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func TestSendStreamsAssistantText(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(
		event("response.output_item.added", `{"output_index":0,"item":{"type":"message","id":"msg_1","role":"assistant","content":[]}}`),
		textDelta("msg_1", "Hel"),
		textDelta("msg_1", "lo"),
		event("response.output_item.done", `{"output_index":0,"item":{"type":"message","id":"msg_1","role":"assistant","content":[{"type":"output_text","text":"Hello"}]}}`),
	)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "hi"))

	items := p.Items()
	require.Len(t, items, 2)
	user := items[0].(*model.Message)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "hi", user.Text())
	reply := items[1].(*model.Message)
	assert.Equal(t, "msg_1", reply.ID)
	assert.Equal(t, "Hello", reply.Text())

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, "developer", gjson.GetBytes(reqs[0].Messages[0], "role").String())
	assert.Equal(t, "hi", gjson.GetBytes(reqs[0].Messages[1], "content").String())

	wire := p.WireHistory()
	require.Len(t, wire, 2, "developer prompt is not stored")
	assert.Equal(t, "message", gjson.GetBytes(wire[1], "type").String())
	assert.Equal(t, StateIdle, p.State())
	assert.NoError(t, p.LastError())
}

func TestDeltaForNewItemStartsNewMessage(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(
		textDelta("msg_1", "first"),
		textDelta("msg_2", "second"),
		event("response.output_text.annotation.added",
			`{"item_id":"msg_2","delta":"","annotation":{"type":"url_citation","url":"https://example.com","title":"Example"}}`),
	)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "hi"))

	items := p.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[1].(*model.Message).Text())
	second := items[2].(*model.Message)
	assert.Equal(t, "second", second.Text())
	require.Len(t, second.Content[0].Annotations, 1)
	assert.Equal(t, "https://example.com", second.Content[0].Annotations[0].URL)
}

func TestFunctionCallRunsExecutorAndContinues(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{
		sse(
			event("response.output_item.added", `{"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_weather","arguments":""}}`),
			event("response.function_call_arguments.delta", `{"item_id":"fc_1","delta":"{\"ci"}`),
			event("response.function_call_arguments.delta", `{"item_id":"fc_1","delta":"ty\":\"Boston\"}"}`),
			event("response.function_call_arguments.done", `{"item_id":"fc_1","arguments":"{\"city\":\"Boston\"}"}`),
			event("response.output_item.done", `{"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_weather","arguments":"{\"city\":\"Boston\"}","status":"completed"}}`),
		),
		sse(textDelta("msg_2", "It is 20 degrees in Boston.")),
	}}
	exec := &recordingExecutor{result: map[string]any{"temperature": 20}}

	var mu sync.Mutex
	var partial []map[string]any
	p := newTestProcessor(tr, exec, func(o *Options) {
		o.OnUpdate = func(s Snapshot) {
			for _, it := range s.Items {
				if tc, ok := it.(*model.ToolCall); ok && tc.Status == model.StatusInProgress {
					mu.Lock()
					partial = append(partial, tc.ParsedArguments)
					mu.Unlock()
				}
			}
		}
	})

	require.NoError(t, p.Send(context.Background(), "weather in Boston?"))

	require.Len(t, exec.calls, 1)
	assert.Equal(t, "get_weather", exec.calls[0].Name)
	assert.Equal(t, map[string]any{"city": "Boston"}, exec.calls[0].Args)

	items := p.Items()
	require.Len(t, items, 3)
	call := items[1].(*model.ToolCall)
	assert.Equal(t, model.StatusCompleted, call.Status)
	assert.Equal(t, map[string]any{"city": "Boston"}, call.ParsedArguments)
	assert.JSONEq(t, `{"temperature":20}`, call.Output)
	assert.Equal(t, "It is 20 degrees in Boston.", items[2].(*model.Message).Text())

	mu.Lock()
	assert.Contains(t, partial, map[string]any{})
	mu.Unlock()

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	second := reqs[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, "function_call_output", gjson.GetBytes(last, "type").String())
	assert.Equal(t, "call_1", gjson.GetBytes(last, "call_id").String())
	assert.JSONEq(t, `{"temperature":20}`, gjson.GetBytes(last, "output").String())
	assert.Equal(t, "function_call", gjson.GetBytes(second[len(second)-2], "type").String())
}

const hotelOutput = `{"content":[{"type":"text","text":"[{\"name\":\"Grand Hotel\",\"hotel_id\":\"h1\"}]"}]}`

func mcpHotelEvents() []string {
	done := fmt.Sprintf(`{"output_index":0,"item":{"type":"mcp_call","id":"mcp_1","name":"find_hotel_by_query","server_label":"hotels","arguments":"{\"query\":\"Paris\"}","output":%q}}`, hotelOutput)
	return []string{
		event("response.output_item.added", `{"output_index":0,"item":{"type":"mcp_call","id":"mcp_1","name":"find_hotel_by_query","server_label":"hotels","arguments":""}}`),
		event("response.mcp_call_arguments.delta", `{"item_id":"mcp_1","delta":"{\"query\":\"Par"}`),
		event("response.mcp_call_arguments.done", `{"item_id":"mcp_1","arguments":"{\"query\":\"Paris\"}"}`),
		event("response.output_item.done", done),
	}
}

func TestMcpCallProducesWidgetWithoutRecursion(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(mcpHotelEvents()...)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "hotels in Paris"))

	assert.Len(t, tr.Requests(), 1)
	items := p.Items()
	require.Len(t, items, 3)

	call := items[1].(*model.ToolCall)
	assert.Equal(t, model.ToolMcpCall, call.ToolType)
	assert.Equal(t, model.StatusCompleted, call.Status)
	assert.Equal(t, map[string]any{"query": "Paris"}, call.ParsedArguments)

	list, ok := items[2].(*model.HotelList)
	require.True(t, ok, "got %T", items[2])
	assert.Equal(t, "mcp_1", list.ID)
	require.Len(t, list.Hotels, 1)
	assert.Equal(t, "Grand Hotel", list.Hotels[0].Name)
}

func TestDuplicateItemDoneIsIgnored(t *testing.T) {
	events := mcpHotelEvents()
	events = append(events, events[len(events)-1])
	tr := &scriptedTransport{bodies: []string{sse(events...)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "hotels in Paris"))

	widgets := 0
	for _, it := range p.Items() {
		if it.Kind() == model.KindHotelList {
			widgets++
		}
	}
	assert.Equal(t, 1, widgets)
	assert.Len(t, p.WireHistory(), 2)
}

func TestUnhandledMcpToolProducesNoWidget(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(
		event("response.output_item.added", `{"output_index":0,"item":{"type":"mcp_call","id":"mcp_9","name":"get_time"}}`),
		event("response.output_item.done", `{"output_index":0,"item":{"type":"mcp_call","id":"mcp_9","name":"get_time","output":"12:00"}}`),
	)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "time?"))

	items := p.Items()
	require.Len(t, items, 2)
	call := items[1].(*model.ToolCall)
	assert.Equal(t, "12:00", call.Output)
	assert.Equal(t, model.StatusCompleted, call.Status)
}

func approvalTurn() string {
	return sse(event("response.completed", `{"response":{"id":"resp_1","status":"completed","output":[`+
		`{"type":"mcp_list_tools","id":"lt_1","server_label":"hotels","tools":[{"name":"book_hotel","description":"Book a room"}]},`+
		`{"type":"mcp_approval_request","id":"apr_1","server_label":"hotels","name":"book_hotel","arguments":"{\"hotel\":\"h1\"}"}`+
		`]}}`))
}

func TestApprovalRequestHaltsAndResumes(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{
		approvalTurn(),
		sse(textDelta("msg_3", "Booked.")),
	}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "book it"))
	assert.Len(t, tr.Requests(), 1)

	items := p.Items()
	require.Len(t, items, 3)
	tools := items[1].(*model.McpListTools)
	require.Len(t, tools.Tools, 1)
	assert.Equal(t, "book_hotel", tools.Tools[0].Name)

	pending := p.PendingApprovals()
	require.Len(t, pending, 1)
	assert.Equal(t, "apr_1", pending[0].ID)

	err := p.ResolveApproval(context.Background(), "apr_missing", true)
	assert.ErrorIs(t, err, ErrNoPendingApproval)

	require.NoError(t, p.ResolveApproval(context.Background(), "apr_1", true))

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	msgs := reqs[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, "mcp_approval_response", gjson.GetBytes(last, "type").String())
	assert.Equal(t, "apr_1", gjson.GetBytes(last, "approval_request_id").String())
	assert.True(t, gjson.GetBytes(last, "approve").Bool())

	assert.Empty(t, p.PendingApprovals())
	err = p.ResolveApproval(context.Background(), "apr_1", false)
	assert.ErrorIs(t, err, ErrNoPendingApproval)
}

func TestApprovalRequestBlocksContinuation(t *testing.T) {
	body := sse(
		event("response.output_item.added", `{"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_joke","arguments":""}}`),
		event("response.output_item.done", `{"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_joke","arguments":"{}"}}`),
		event("response.completed", `{"response":{"output":[{"type":"mcp_approval_request","id":"apr_1","name":"book_hotel"}]}}`),
	)
	tr := &scriptedTransport{bodies: []string{body}}
	exec := &recordingExecutor{result: map[string]string{"setup": "s", "punchline": "p"}}
	p := newTestProcessor(tr, exec)

	require.NoError(t, p.Send(context.Background(), "joke"))

	assert.Len(t, exec.calls, 1)
	assert.Len(t, tr.Requests(), 1)
}

func TestTransportErrorLeavesTranscript(t *testing.T) {
	tr := &scriptedTransport{err: errors.New("connection refused")}
	p := newTestProcessor(tr, nil)

	err := p.Send(context.Background(), "hi")
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Turn)
	assert.Contains(t, err.Error(), "connection refused")

	items := p.Items()
	require.Len(t, items, 1)
	assert.Equal(t, model.RoleUser, items[0].(*model.Message).Role)
	assert.Equal(t, err, p.LastError())
	assert.Equal(t, StateIdle, p.State())

	tr.err = nil
	tr.bodies = []string{sse(textDelta("msg_1", "ok"))}
	require.NoError(t, p.Send(context.Background(), "again"))
	assert.NoError(t, p.LastError())
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	body := textDelta("msg_1", "a") + "data: {not json}\n\n" + textDelta("msg_1", "b") + "data: [DONE]\n\n"
	tr := &scriptedTransport{bodies: []string{body}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "hi"))

	items := p.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "ab", items[1].(*model.Message).Text())
}

func TestTurnLimit(t *testing.T) {
	loop := sse(
		event("response.output_item.added", `{"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_joke"}}`),
		event("response.output_item.done", `{"output_index":0,"item":{"type":"function_call","id":"fc_1","call_id":"call_1","name":"get_joke","arguments":"{}"}}`),
	)
	tr := &scriptedTransport{bodies: []string{loop, loop, loop}}
	exec := &recordingExecutor{result: "ok"}
	p := newTestProcessor(tr, exec, func(o *Options) { o.MaxTurns = 2 })

	err := p.Send(context.Background(), "loop")
	require.ErrorIs(t, err, ErrTurnLimit)
	assert.Len(t, exec.calls, 2)
	assert.Len(t, tr.Requests(), 2)
	assert.ErrorIs(t, p.LastError(), ErrTurnLimit)
}

func TestCodeInterpreterCall(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(
		event("response.output_item.added", `{"output_index":0,"item":{"type":"code_interpreter_call","id":"ci_1","status":"in_progress"}}`),
		event("response.code_interpreter_call_code.delta", `{"item_id":"ci_1","delta":"print("}`),
		event("response.code_interpreter_call_code.delta", `{"item_id":"ci_1","delta":"1)"}`),
		event("response.code_interpreter_call_code.done", `{"item_id":"ci_1","code":"print(1)"}`),
		event("response.code_interpreter_call_code.delta", `{"item_id":"ci_1","delta":"ignored"}`),
		event("response.code_interpreter_call.completed", `{"item_id":"ci_1"}`),
		event("response.output_text.annotation.added",
			`{"item_id":"msg_1","delta":"see file","annotation":{"type":"container_file_citation","file_id":"cfile_1","container_id":"cntr_1","filename":"plot.png"}}`),
	)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "run"))

	items := p.Items()
	require.Len(t, items, 3)
	call := items[1].(*model.ToolCall)
	assert.Equal(t, "print(1)", call.Code)
	assert.Equal(t, model.StatusCompleted, call.Status)
	require.Len(t, call.Files, 1)
	assert.Equal(t, model.CodeFile{FileID: "cfile_1", ContainerID: "cntr_1", Filename: "plot.png"}, call.Files[0])

	ann := items[2].(*model.Message).Content[0].Annotations
	require.Len(t, ann, 1)
	assert.Equal(t, "cfile_1", ann[0].FileID)
}

func TestSearchCalls(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(
		event("response.output_item.added", `{"output_index":0,"item":{"type":"web_search_call","id":"ws_1","status":"searching"}}`),
		event("response.output_item.added", `{"output_index":1,"item":{"type":"file_search_call","id":"fs_1"}}`),
		event("response.web_search_call.completed", `{"item_id":"ws_1"}`),
		event("response.file_search_call.completed", `{"item_id":"fs_1","output":"3 results"}`),
	)}}
	p := newTestProcessor(tr, nil)

	require.NoError(t, p.Send(context.Background(), "search"))

	items := p.Items()
	require.Len(t, items, 3)
	web := items[1].(*model.ToolCall)
	assert.Equal(t, model.ToolWebSearchCall, web.ToolType)
	assert.Equal(t, model.StatusCompleted, web.Status)
	file := items[2].(*model.ToolCall)
	assert.Equal(t, "3 results", file.Output)
}

// blockingTransport holds the stream open until release is closed.
type blockingTransport struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingTransport) OpenTurn(context.Context, model.TurnRequest) (io.ReadCloser, error) {
	close(b.started)
	pr, pw := io.Pipe()
	go func() {
		<-b.release
		_, _ = io.WriteString(pw, sse(textDelta("msg_1", "done")))
		pw.Close()
	}()
	return pr, nil
}

func TestSendWhileRunning(t *testing.T) {
	tr := &blockingTransport{started: make(chan struct{}), release: make(chan struct{})}
	p := newTestProcessor(tr, nil)

	errc := make(chan error, 1)
	go func() { errc <- p.Send(context.Background(), "first") }()
	<-tr.started

	assert.ErrorIs(t, p.Send(context.Background(), "second"), ErrTurnInProgress)
	assert.ErrorIs(t, p.Reset(), ErrTurnInProgress)

	close(tr.release)
	require.NoError(t, <-errc)
	assert.Len(t, p.Items(), 2)
}

func TestCancelKeepsPartialFold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	tr := transportFunc(func(context.Context, model.TurnRequest) (io.ReadCloser, error) { return pr, nil })

	p := newTestProcessor(tr, nil, func(o *Options) {
		o.OnUpdate = func(s Snapshot) {
			if len(s.Items) == 2 {
				cancel()
			}
		}
	})

	go func() {
		_, _ = io.WriteString(pw, textDelta("msg_1", "partial"))
		_, _ = io.WriteString(pw, textDelta("msg_1", " more"))
		pw.Close()
	}()

	err := p.Send(ctx, "hi")
	require.ErrorIs(t, err, context.Canceled)
	items := p.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "partial", items[1].(*model.Message).Text())
}

type transportFunc func(context.Context, model.TurnRequest) (io.ReadCloser, error)

func (f transportFunc) OpenTurn(ctx context.Context, req model.TurnRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

func TestResetAndLoad(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(textDelta("msg_1", "hello"))}}
	p := newTestProcessor(tr, nil)
	require.NoError(t, p.Send(context.Background(), "hi"))

	saved := p.Items()
	require.NoError(t, p.Reset())
	assert.Empty(t, p.Items())
	assert.Empty(t, p.WireHistory())

	require.NoError(t, p.Load(saved))
	assert.Len(t, p.Items(), 2)
	wire := p.WireHistory()
	require.Len(t, wire, 2)
	assert.Equal(t, "user", gjson.GetBytes(wire[0], "role").String())
	assert.Equal(t, "assistant", gjson.GetBytes(wire[1], "role").String())
	assert.Equal(t, "hello", gjson.GetBytes(wire[1], "content").String())
}

func TestToolsAskedEachTurn(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{sse(), sse()}}
	n := 0
	p := newTestProcessor(tr, nil, func(o *Options) {
		o.Tools = ToolDeclarerFunc(func() ([]json.RawMessage, error) {
			n++
			return []json.RawMessage{json.RawMessage(fmt.Sprintf(`{"type":"function","name":"f%d"}`, n))}, nil
		})
	})

	require.NoError(t, p.Send(context.Background(), "a"))
	require.NoError(t, p.Send(context.Background(), "b"))

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "f1", gjson.GetBytes(reqs[0].Tools[0], "name").String())
	assert.Equal(t, "f2", gjson.GetBytes(reqs[1].Tools[0], "name").String())
}

func TestTextDeltasConcatenate(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("message text is the concatenation of its deltas", prop.ForAll(
		func(deltas []string) bool {
			var events []string
			for _, d := range deltas {
				events = append(events, textDelta("msg_1", d))
			}
			tr := &scriptedTransport{bodies: []string{sse(events...)}}
			p := newTestProcessor(tr, nil)
			if err := p.Send(context.Background(), "hi"); err != nil {
				return false
			}

			items := p.Items()
			if len(deltas) == 0 {
				return len(items) == 1
			}
			msg, ok := items[len(items)-1].(*model.Message)
			return ok && len(items) == 2 && msg.Text() == strings.Join(deltas, "")
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
