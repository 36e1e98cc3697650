package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ResponsesAPI is a fake OpenAI Responses endpoint serving POST /responses.
type ResponsesAPI struct {
	Server *httptest.Server

	mu       sync.Mutex
	events   []APIEvent
	status   int
	errBody  string
	requests []json.RawMessage
}

// NewResponsesAPI starts a fake that streams events for every request. The
// server is closed with the test.
func NewResponsesAPI(t *testing.T, events []APIEvent) *ResponsesAPI {
	t.Helper()

	api := &ResponsesAPI{events: events}
	api.Server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.Server.Close)
	return api
}

// URL is the base URL to hand to the OpenAI client.
func (a *ResponsesAPI) URL() string { return a.Server.URL }

// Fail makes subsequent requests answer with status and an OpenAI style
// error body.
func (a *ResponsesAPI) Fail(status int, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
	a.errBody = fmt.Sprintf(`{"error":{"message":%q,"type":"invalid_request_error"}}`, message)
}

// Requests returns the bodies received so far.
func (a *ResponsesAPI) Requests() []json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]json.RawMessage(nil), a.requests...)
}

func (a *ResponsesAPI) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/responses" {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)

	a.mu.Lock()
	a.requests = append(a.requests, body)
	status, errBody, events := a.status, a.errBody, a.events
	a.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, errBody)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.JSON())
		if flusher != nil {
			flusher.Flush()
		}
	}
}
