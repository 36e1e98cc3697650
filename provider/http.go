package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"concierge/config"
	"concierge/model"
)

// StatusError is a non-2xx answer from the turn endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("turn endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("turn endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// HTTPTransport posts turns to a turn_response endpoint.
type HTTPTransport struct {
	url    string
	client *http.Client
}

// NewHTTPTransport creates a transport for url. A nil client uses a client
// without a timeout, since turn streams stay open for as long as the model
// is generating.
func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{url: url, client: client}
}

func (t *HTTPTransport) URL() string { return t.url }

func (t *HTTPTransport) OpenTurn(ctx context.Context, req model.TurnRequest) (io.ReadCloser, error) {
	if req.Messages == nil {
		req.Messages = []json.RawMessage{}
	}
	if req.Tools == nil {
		req.Tools = []json.RawMessage{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode turn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("turn request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Turn stream opened: %s", resp.Status)
	}
	return resp.Body, nil
}

// statusError reads the error message of a failed response. JSON bodies of
// the form {"error": "..."} or {"error": {"message": "..."}} are unwrapped.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))

	if gjson.Valid(msg) {
		errField := gjson.Get(msg, "error")
		switch {
		case errField.Type == gjson.String:
			msg = errField.String()
		case errField.Get("message").Exists():
			msg = errField.Get("message").String()
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
