package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"concierge/config"
	"concierge/model"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = config.DefaultModel
)

// ResponsesStreamer runs a turn against the OpenAI Responses API.
type ResponsesStreamer struct {
	client openai.Client
	model  string
}

// NewResponsesStreamer creates a streamer. The API key is required; baseURL
// and model fall back to the public endpoint and the default model.
func NewResponsesStreamer(baseURL, apiKey, model string, opts ...option.RequestOption) (*ResponsesStreamer, error) {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}

	clientOpts := append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)

	return &ResponsesStreamer{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

func (s *ResponsesStreamer) Model() string { return s.model }

// Stream issues the request and writes every event to fw, followed by the
// [DONE] sentinel. Messages and tools are sent as given.
func (s *ResponsesStreamer) Stream(ctx context.Context, req model.TurnRequest, fw *FrameWriter) error {
	params := responses.ResponseNewParams{
		Model:             s.model,
		ParallelToolCalls: openai.Bool(false),
	}

	messages := req.Messages
	if messages == nil {
		messages = []json.RawMessage{}
	}
	opts := []option.RequestOption{option.WithJSONSet("input", messages)}
	if len(req.Tools) > 0 {
		opts = append(opts, option.WithJSONSet("tools", req.Tools))
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Responses request: model=%s messages=%d tools=%d", s.model, len(messages), len(req.Tools))
	}

	stream := s.client.Responses.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	events := 0
	for stream.Next() {
		ev := stream.Current()
		if err := fw.WriteEvent(ev.Type, json.RawMessage(ev.RawJSON())); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		events++
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("OpenAI streaming error: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] Responses stream finished after %d events", events)
	}
	return fw.WriteDone()
}
