// Package provider opens model turns.
//
// A turn is one streaming request carrying the wire history and the tool
// declarations. Every transport yields the same byte stream: SSE frames of
// the form
//
//	data: {"event": "<type>", "data": {...}}
//
// ending with a data: [DONE] frame, which is what the turn processor reads.
//
// # Transports
//
//   - HTTPTransport posts the turn to a turn_response endpoint (the serve
//     command, or any compatible backend) and returns its stream as is.
//   - DirectTransport calls the OpenAI Responses API in process through
//     ResponsesStreamer and re-frames each event.
//
// # Usage
//
//	tr, err := provider.NewTransport(provider.ConfigFrom(cfg))
//	if err != nil {
//	    // handle error
//	}
//	body, err := tr.OpenTurn(ctx, req)
package provider

// Note: the Transport interface is defined in the model package
// (model/provider.go) to avoid import cycles. This package implements it.

// TransportType identifies the transport implementation.
type TransportType string

const (
	TransportHTTP   TransportType = "http"
	TransportDirect TransportType = "direct"
)

// DirectServerURL selects the in-process transport when used as server_url.
const DirectServerURL = "direct"

// Config holds transport configuration.
type Config struct {
	Type      TransportType
	ServerURL string // turn_response endpoint, HTTP only
	BaseURL   string // OpenAI base URL, direct only
	APIKey    string // direct only
	Model     string // direct only
}
