package provider

import (
	"fmt"

	"concierge/config"
	"concierge/model"
)

// NewTransport creates a transport based on configuration.
//
// Supported types:
//   - TransportHTTP: posts to Config.ServerURL
//   - TransportDirect: calls the OpenAI Responses API with Config.APIKey
//
// Returns an error if the type is unknown or the configuration is invalid.
func NewTransport(cfg Config) (model.Transport, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TransportHTTP:
		return NewHTTPTransport(cfg.ServerURL, nil), nil
	case TransportDirect:
		s, err := NewResponsesStreamer(cfg.BaseURL, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewDirectTransport(s), nil
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Type)
	}
}

// ConfigFrom maps application settings to a transport Config. A server_url
// of "direct" selects the in-process transport.
func ConfigFrom(cfg *config.Config) Config {
	c := Config{
		Type:      TransportHTTP,
		ServerURL: cfg.ServerURL,
		BaseURL:   cfg.OpenAI.BaseURL,
		APIKey:    cfg.OpenAI.APIKey,
		Model:     cfg.Model,
	}
	if cfg.ServerURL == DirectServerURL {
		c.Type = TransportDirect
		c.ServerURL = ""
	}
	return c
}
