package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"concierge/config"
)

var ErrMissingAPIKey = errors.New("OpenAI API key is required for the direct transport")

// Validate checks a transport Config without contacting anything.
func Validate(cfg Config) error {
	switch cfg.Type {
	case TransportHTTP:
		u, err := url.Parse(cfg.ServerURL)
		if err != nil {
			return fmt.Errorf("invalid server URL %q: %w", cfg.ServerURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid server URL %q: scheme must be http or https", cfg.ServerURL)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid server URL %q: missing host", cfg.ServerURL)
		}
	case TransportDirect:
		if cfg.APIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return fmt.Errorf("unknown transport type: %s", cfg.Type)
	}
	return nil
}

// PingServerMsg is sent when the server reachability check completes.
type PingServerMsg struct {
	URL string
	Err error
}

// Ping reports whether anything answers at serverURL. Any HTTP status counts
// as reachable; the endpoint only accepts POST.
func Ping(ctx context.Context, client *http.Client, serverURL string) error {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

// PingServer checks the configured turn endpoint in the background.
func PingServer(cfg Config) tea.Cmd {
	return func() tea.Msg {
		if cfg.Type != TransportHTTP {
			return PingServerMsg{}
		}

		err := Ping(context.Background(), nil, cfg.ServerURL)
		if config.DebugLog != nil {
			if err != nil {
				config.DebugLog.Printf("[Provider] Ping %s failed: %v", cfg.ServerURL, err)
			} else {
				config.DebugLog.Printf("[Provider] Ping %s successful", cfg.ServerURL)
			}
		}
		return PingServerMsg{URL: cfg.ServerURL, Err: err}
	}
}
