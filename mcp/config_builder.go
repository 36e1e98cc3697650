package mcp

import (
	"fmt"
	"strings"

	"concierge/config"
)

// ParsePluginSpec parses a plugin given on the command line:
//
//	id=command arg 'arg with spaces'
//	id=https://host/sse
//	id=streamable-http+https://host/mcp
func ParsePluginSpec(spec string) (config.PluginConfig, error) {
	id, rest, ok := strings.Cut(spec, "=")
	id = strings.TrimSpace(id)
	rest = strings.TrimSpace(rest)
	if !ok || id == "" || rest == "" {
		return config.PluginConfig{}, fmt.Errorf("plugin %q: expected id=command or id=url", spec)
	}
	if err := ValidatePluginID(id); err != nil {
		return config.PluginConfig{}, err
	}

	if kind, url, found := strings.Cut(rest, "+"); found && (kind == TransportSSE || kind == TransportStreamableHTTP) {
		return config.PluginConfig{ID: id, ServerURL: url, Transport: kind}, nil
	}
	if strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://") {
		return config.PluginConfig{ID: id, ServerURL: rest, Transport: TransportSSE}, nil
	}

	tokens, err := tokenizeArgs(rest)
	if err != nil {
		return config.PluginConfig{}, fmt.Errorf("plugin %s: %w", id, err)
	}
	return config.PluginConfig{
		ID:        id,
		Command:   tokens[0],
		Args:      tokens[1:],
		Transport: TransportStdio,
	}, nil
}

// ParseEnv turns KEY=VALUE pairs into a map. Pairs without '=' are ignored.
func ParseEnv(pairs []string) map[string]string {
	env := make(map[string]string)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if key = strings.TrimSpace(key); ok && key != "" {
			env[key] = value
		}
	}
	return env
}

// tokenizeArgs splits on spaces; single-quoted runs are kept as one token.
func tokenizeArgs(s string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuote := false
	hasToken := false

	for i := 0; i < len(s); i++ {
		char := s[i]
		switch {
		case char == '\'':
			inQuote = !inQuote
			hasToken = true
		case char == ' ' && !inQuote:
			if hasToken {
				tokens = append(tokens, current.String())
				current.Reset()
				hasToken = false
			}
		default:
			current.WriteByte(char)
			hasToken = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if hasToken {
		tokens = append(tokens, current.String())
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return tokens, nil
}
