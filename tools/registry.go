// Package tools executes local function calls and builds the tool
// declarations sent with every turn.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"

	"concierge/config"
)

var ErrDuplicateFunction = errors.New("function already registered")

// Handler runs a local function. A returned error is reported to the model
// as the call's output.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Property is one parameter of a strict function declaration.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Function is a locally executed tool. Functions with Parameters are declared
// strict with every parameter required; functions with a Schema (MCP plugin
// tools) are declared with that schema as is.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]Property
	Schema      map[string]any
	Handler     Handler
}

func (p Property) schema() map[string]any {
	m := map[string]any{"type": p.Type}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		m["enum"] = p.Enum
	}
	return m
}

// ErrorResult is the output of a failed local call.
type ErrorResult struct {
	Error      string `json:"error"`
	Suggestion string `json:"did_you_mean,omitempty"`
}

type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]Function)}
}

func (r *Registry) Register(fn Function) error {
	if fn.Name == "" || fn.Handler == nil {
		return fmt.Errorf("function needs a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.functions[fn.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, fn.Name)
	}
	r.functions[fn.Name] = fn
	r.order = append(r.order, fn.Name)
	return nil
}

// Functions returns the registered functions in registration order.
func (r *Registry) Functions() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Function, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.functions[name])
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Execute runs the named function. It never fails: unknown names, handler
// errors and panics all produce an ErrorResult.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result any) {
	r.mu.RLock()
	fn, ok := r.functions[name]
	names := r.order
	r.mu.RUnlock()

	if !ok {
		res := ErrorResult{Error: fmt.Sprintf("unknown function %q", name)}
		if matches := fuzzy.Find(name, names); len(matches) > 0 {
			res.Suggestion = matches[0].Str
		}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Tools] Unknown function %q (suggestion %q)", name, res.Suggestion)
		}
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tools] Function %s panicked: %v", name, p)
			}
			result = ErrorResult{Error: fmt.Sprintf("%s failed: %v", name, p)}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	out, err := fn.Handler(ctx, args)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Tools] Function %s failed: %v", name, err)
		}
		return ErrorResult{Error: err.Error()}
	}
	return out
}

// strictSchema is the declaration schema of a function with Parameters.
func strictSchema(params map[string]Property) map[string]any {
	names := make([]string, 0, len(params))
	properties := make(map[string]any, len(params))
	for name, p := range params {
		names = append(names, name)
		properties[name] = p.schema()
	}
	sort.Strings(names)

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             names,
		"additionalProperties": false,
	}
}
