// Package tools holds the tool registry and the invoker that executes tool
// calls and folds every outcome into a domain.ToolResult.
package tools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/tjfontaine/mcp-chat/internal/domain"
)

// Invocable is anything that can execute a tool call.
type Invocable interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// InvocableFunc adapts a function to Invocable.
type InvocableFunc func(ctx context.Context, args map[string]any) (any, error)

// Invoke calls f.
func (f InvocableFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Tool pairs a descriptor with its implementation.
type Tool struct {
	Descriptor domain.ToolDescriptor
	Handler    Invocable
}

// Registry maps tool names to tools. It is built once and never mutated,
// so it may be shared between goroutines without locking.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*jsonschema.Resolved
	order   []string
}

// NewRegistry builds a registry, rejecting empty or duplicate names and
// input schemas that do not resolve.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		schemas: make(map[string]*jsonschema.Resolved, len(tools)),
	}
	for _, t := range tools {
		name := t.Descriptor.Name
		if name == "" {
			return nil, fmt.Errorf("tool name is empty")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %s has no handler", name)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool %s already registered", name)
		}
		schema, err := CompileSchema(t.Descriptor.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		r.tools[name] = t
		r.schemas[name] = schema
		r.order = append(r.order, name)
	}
	return r, nil
}

// MustRegistry is NewRegistry for statically known tool sets.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Validate checks args against the input schema of the named tool.
func (r *Registry) Validate(name string, args map[string]any) error {
	return ValidateArgs(args, r.schemas[name])
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors returns descriptors in registration order.
func (r *Registry) Descriptors() []domain.ToolDescriptor {
	out := make([]domain.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor)
	}
	return out
}
