package domain

import (
	"context"
)

// Provider is a model gateway: it turns a conversation plus tool descriptors
// into the next model turn.
type Provider interface {
	Name() string

	// Generate performs one stateless request/response exchange with the backend.
	// Failures are returned as *Error of type backend_unavailable or protocol_error.
	Generate(ctx context.Context, req *ModelRequest) (*ModelTurn, error)
}

// ToolInvoker executes a tool-call request and never fails; failures are
// reported in the returned envelope.
type ToolInvoker interface {
	Invoke(ctx context.Context, req ToolCallRequest) ToolResult
}
