package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/mcp-chat/internal/domain"
)

const defaultCallTimeout = 30 * time.Second

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithCallTimeout bounds each tool call. Zero disables the bound.
func WithCallTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		i.timeout = d
	}
}

// WithLogger sets the logger used for per-call records.
func WithLogger(logger *slog.Logger) InvokerOption {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// Invoker executes tool calls against a Registry. Invoke never returns an
// error and never panics: unknown tools, bad arguments, failures, panics,
// timeouts and unencodable results all come back as status=error.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewInvoker creates an invoker over reg.
func NewInvoker(reg *Registry, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		registry: reg,
		timeout:  defaultCallTimeout,
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/tjfontaine/mcp-chat/internal/tools"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Registry returns the registry the invoker dispatches to.
func (i *Invoker) Registry() *Registry {
	return i.registry
}

// Invoke runs one tool call.
func (i *Invoker) Invoke(ctx context.Context, req domain.ToolCallRequest) domain.ToolResult {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(
		attribute.String("tool.name", req.ToolName),
		attribute.String("tool.call_id", req.ID),
	))
	defer span.End()

	payload, err := i.run(ctx, req)

	res := domain.ToolResult{
		RequestID: req.ID,
		ToolName:  req.ToolName,
		Status:    domain.StatusOK,
		Payload:   payload,
	}
	if err != nil {
		res.Status = domain.StatusError
		res.Payload = nil
		res.Error = errorText(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Error)
	}
	span.SetAttributes(attribute.String("tool.status", string(res.Status)))

	i.logger.Info("tool call",
		slog.String("tool", req.ToolName),
		slog.String("call_id", req.ID),
		slog.String("status", string(res.Status)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res
}

func (i *Invoker) run(ctx context.Context, req domain.ToolCallRequest) (any, error) {
	tool, ok := i.registry.Lookup(req.ToolName)
	if !ok {
		return nil, domain.NewToolError(fmt.Sprintf("unknown tool %q", req.ToolName))
	}

	args := CoerceArgs(req.Arguments, tool.Descriptor.InputSchema)
	if err := i.registry.Validate(req.ToolName, args); err != nil {
		return nil, domain.NewToolError(fmt.Sprintf("invalid arguments for %s: %v", req.ToolName, err))
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: domain.NewToolError(fmt.Sprintf("tool %s panicked: %v", req.ToolName, r))}
			}
		}()
		v, err := tool.Handler.Invoke(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewToolError(fmt.Sprintf("tool %s timed out after %s", req.ToolName, i.timeout))
		}
		return nil, domain.NewToolError(fmt.Sprintf("tool %s cancelled", req.ToolName))
	}

	if out.err != nil {
		if de, ok := domain.AsError(out.err); ok && de.Type == domain.ErrorTypeTool {
			return nil, de
		}
		return nil, domain.NewToolError(errorText(out.err))
	}
	return normalize(out.value)
}

// normalize coerces a tool's return value into plain JSON-compatible data.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(val, &out); err != nil {
			return nil, malformed(err)
		}
		return out, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, malformed(err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

func malformed(err error) *domain.Error {
	return domain.NewToolError("malformed tool result: " + err.Error())
}

// errorText drops the type prefix so the model sees only the message and cause.
func errorText(err error) string {
	de, ok := domain.AsError(err)
	if !ok {
		return err.Error()
	}
	if de.Err != nil && !strings.Contains(de.Message, de.Err.Error()) {
		return de.Message + ": " + de.Err.Error()
	}
	return de.Message
}
