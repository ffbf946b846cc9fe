// Package orchestrator drives one user prompt to a final answer by
// alternating model calls and tool rounds.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/tokens"
)

const (
	// DefaultMaxRounds bounds the tool rounds of one Run.
	DefaultMaxRounds = 8

	defaultModelTimeout = 30 * time.Second

	// NoResponseText replaces an empty final answer.
	NoResponseText = "No response from LLM."

	// UnableText is the truncated answer when nothing useful was produced.
	UnableText = "Unable to complete the request."
)

// Status is how a Run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusTruncated Status = "truncated"
	StatusFailed    Status = "failed"
)

// Env is the per-session context a Run needs besides the conversation.
type Env struct {
	// Preamble is sent ahead of the conversation on every model call but is
	// never stored in it.
	Preamble []domain.Message
	Tools    []domain.ToolDescriptor
}

// Result is the outcome of one Run.
type Result struct {
	Text      string
	Status    Status
	Rounds    int
	ToolCalls int
	// Err is set for failed and truncated runs.
	Err error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModel sets the model name sent with each request.
func WithModel(name string) Option {
	return func(o *Orchestrator) { o.model = name }
}

// WithMaxTokens caps the length of each model reply.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// WithMaxRounds overrides DefaultMaxRounds. Values below 1 are ignored.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxRounds = n
		}
	}
}

// WithParallelTools runs the calls of one round concurrently.
func WithParallelTools(enabled bool) Option {
	return func(o *Orchestrator) { o.parallel = enabled }
}

// WithModelTimeout bounds each model call.
func WithModelTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.modelTimeout = d }
}

// WithTokenCounter sets the counter used for prompt-size logging.
func WithTokenCounter(c tokens.Counter) Option {
	return func(o *Orchestrator) { o.counter = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator is stateless between runs and safe for concurrent use on
// distinct conversations.
type Orchestrator struct {
	provider domain.Provider
	invoker  domain.ToolInvoker

	model        string
	maxTokens    int
	maxRounds    int
	parallel     bool
	modelTimeout time.Duration

	counter tokens.Counter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates an orchestrator.
func New(provider domain.Provider, invoker domain.ToolInvoker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:     provider,
		invoker:      invoker,
		maxRounds:    DefaultMaxRounds,
		modelTimeout: defaultModelTimeout,
		counter:      tokens.NewEstimator(),
		logger:       slog.Default(),
		tracer:       otel.Tracer("github.com/tjfontaine/mcp-chat/internal/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// MaxRounds returns the configured round bound.
func (o *Orchestrator) MaxRounds() int {
	return o.maxRounds
}

// Run appends prompt to conv and loops until the model gives a final
// answer, the round bound is hit, or a model call fails. Only whole rounds
// are ever committed to conv.
func (o *Orchestrator) Run(ctx context.Context, conv *domain.Conversation, env Env, prompt string) *Result {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("model.provider", o.provider.Name()),
		attribute.String("model.name", o.model),
		attribute.Int("orchestrator.max_rounds", o.maxRounds),
	))
	defer span.End()

	conv.AppendUser(prompt)

	res := o.loop(ctx, conv, env)

	span.SetAttributes(
		attribute.String("orchestrator.status", string(res.Status)),
		attribute.Int("orchestrator.rounds", res.Rounds),
		attribute.Int("orchestrator.tool_calls", res.ToolCalls),
	)
	if res.Status == StatusFailed {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	attrs := []any{
		slog.String("status", string(res.Status)),
		slog.Int("rounds", res.Rounds),
		slog.Int("tool_calls", res.ToolCalls),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}
	o.logger.Info("chat turn finished", attrs...)
	return res
}

func (o *Orchestrator) loop(ctx context.Context, conv *domain.Conversation, env Env) *Result {
	res := &Result{}
	var lastText, lastPayload string

	for {
		turn, err := o.generate(ctx, conv, env, res.Rounds+1)
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			res.Text = domain.UserMessage(err)
			return res
		}

		if turn.Kind == domain.TurnFinal {
			text := strings.TrimSpace(turn.Text)
			if text == "" {
				text = NoResponseText
			}
			conv.AppendAssistant(text)
			res.Status = StatusCompleted
			res.Text = text
			return res
		}

		if t := strings.TrimSpace(turn.Text); t != "" {
			lastText = t
		}

		if res.Rounds >= o.maxRounds {
			text := lastText
			if text == "" {
				text = lastPayload
			}
			if text == "" {
				text = UnableText
			}
			text = fmt.Sprintf("%s\n\n(Stopped after %d tool rounds without a final answer.)", text, res.Rounds)
			conv.AppendAssistant(text)
			res.Status = StatusTruncated
			res.Err = domain.NewRoundLimitError(res.Rounds)
			res.Text = text
			return res
		}

		requests := assignIDs(turn.Requests)
		results := o.invokeRound(ctx, res.Rounds+1, requests)
		if err := conv.AppendRound(domain.NewToolCallMessage(turn.Text, requests), results); err != nil {
			// assignIDs makes this unreachable for well-formed rounds.
			perr := domain.NewProtocolError("could not record tool round").WithCause(err)
			res.Status = StatusFailed
			res.Err = perr
			res.Text = domain.UserMessage(perr)
			return res
		}

		res.Rounds++
		res.ToolCalls += len(requests)
		for _, r := range results {
			if r.Status == domain.StatusOK {
				if text := strings.TrimSpace(r.Text()); text != "" {
					lastPayload = text
				}
			}
		}
	}
}

func (o *Orchestrator) generate(ctx context.Context, conv *domain.Conversation, env Env, round int) (*domain.ModelTurn, error) {
	msgs := make([]domain.Message, 0, len(env.Preamble)+conv.Len())
	msgs = append(msgs, env.Preamble...)
	msgs = append(msgs, conv.Messages()...)

	req := &domain.ModelRequest{
		Model:     o.model,
		Messages:  msgs,
		Tools:     env.Tools,
		MaxTokens: o.maxTokens,
	}

	o.logger.Info("model request",
		slog.Int("round", round),
		slog.Int("messages", len(msgs)),
		slog.Int("tools", len(env.Tools)),
		slog.Int("est_prompt_tokens", o.counter.Count(req)),
	)

	ctx, span := o.tracer.Start(ctx, "model.generate", trace.WithAttributes(
		attribute.Int("orchestrator.round", round),
		attribute.Int("model.messages", len(msgs)),
	))
	defer span.End()

	if o.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.modelTimeout)
		defer cancel()
	}

	turn, err := o.provider.Generate(ctx, req)
	if err == nil && turn == nil {
		err = domain.NewProtocolError("empty model turn")
	}
	if err == nil && turn.Kind == domain.TurnToolCalls && len(turn.Requests) == 0 {
		turn = &domain.ModelTurn{Kind: domain.TurnFinal, Text: turn.Text}
	}
	if err != nil {
		if _, ok := domain.AsError(err); !ok {
			err = domain.NewBackendUnavailableError(err.Error()).WithCause(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("model.turn", string(turn.Kind)),
		attribute.Int("model.tool_calls", len(turn.Requests)),
	)
	return turn, nil
}

// invokeRound runs the requests of one round and returns their results in
// request order.
func (o *Orchestrator) invokeRound(ctx context.Context, round int, requests []domain.ToolCallRequest) []domain.ToolResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.round", trace.WithAttributes(
		attribute.Int("orchestrator.round", round),
		attribute.Int("orchestrator.requests", len(requests)),
		attribute.Bool("orchestrator.parallel", o.parallel),
	))
	defer span.End()

	results := make([]domain.ToolResult, len(requests))
	if !o.parallel || len(requests) < 2 {
		for i, req := range requests {
			results[i] = o.invoker.Invoke(ctx, req)
		}
		return results
	}

	var g errgroup.Group
	for i, req := range requests {
		g.Go(func() error {
			results[i] = o.invoker.Invoke(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// assignIDs gives every request a unique non-empty id.
func assignIDs(reqs []domain.ToolCallRequest) []domain.ToolCallRequest {
	out := make([]domain.ToolCallRequest, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for i, r := range reqs {
		if r.ID == "" || seen[r.ID] {
			r.ID = "call_" + uuid.NewString()
		}
		if r.Arguments == nil {
			r.Arguments = map[string]any{}
		}
		seen[r.ID] = true
		out[i] = r
	}
	return out
}
