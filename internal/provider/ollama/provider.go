// Package ollama implements the model gateway on the Ollama native chat API.
package ollama

import (
	"context"
	"errors"
	"net/http"

	ollamaapi "github.com/tjfontaine/mcp-chat/internal/api/ollama"
	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/provider"
	"github.com/tjfontaine/mcp-chat/internal/provider/registry"
)

// ProviderType is the model.provider value that selects this provider.
const ProviderType = "ollama"

// DefaultModel is used when no model name is configured.
const DefaultModel = "qwen3:1.7b"

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets the Ollama server URL.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithModel sets the default model.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// Provider implements domain.Provider over /api/chat.
type Provider struct {
	client     *ollamaapi.Client
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates an Ollama provider.
func New(opts ...ProviderOption) *Provider {
	p := &Provider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []ollamaapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, ollamaapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, ollamaapi.WithHTTPClient(p.httpClient))
	}
	p.client = ollamaapi.NewClient(clientOpts...)
	return p
}

func (p *Provider) Name() string {
	return ProviderType
}

// Generate sends one chat request. Ollama does not issue call ids, so every
// requested call gets a fresh one.
func (p *Provider) Generate(ctx context.Context, req *domain.ModelRequest) (*domain.ModelTurn, error) {
	apiReq := toAPIRequest(req, p.model)

	resp, err := p.client.Chat(ctx, apiReq)
	if err != nil {
		return nil, classify(err)
	}

	text := provider.StripReasoning(resp.Message.Content)
	var requests []domain.ToolCallRequest
	for _, tc := range resp.Message.ToolCalls {
		if tc.Function.Name == "" {
			return nil, domain.NewProtocolError("tool call without a function name")
		}
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		requests = append(requests, domain.ToolCallRequest{
			ID:        provider.CallID(""),
			ToolName:  tc.Function.Name,
			Arguments: args,
		})
	}
	return provider.Turn(text, requests), nil
}

func toAPIRequest(req *domain.ModelRequest, defaultModel string) *ollamaapi.ChatRequest {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	out := &ollamaapi.ChatRequest{Model: model}
	if req.MaxTokens > 0 {
		out.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	for _, m := range req.Messages {
		msg := ollamaapi.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ollamaapi.ToolCall{
				Function: ollamaapi.ToolCallFunction{Name: tc.ToolName, Arguments: tc.Arguments},
			})
		}
		if m.Role == domain.RoleTool {
			msg.ToolName = m.ToolName
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, ollamaapi.Tool{
			Type: "function",
			Function: ollamaapi.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

func classify(err error) error {
	var apiErr *ollamaapi.APIError
	if errors.As(err, &apiErr) {
		return provider.StatusError(apiErr.StatusCode, apiErr.Message, err)
	}
	var decodeErr *ollamaapi.DecodeError
	if errors.As(err, &decodeErr) {
		return provider.DecodeError(err)
	}
	return provider.RequestError(err)
}

// CreateFromConfig creates a provider from the model configuration.
func CreateFromConfig(cfg config.ModelConfig) (domain.Provider, error) {
	opts := []ProviderOption{WithModel(cfg.Name)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(opts...), nil
}

// RegisterProviderFactory registers the Ollama provider with the registry.
func RegisterProviderFactory() {
	if registry.IsRegistered(ProviderType) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:        ProviderType,
		Description: "Ollama native chat API",
		Create:      CreateFromConfig,
	})
}
