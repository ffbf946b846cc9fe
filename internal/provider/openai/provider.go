// Package openai implements the model gateway on any OpenAI-compatible chat
// completions endpoint using the official SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/provider"
	"github.com/tjfontaine/mcp-chat/internal/provider/registry"
)

// ProviderType is the model.provider value that selects this provider.
const ProviderType = "openai"

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL points the client at an OpenAI-compatible server.
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

// Provider implements domain.Provider with openai-go.
type Provider struct {
	client     openai.Client
	baseURL    string
	httpClient *http.Client
}

// New creates an OpenAI provider. Retries are disabled; the loop decides
// what a failed call means.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(p.httpClient))
	}
	p.client = openai.NewClient(reqOpts...)
	return p
}

func (p *Provider) Name() string {
	return ProviderType
}

func (p *Provider) Generate(ctx context.Context, req *domain.ModelRequest) (*domain.ModelTurn, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewProtocolError("response has no choices")
	}

	msg := resp.Choices[0].Message
	var requests []domain.ToolCallRequest
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, domain.NewProtocolError("tool call arguments are not a JSON object").WithCause(err)
			}
		}
		requests = append(requests, domain.ToolCallRequest{
			ID:        provider.CallID(tc.ID),
			ToolName:  tc.Function.Name,
			Arguments: args,
		})
	}
	return provider.Turn(provider.StripReasoning(msg.Content), requests), nil
}

func toOpenAITools(tools []domain.ToolDescriptor) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.InputSchema),
			},
		}
	}
	return out
}

func toOpenAIMessages(msgs []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case domain.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case domain.RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				asst.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.ToolName,
						Arguments: tc.ArgumentsJSON(),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}
	return out
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return provider.StatusError(apiErr.StatusCode, msg, err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return provider.DecodeError(err)
	}
	return provider.RequestError(err)
}

// CreateFromConfig creates a provider from the model configuration.
func CreateFromConfig(cfg config.ModelConfig) (domain.Provider, error) {
	var opts []ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(cfg.APIKey, opts...), nil
}

// ValidateConfig requires a model name; the API key is optional because
// local OpenAI-compatible servers often do not check one.
func ValidateConfig(cfg config.ModelConfig) error {
	if cfg.Name == "" {
		return errors.New("model.name is required")
	}
	return nil
}

// RegisterProviderFactory registers the OpenAI provider with the registry.
func RegisterProviderFactory() {
	if registry.IsRegistered(ProviderType) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "OpenAI-compatible chat completions",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}
