// Package anthropic implements the model gateway on the Anthropic Messages
// API using the official SDK.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/provider"
	"github.com/tjfontaine/mcp-chat/internal/provider/registry"
)

// ProviderType is the model.provider value that selects this provider.
const ProviderType = "anthropic"

const defaultMaxTokens = 1024

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
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

// Provider implements domain.Provider with anthropic-sdk-go.
type Provider struct {
	client     anthropic.Client
	baseURL    string
	httpClient *http.Client
}

// New creates an Anthropic provider with SDK retries disabled.
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
	p.client = anthropic.NewClient(reqOpts...)
	return p
}

func (p *Provider) Name() string {
	return ProviderType
}

func (p *Provider) Generate(ctx context.Context, req *domain.ModelRequest) (*domain.ModelTurn, error) {
	system, rest := req.SystemAndRest()

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(rest),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var texts []string
	var requests []domain.ToolCallRequest
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args := map[string]any{}
			if len(tu.Input) > 0 {
				if err := json.Unmarshal(tu.Input, &args); err != nil {
					return nil, domain.NewProtocolError("tool_use input is not a JSON object").WithCause(err)
				}
			}
			requests = append(requests, domain.ToolCallRequest{
				ID:        provider.CallID(tu.ID),
				ToolName:  tu.Name,
				Arguments: args,
			})
		}
	}
	return provider.Turn(strings.TrimSpace(strings.Join(texts, "\n")), requests), nil
}

func toAnthropicTools(tools []domain.ToolDescriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		var required []string
		switch req := t.InputSchema["required"].(type) {
		case []string:
			required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// emptyToolOutput stands in for a tool result with no text.
const emptyToolOutput = "(no output)"

// toAnthropicMessages maps the conversation onto user and assistant turns.
// The results of one round travel together in a single user message.
func toAnthropicMessages(msgs []domain.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	var results []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case domain.RoleTool:
			content := m.Content
			if content == "" {
				// The Messages API rejects empty text blocks.
				content = emptyToolOutput
			}
			results = append(results, anthropic.NewToolResultBlock(m.ToolCallID, content, m.Status == domain.StatusError))
		case domain.RoleUser, domain.RoleSystem:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case domain.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.ToolName,
						Input: json.RawMessage(tc.ArgumentsJSON()),
					},
				})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return out
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return provider.StatusError(apiErr.StatusCode, http.StatusText(apiErr.StatusCode), err)
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

// ValidateConfig requires an API key and a model name.
func ValidateConfig(cfg config.ModelConfig) error {
	if cfg.APIKey == "" {
		return errors.New("model.api_key is required for anthropic")
	}
	if cfg.Name == "" {
		return errors.New("model.name is required")
	}
	return nil
}

// RegisterProviderFactory registers the Anthropic provider with the registry.
func RegisterProviderFactory() {
	if registry.IsRegistered(ProviderType) {
		return
	}
	registry.RegisterFactory(registry.ProviderFactory{
		Type:           ProviderType,
		Description:    "Anthropic Messages API",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}
