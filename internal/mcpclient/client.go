// Package mcpclient connects to a tool server over MCP and adapts its tools
// and prompts to the chat domain.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/tools"
)

// DefaultConnectTimeout bounds the initial handshake.
const DefaultConnectTimeout = 10 * time.Second

// Client is one MCP session. It is safe for concurrent use; the SDK session
// multiplexes calls.
type Client struct {
	session *mcp.ClientSession
	logger  *slog.Logger
}

// Option configures a client.
type Option func(*options)

type options struct {
	connectTimeout time.Duration
	logger         *slog.Logger
}

// WithConnectTimeout overrides DefaultConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Dial connects to an SSE endpoint such as http://localhost:8080/sse.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	return Connect(ctx, &mcp.SSEClientTransport{Endpoint: endpoint}, opts...)
}

// Connect performs the MCP handshake over an arbitrary transport.
func Connect(ctx context.Context, transport mcp.Transport, opts ...Option) (*Client, error) {
	o := options{connectTimeout: DefaultConnectTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.connectTimeout)
		defer cancel()
	}

	cli := mcp.NewClient(&mcp.Implementation{Name: "mcp-chat", Version: "1.0.0"}, nil)
	session, err := cli.Connect(ctx, transport, nil)
	if err != nil {
		return nil, domain.NewTransportError("failed to connect to tool server").WithCause(err)
	}
	return &Client{session: session, logger: o.logger}, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

// ListTools returns the server's tool descriptors in the order it lists them.
func (c *Client) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	var out []domain.ToolDescriptor
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, domain.NewTransportError("failed to list tools").WithCause(err)
		}
		schema, err := schemaMap(tool.InputSchema)
		if err != nil {
			c.logger.Warn("skipping tool with unreadable schema",
				slog.String("tool", tool.Name), slog.String("error", err.Error()))
			continue
		}
		out = append(out, domain.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// CallTool invokes a remote tool and flattens its text content. A result
// flagged as an error comes back as a tool error carrying that text.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", domain.NewTransportError(fmt.Sprintf("call to %s failed", name)).WithCause(err)
	}

	text := contentText(res.Content)
	if res.IsError {
		if text == "" {
			text = fmt.Sprintf("tool %s failed", name)
		}
		return "", domain.NewToolError(text)
	}
	return text, nil
}

// InitialPrompt fetches a named prompt and converts it to conversation
// messages.
func (c *Client) InitialPrompt(ctx context.Context, name string) ([]domain.Message, error) {
	res, err := c.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: name})
	if err != nil {
		return nil, domain.NewTransportError(fmt.Sprintf("failed to get prompt %s", name)).WithCause(err)
	}

	msgs := make([]domain.Message, 0, len(res.Messages))
	for _, m := range res.Messages {
		text := contentText([]mcp.Content{m.Content})
		switch m.Role {
		case "assistant":
			msgs = append(msgs, domain.NewAssistantMessage(text))
		default:
			msgs = append(msgs, domain.NewUserMessage(text))
		}
	}
	return msgs, nil
}

// Tools lists the remote tools and wraps each one so the local invoker can
// dispatch to it.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	descs, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tools.Tool, len(descs))
	for i, d := range descs {
		name := d.Name
		out[i] = tools.Tool{
			Descriptor: d,
			Handler: tools.InvocableFunc(func(ctx context.Context, args map[string]any) (any, error) {
				return c.CallTool(ctx, name, args)
			}),
		}
	}
	return out, nil
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func schemaMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
