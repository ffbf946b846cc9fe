package runtime

import (
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/mcp-chat/internal/domain"
)

// Option is a functional option for configuring a Chat.
type Option func(*Chat) error

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chat) error {
		if logger == nil {
			return fmt.Errorf("logger is nil")
		}
		c.logger = logger
		return nil
	}
}

// WithProvider uses p instead of building one from the model config.
func WithProvider(p domain.Provider) Option {
	return func(c *Chat) error {
		if p == nil {
			return fmt.Errorf("provider is nil")
		}
		c.provider = p
		return nil
	}
}

// WithToolTransport connects over t instead of dialing tools.endpoint.
// Tests use it with in-memory transports.
func WithToolTransport(t mcp.Transport) Option {
	return func(c *Chat) error {
		c.transport = t
		return nil
	}
}
