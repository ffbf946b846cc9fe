// Package runtime wires the chat client together: the model provider, the
// remote tool connection, the orchestrator and the session bridge. Both the
// web and terminal front ends start one Chat.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/mcpclient"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
	"github.com/tjfontaine/mcp-chat/internal/provider"
	"github.com/tjfontaine/mcp-chat/internal/registration"
	"github.com/tjfontaine/mcp-chat/internal/session"
	"github.com/tjfontaine/mcp-chat/internal/tokens"
	"github.com/tjfontaine/mcp-chat/internal/tools"
	"github.com/tjfontaine/mcp-chat/internal/toolserver"
)

const (
	pruneInterval  = 10 * time.Minute
	sessionMaxIdle = time.Hour
)

// Chat owns every long-lived piece of the chat client.
type Chat struct {
	cfg    *config.Config
	logger *slog.Logger

	// Overrides, set through options.
	provider  domain.Provider
	transport mcp.Transport

	client   *mcpclient.Client
	invoker  *tools.Invoker
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
	bridge   *session.Bridge

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New validates cfg and applies opts. Nothing is dialed until Start.
func New(cfg *config.Config, opts ...Option) (*Chat, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	c := &Chat{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	return c, nil
}

// Start connects to the tool server, loads the tool descriptors and the
// initial prompt, and launches the worker pool.
func (c *Chat) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		registration.RegisterBuiltins()
		p, err := provider.New(c.cfg.Model)
		if err != nil {
			return fmt.Errorf("create provider: %w", err)
		}
		c.provider = p
	}

	clientOpts := []mcpclient.Option{
		mcpclient.WithConnectTimeout(c.cfg.Tools.ConnectTimeout),
		mcpclient.WithLogger(c.logger),
	}
	var err error
	if c.transport != nil {
		c.client, err = mcpclient.Connect(ctx, c.transport, clientOpts...)
	} else {
		c.client, err = mcpclient.Dial(ctx, c.cfg.Tools.Endpoint, clientOpts...)
	}
	if err != nil {
		return fmt.Errorf("connect to tool server %s: %w", c.cfg.Tools.Endpoint, err)
	}

	remote, err := c.client.Tools(ctx)
	if err != nil {
		c.client.Close()
		return fmt.Errorf("list tools: %w", err)
	}
	reg, err := tools.NewRegistry(remote...)
	if err != nil {
		c.client.Close()
		return fmt.Errorf("build tool registry: %w", err)
	}
	c.invoker = tools.NewInvoker(reg,
		tools.WithCallTimeout(c.cfg.Tools.CallTimeout),
		tools.WithLogger(c.logger),
	)

	preamble, err := c.client.InitialPrompt(ctx, toolserver.InitialPromptName)
	if err != nil {
		c.logger.Warn("initial prompt unavailable, continuing without it",
			slog.String("error", err.Error()))
		preamble = nil
	}

	c.orch = orchestrator.New(c.provider, c.invoker,
		orchestrator.WithModel(c.cfg.Model.Name),
		orchestrator.WithMaxTokens(c.cfg.Model.MaxTokens),
		orchestrator.WithMaxRounds(c.cfg.Orchestrator.MaxRounds),
		orchestrator.WithParallelTools(c.cfg.Orchestrator.ParallelTools),
		orchestrator.WithModelTimeout(c.cfg.Model.Timeout),
		orchestrator.WithTokenCounter(tokens.NewTiktoken()),
		orchestrator.WithLogger(c.logger),
	)

	c.sessions = session.NewManager(orchestrator.Env{
		Preamble: preamble,
		Tools:    reg.Descriptors(),
	}, c.logger)

	c.bridge = session.NewBridge(c.orch,
		session.WithWorkers(c.cfg.Session.Workers),
		session.WithReplyTimeout(c.cfg.Session.ReplyTimeout),
		session.WithBridgeLogger(c.logger),
	)
	c.bridge.Start()

	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.pruneSessions()

	c.logger.Info("chat started",
		slog.String("provider", c.provider.Name()),
		slog.String("model", c.cfg.Model.Name),
		slog.String("tools_endpoint", c.cfg.Tools.Endpoint),
		slog.Int("tools", reg.Len()),
		slog.Int("preamble_messages", len(preamble)),
	)
	return nil
}

// Shutdown stops the workers and closes the tool connection.
func (c *Chat) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("shutting down chat")
	if c.cancel != nil {
		c.cancel()
	}

	if c.bridge != nil {
		done := make(chan struct{})
		go func() {
			c.bridge.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.logger.Warn("workers still running at shutdown deadline")
		}
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Error("failed to close tool connection", slog.String("error", err.Error()))
			return err
		}
	}
	c.logger.Info("chat shutdown complete")
	return nil
}

// Bridge returns the session bridge. Only valid after Start.
func (c *Chat) Bridge() *session.Bridge {
	return c.bridge
}

// Sessions returns the session manager. Only valid after Start.
func (c *Chat) Sessions() *session.Manager {
	return c.sessions
}

// Tools returns the cached tool descriptors.
func (c *Chat) Tools() []domain.ToolDescriptor {
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Env().Tools
}

func (c *Chat) pruneSessions() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sessions.Prune(sessionMaxIdle)
		case <-c.ctx.Done():
			return
		}
	}
}
