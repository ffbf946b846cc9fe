package runtime

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
	"github.com/tjfontaine/mcp-chat/internal/tools"
	"github.com/tjfontaine/mcp-chat/internal/tools/mathexpr"
	"github.com/tjfontaine/mcp-chat/internal/toolserver"
)

// sqrtProvider asks for sqrt(81) once, then answers with the tool result.
type sqrtProvider struct {
	mu       sync.Mutex
	requests []*domain.ModelRequest
}

func (p *sqrtProvider) Name() string { return "scripted" }

func (p *sqrtProvider) Generate(ctx context.Context, req *domain.ModelRequest) (*domain.ModelTurn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	last := req.Messages[len(req.Messages)-1]
	if last.Role == domain.RoleTool {
		return &domain.ModelTurn{Kind: domain.TurnFinal, Text: "The square root of 81 is " + last.Content + "."}, nil
	}
	return &domain.ModelTurn{
		Kind: domain.TurnToolCalls,
		Requests: []domain.ToolCallRequest{{
			ID:        "call_1",
			ToolName:  mathexpr.ToolName,
			Arguments: map[string]any{"expression": "sqrt(81)"},
		}},
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func startChat(t *testing.T, p domain.Provider) *Chat {
	t.Helper()
	ctx := context.Background()

	srv := toolserver.New(tools.NewInvoker(tools.MustRegistry(mathexpr.Tool())), quietLogger())
	st, ct := mcp.NewInMemoryTransports()
	ss, err := srv.MCP().Connect(ctx, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ss.Close() })

	chat, err := New(testConfig(t), WithLogger(quietLogger()), WithProvider(p), WithToolTransport(ct))
	if err != nil {
		t.Fatal(err)
	}
	if err := chat.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		chat.Shutdown(ctx)
	})
	return chat
}

func TestChat_EndToEnd(t *testing.T) {
	p := &sqrtProvider{}
	chat := startChat(t, p)

	if got := chat.Tools(); len(got) != 1 || got[0].Name != mathexpr.ToolName {
		t.Fatalf("tools = %+v", got)
	}

	s := chat.Sessions().Create()
	reply, err := chat.Bridge().Submit(context.Background(), s, "What is the square root of 81?")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if reply.Status != orchestrator.StatusCompleted || reply.Rounds != 1 {
		t.Errorf("reply = %+v", reply)
	}
	if reply.Text != "The square root of 81 is 9." {
		t.Errorf("text = %q", reply.Text)
	}

	// Every request starts with the initial prompt, which is never stored.
	for i, req := range p.requests {
		if len(req.Messages) == 0 || !strings.Contains(req.Messages[0].Content, "calculate_expression") {
			t.Errorf("request %d lacks the preamble", i)
		}
		if len(req.Tools) != 1 {
			t.Errorf("request %d carried %d tools", i, len(req.Tools))
		}
	}
	msgs := s.Messages()
	if len(msgs) != 4 || msgs[0].Role != domain.RoleUser {
		t.Errorf("conversation = %+v", msgs)
	}
	if err := domain.ValidateMessages(msgs); err != nil {
		t.Error(err)
	}
}

func TestNew_Options(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("nil config should fail")
	}
	if _, err := New(testConfig(t), WithProvider(nil)); err == nil {
		t.Error("nil provider should fail")
	}
	if _, err := New(testConfig(t), WithLogger(nil)); err == nil {
		t.Error("nil logger should fail")
	}
}

func TestChat_StartFailsWithoutToolServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tools.Endpoint = "http://127.0.0.1:1/sse"
	cfg.Tools.ConnectTimeout = 2 * time.Second

	chat, err := New(cfg, WithLogger(quietLogger()), WithProvider(&sqrtProvider{}))
	if err != nil {
		t.Fatal(err)
	}
	err = chat.Start(context.Background())
	if !domain.IsType(err, domain.ErrorTypeTransport) {
		t.Errorf("err = %v, want transport error", err)
	}
}
