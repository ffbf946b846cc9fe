// Package toolserver exposes a tool registry and the initial chat prompt as
// an MCP server reachable over SSE.
package toolserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/tools"
)

// InitialPromptName is the prompt clients fetch to seed a conversation.
const InitialPromptName = "get_initial_prompts"

// InitialPrompt is the instruction text returned by InitialPromptName.
const InitialPrompt = `You are a helpful assistant that can help with weather-related questions.
For math expressions like '2 + 3 * 4', use the ` + "`calculate_expression`" + ` tool.
For questions about the local dataset, use the ` + "`analyze_dataset`" + ` and ` + "`query_dataset`" + ` tools.
Reply to general questions, like things about animals, using your own knowledge.`

const (
	serverName    = "mcp-chat-tools"
	serverVersion = "1.0.0"
)

// Server wraps an mcp.Server whose tools dispatch through a tools.Invoker.
type Server struct {
	mcp     *mcp.Server
	invoker *tools.Invoker
	logger  *slog.Logger
}

// New registers every tool in the invoker's registry plus the initial prompt.
func New(invoker *tools.Invoker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:     mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		invoker: invoker,
		logger:  logger,
	}

	for _, d := range invoker.Registry().Descriptors() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}, s.handleTool(d.Name))
	}

	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        InitialPromptName,
		Description: "Instructions that seed every chat session.",
	}, handleInitialPrompt)

	return s
}

// MCP returns the underlying server, mainly for in-process transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Handler returns the SSE handler. Mount it at /sse; the message endpoint
// is announced to clients by the handler itself.
func (s *Server) Handler() http.Handler {
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

func (s *Server) handleTool(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult("invalid arguments: " + err.Error()), nil
			}
		}

		res := s.invoker.Invoke(ctx, domain.ToolCallRequest{
			ID:        uuid.NewString(),
			ToolName:  name,
			Arguments: args,
		})
		if res.Status == domain.StatusError {
			return errorResult(res.Error), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text()}},
		}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func handleInitialPrompt(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: InitialPrompt}},
		},
	}, nil
}
