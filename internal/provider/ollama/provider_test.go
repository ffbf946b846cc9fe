package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/testutil"
)

var calcTool = domain.ToolDescriptor{
	Name:        "calculate_expression",
	Description: "Evaluate a math expression",
	InputSchema: map[string]any{
		"type":       "object",
		"properties": map[string]any{"expression": map[string]any{"type": "string"}},
		"required":   []any{"expression"},
	},
}

func TestProvider_Generate_RoundTrip(t *testing.T) {
	p := New(WithHTTPClient(testutil.NewVCRClient(t, "ollama_sqrt_round_trip")))
	ctx := context.Background()

	msgs := []domain.Message{domain.NewUserMessage("What is sqrt(81)?")}
	turn, err := p.Generate(ctx, &domain.ModelRequest{Model: "qwen3:1.7b", Messages: msgs, Tools: []domain.ToolDescriptor{calcTool}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if turn.Kind != domain.TurnToolCalls || len(turn.Requests) != 1 {
		t.Fatalf("turn = %+v", turn)
	}
	req := turn.Requests[0]
	if req.ToolName != "calculate_expression" || req.Arguments["expression"] != "sqrt(81)" {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(req.ID, "call_") {
		t.Errorf("expected generated call id, got %q", req.ID)
	}
	if turn.Text != "" {
		t.Errorf("reasoning should be stripped, got %q", turn.Text)
	}

	msgs = append(msgs,
		domain.NewToolCallMessage("", turn.Requests),
		domain.NewToolResultMessage(domain.ToolResult{RequestID: req.ID, ToolName: req.ToolName, Status: domain.StatusOK, Payload: float64(9)}),
	)
	turn, err = p.Generate(ctx, &domain.ModelRequest{Model: "qwen3:1.7b", Messages: msgs})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if turn.Kind != domain.TurnFinal || turn.Text != "The square root of 81 is 9." {
		t.Errorf("turn = %+v", turn)
	}
}

func TestToAPIRequest(t *testing.T) {
	req := &domain.ModelRequest{
		Messages: []domain.Message{
			domain.NewSystemMessage("be brief"),
			domain.NewUserMessage("hi"),
			domain.NewToolCallMessage("", []domain.ToolCallRequest{{ID: "c1", ToolName: "get_alerts", Arguments: map[string]any{"state": "CA"}}}),
			domain.NewToolResultMessage(domain.ToolResult{RequestID: "c1", ToolName: "get_alerts", Status: domain.StatusError, Error: "boom"}),
		},
		Tools:     []domain.ToolDescriptor{calcTool},
		MaxTokens: 256,
	}

	got := toAPIRequest(req, DefaultModel)
	if got.Model != DefaultModel {
		t.Errorf("model = %q", got.Model)
	}
	if got.Options["num_predict"] != 256 {
		t.Errorf("options = %v", got.Options)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Messages[0].Role != "system" {
		t.Errorf("system role = %q", got.Messages[0].Role)
	}
	if tc := got.Messages[2].ToolCalls; len(tc) != 1 || tc[0].Function.Arguments["state"] != "CA" {
		t.Errorf("tool calls = %+v", tc)
	}
	if m := got.Messages[3]; m.Role != "tool" || m.ToolName != "get_alerts" || m.Content != "error: boom" {
		t.Errorf("tool message = %+v", m)
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" {
		t.Errorf("tools = %+v", got.Tools)
	}
}

func TestProvider_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.ErrorType
	}{
		{"server error", 500, `{"error":"llama runner process has terminated"}`, domain.ErrorTypeBackendUnavailable},
		{"unknown model", 404, `{"error":"model \"nope\" not found"}`, domain.ErrorTypeProtocol},
		{"garbage body", 200, `not json`, domain.ErrorTypeProtocol},
		{"tool call without name", 200, `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"arguments":{}}}]},"done":true}`, domain.ErrorTypeProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			_, err := New(WithBaseURL(ts.URL)).Generate(context.Background(), &domain.ModelRequest{
				Messages: []domain.Message{domain.NewUserMessage("hi")},
			})
			if !domain.IsType(err, tt.want) {
				t.Errorf("error = %v, want type %s", err, tt.want)
			}
		})
	}
}

func TestProvider_Generate_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(WithBaseURL(url)).Generate(context.Background(), &domain.ModelRequest{
		Messages: []domain.Message{domain.NewUserMessage("hi")},
	})
	if !domain.IsType(err, domain.ErrorTypeBackendUnavailable) {
		t.Errorf("error = %v, want backend unavailable", err)
	}
}

func TestProvider_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(WithBaseURL(ts.URL)).Generate(ctx, &domain.ModelRequest{
		Messages: []domain.Message{domain.NewUserMessage("hi")},
	})
	if !domain.IsType(err, domain.ErrorTypeProtocol) {
		t.Errorf("error = %v, want protocol error", err)
	}
}

func TestProvider_Generate_FinalText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "llama3.2" {
			t.Errorf("model = %v", req["model"])
		}
		io.WriteString(w, `{"message":{"role":"assistant","content":"Hello there."},"done":true}`)
	}))
	defer ts.Close()

	turn, err := New(WithBaseURL(ts.URL), WithModel("llama3.2")).Generate(context.Background(), &domain.ModelRequest{
		Messages: []domain.Message{domain.NewUserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if turn.Kind != domain.TurnFinal || turn.Text != "Hello there." {
		t.Errorf("turn = %+v", turn)
	}
}
