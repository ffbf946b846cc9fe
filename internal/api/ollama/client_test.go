package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Chat_WireFormat(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("request body is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"qwen3:1.7b","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"calculate_expression","arguments":{"expression":"sqrt(81)"}}}]},"done":true,"done_reason":"stop"}`)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL + "/"))
	resp, err := c.Chat(context.Background(), &ChatRequest{
		Model: "qwen3:1.7b",
		Messages: []Message{
			{Role: "user", Content: "What is sqrt(81)?"},
		},
		Tools: []Tool{{
			Type: "function",
			Function: ToolFunction{
				Name:       "calculate_expression",
				Parameters: map[string]any{"type": "object"},
			},
		}},
		Stream: true,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	if got["model"] != "qwen3:1.7b" {
		t.Errorf("model = %v", got["model"])
	}
	tools, _ := got["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", got["tools"])
	}
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "calculate_expression" {
		t.Errorf("tool name = %v", fn["name"])
	}

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	call := resp.Message.ToolCalls[0].Function
	if call.Name != "calculate_expression" || call.Arguments["expression"] != "sqrt(81)" {
		t.Errorf("call = %+v", call)
	}
}

func TestClient_Chat_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
		wantDecode bool
	}{
		{name: "model not found", status: 404, body: `{"error":"model \"nope\" not found, try pulling it first"}`, wantStatus: 404, wantMsg: `model "nope" not found, try pulling it first`},
		{name: "server error plain body", status: 500, body: "internal failure", wantStatus: 500, wantMsg: "internal failure"},
		{name: "error in 200 body", status: 200, body: `{"error":"context length exceeded"}`, wantStatus: 200, wantMsg: "context length exceeded"},
		{name: "not json", status: 200, body: "<html>", wantDecode: true},
		{name: "no message", status: 200, body: `{"done":true}`, wantDecode: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			_, err := NewClient(WithBaseURL(ts.URL)).Chat(context.Background(), &ChatRequest{Model: "m"})
			if err == nil {
				t.Fatal("expected error")
			}

			if tt.wantDecode {
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Errorf("expected *DecodeError, got %T: %v", err, err)
				}
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.wantStatus || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestClient_Chat_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(WithBaseURL(url)).Chat(context.Background(), &ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("connection failure should not be an APIError: %v", err)
	}
}
