package domain

import (
	"testing"
)

func TestConversation_AppendRound(t *testing.T) {
	call := NewToolCallMessage("", []ToolCallRequest{
		{ID: "a", ToolName: "calculate_expression", Arguments: map[string]any{"expression": "1+1"}},
		{ID: "b", ToolName: "get_alerts", Arguments: map[string]any{"state": "CA"}},
	})

	tests := []struct {
		name    string
		results []ToolResult
		wantErr bool
	}{
		{
			name: "complete round in reverse order",
			results: []ToolResult{
				{RequestID: "b", Status: StatusOK, Payload: "none"},
				{RequestID: "a", Status: StatusOK, Payload: 2.0},
			},
		},
		{
			name:    "missing result",
			results: []ToolResult{{RequestID: "a", Status: StatusOK}},
			wantErr: true,
		},
		{
			name: "unknown id",
			results: []ToolResult{
				{RequestID: "a", Status: StatusOK},
				{RequestID: "zzz", Status: StatusOK},
			},
			wantErr: true,
		},
		{
			name: "repeated id",
			results: []ToolResult{
				{RequestID: "a", Status: StatusOK},
				{RequestID: "a", Status: StatusOK},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, _ := NewConversation()
			conv.AppendUser("hi")

			err := conv.AppendRound(call, tt.results)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AppendRound() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if conv.Len() != 1 {
					t.Errorf("failed round must not append anything, len = %d", conv.Len())
				}
				return
			}
			if conv.Len() != 4 {
				t.Errorf("len = %d, want 4", conv.Len())
			}
			if err := conv.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}

func TestValidateMessages(t *testing.T) {
	call := NewToolCallMessage("", []ToolCallRequest{{ID: "1", ToolName: "t"}})
	result := NewToolResultMessage(ToolResult{RequestID: "1", Status: StatusOK, Payload: "x"})

	tests := []struct {
		name    string
		msgs    []Message
		wantErr bool
	}{
		{"empty", nil, false},
		{"paired", []Message{NewUserMessage("q"), call, result, NewAssistantMessage("a")}, false},
		{"orphaned result", []Message{NewUserMessage("q"), result}, true},
		{"unanswered at end", []Message{NewUserMessage("q"), call}, true},
		{"unanswered before user", []Message{call, NewUserMessage("q")}, true},
		{"result for older round", []Message{call, result, NewAssistantMessage("a"), result}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessages(tt.msgs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolResult_Text(t *testing.T) {
	tests := []struct {
		name string
		res  ToolResult
		want string
	}{
		{"string payload", ToolResult{Status: StatusOK, Payload: "sunny"}, "sunny"},
		{"number payload", ToolResult{Status: StatusOK, Payload: 9.0}, "9"},
		{"map payload", ToolResult{Status: StatusOK, Payload: map[string]any{"rows": 3.0}}, `{"rows":3}`},
		{"error", ToolResult{Status: StatusError, Error: "unknown tool \"x\""}, "error: unknown tool \"x\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}
