package tokens

import (
	"testing"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/mcp-chat/internal/domain"
)

func TestEstimator_Count(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name      string
		req       *domain.ModelRequest
		minTokens int
		maxTokens int
	}{
		{
			name: "simple message",
			req: &domain.ModelRequest{Messages: []domain.Message{
				domain.NewUserMessage("Hello, how are you?"),
			}},
			minTokens: 5,
			maxTokens: 15,
		},
		{
			name: "multiple messages",
			req: &domain.ModelRequest{Messages: []domain.Message{
				domain.NewUserMessage("What is 2+2?"),
				domain.NewAssistantMessage("2+2 equals 4."),
				domain.NewUserMessage("Thanks!"),
			}},
			minTokens: 10,
			maxTokens: 30,
		},
		{
			name: "with tools",
			req: &domain.ModelRequest{
				Messages: []domain.Message{domain.NewUserMessage("Calculate something")},
				Tools: []domain.ToolDescriptor{
					{Name: "calculate_expression", Description: "Evaluate a math expression"},
				},
			},
			minTokens: 20,
			maxTokens: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Count(tt.req)
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("Count() = %d, want between %d and %d", got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestTiktoken_Count(t *testing.T) {
	c := NewTiktoken()

	empty := c.Count(&domain.ModelRequest{Model: "qwen3:1.7b"})
	if empty != assistantPriming {
		t.Errorf("empty request = %d, want %d", empty, assistantPriming)
	}

	one := c.Count(&domain.ModelRequest{Model: "qwen3:1.7b", Messages: []domain.Message{
		domain.NewUserMessage("hello world"),
	}})
	// "hello world" is two cl100k tokens.
	if want := assistantPriming + tokensPerMessage + tokensPerRole + 2; one != want {
		t.Errorf("one message = %d, want %d", one, want)
	}

	withCall := c.Count(&domain.ModelRequest{Model: "qwen3:1.7b", Messages: []domain.Message{
		domain.NewUserMessage("hello world"),
		domain.NewToolCallMessage("", []domain.ToolCallRequest{{ID: "1", ToolName: "calculate_expression", Arguments: map[string]any{"expression": "1+1"}}}),
	}})
	if withCall <= one+tokensPerMessage {
		t.Errorf("tool calls should add tokens: %d vs %d", withCall, one)
	}
}

func TestTiktoken_CountText(t *testing.T) {
	c := NewTiktoken()
	n, err := c.CountText("gpt-4o", "The square root of 81 is 9.")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n < 5 || n > 15 {
		t.Errorf("CountText() = %d", n)
	}
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		model string
		want  tokenizer.Encoding
	}{
		{"gpt-4o-mini", tokenizer.O200kBase},
		{"GPT-5", tokenizer.O200kBase},
		{"o3-mini", tokenizer.O200kBase},
		{"gpt-4", tokenizer.Cl100kBase},
		{"qwen3:1.7b", tokenizer.Cl100kBase},
		{"claude-sonnet-4-5", tokenizer.Cl100kBase},
	}
	for _, tt := range tests {
		if got := encodingFor(tt.model); got != tt.want {
			t.Errorf("encodingFor(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
