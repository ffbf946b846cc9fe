package domain

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ResultStatus is the outcome recorded on a tool result.
type ResultStatus string

const (
	StatusOK    ResultStatus = "ok"
	StatusError ResultStatus = "error"
)

// ToolCallRequest is a single tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// ArgumentsJSON returns the arguments encoded as a JSON object.
func (r ToolCallRequest) ArgumentsJSON() string {
	if len(r.Arguments) == 0 {
		return "{}"
	}
	b, err := json.Marshal(r.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolResult is the uniform envelope produced by the tool invoker.
type ToolResult struct {
	RequestID string       `json:"request_id"`
	ToolName  string       `json:"tool_name"`
	Status    ResultStatus `json:"status"`
	Payload   any          `json:"payload,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Text renders the result as the content of a tool-role message.
func (r ToolResult) Text() string {
	if r.Status == StatusError {
		return "error: " + r.Error
	}
	switch v := r.Payload.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// ToolDescriptor is the metadata advertised to the model for one tool.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Message is one entry of a conversation. Which optional fields are set
// depends on Role; use the constructors below rather than literals.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only set on assistant messages that request tools.
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`

	// ToolCallID, ToolName and Status are only set on tool messages.
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolName   string       `json:"tool_name,omitempty"`
	Status     ResultStatus `json:"status,omitempty"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates a final assistant message with no tool calls.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// NewToolCallMessage creates an assistant message that records the raw
// tool-call requests of one model turn.
func NewToolCallMessage(text string, calls []ToolCallRequest) Message {
	cp := make([]ToolCallRequest, len(calls))
	copy(cp, calls)
	return Message{Role: RoleAssistant, Content: text, ToolCalls: cp}
}

// NewToolResultMessage wraps a tool result into a tool-role message tagged
// with the id of the request that produced it.
func NewToolResultMessage(res ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    res.Text(),
		ToolCallID: res.RequestID,
		ToolName:   res.ToolName,
		Status:     res.Status,
	}
}

// TurnKind distinguishes the two shapes a model turn can take.
type TurnKind string

const (
	TurnFinal     TurnKind = "final"
	TurnToolCalls TurnKind = "tool_calls"
)

// ModelTurn is the parsed outcome of one model gateway call.
type ModelTurn struct {
	Kind TurnKind
	// Text is the answer for final turns and optional commentary for tool_calls turns.
	Text     string
	Requests []ToolCallRequest
}

// ModelRequest is what the orchestrator hands to a provider.
type ModelRequest struct {
	Model     string
	Messages  []Message
	Tools     []ToolDescriptor
	MaxTokens int
}

// SystemAndRest splits leading system messages from the rest. Providers whose
// wire format carries the system prompt out of band use it.
func (r *ModelRequest) SystemAndRest() (system []string, rest []Message) {
	for i, m := range r.Messages {
		if m.Role != RoleSystem {
			return system, r.Messages[i:]
		}
		system = append(system, m.Content)
	}
	return system, nil
}
