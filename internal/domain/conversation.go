package domain

import (
	"fmt"
)

// Conversation is the append-only message log of one session.
//
// Rounds are committed whole through AppendRound so that a tool-call request
// is never stored without its result, and a tool result never without the
// request that produced it.
type Conversation struct {
	messages []Message
}

// NewConversation returns a conversation seeded with msgs. The seed must
// already satisfy the pairing invariant.
func NewConversation(msgs ...Message) (*Conversation, error) {
	c := &Conversation{messages: append([]Message(nil), msgs...)}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Messages returns a copy of the messages in insertion order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Clone returns an independent copy.
func (c *Conversation) Clone() *Conversation {
	return &Conversation{messages: c.Messages()}
}

// AppendUser appends a user message.
func (c *Conversation) AppendUser(text string) {
	c.messages = append(c.messages, NewUserMessage(text))
}

// AppendAssistant appends a final assistant message.
func (c *Conversation) AppendAssistant(text string) {
	c.messages = append(c.messages, NewAssistantMessage(text))
}

// AppendRound commits one tool round: the assistant message carrying the
// requests followed by exactly one result message per request. Nothing is
// appended if the round is incomplete.
func (c *Conversation) AppendRound(call Message, results []ToolResult) error {
	if call.Role != RoleAssistant || len(call.ToolCalls) == 0 {
		return fmt.Errorf("round must start with an assistant tool-call message")
	}
	if len(results) != len(call.ToolCalls) {
		return fmt.Errorf("round has %d requests but %d results", len(call.ToolCalls), len(results))
	}

	pending := make(map[string]bool, len(call.ToolCalls))
	for _, req := range call.ToolCalls {
		if req.ID == "" {
			return fmt.Errorf("tool call %q has no id", req.ToolName)
		}
		if pending[req.ID] {
			return fmt.Errorf("duplicate tool call id %q", req.ID)
		}
		pending[req.ID] = true
	}

	round := make([]Message, 0, len(results)+1)
	round = append(round, call)
	for _, res := range results {
		if !pending[res.RequestID] {
			return fmt.Errorf("result for unknown or repeated request id %q", res.RequestID)
		}
		delete(pending, res.RequestID)
		round = append(round, NewToolResultMessage(res))
	}

	c.messages = append(c.messages, round...)
	return nil
}

// Validate checks the pairing invariant: every tool message answers a request
// from the nearest preceding assistant message, and every such request is
// answered before any other message follows.
func (c *Conversation) Validate() error {
	return ValidateMessages(c.messages)
}

// ValidateMessages checks the pairing invariant over an arbitrary message slice.
func ValidateMessages(msgs []Message) error {
	var pending map[string]bool
	for i, m := range msgs {
		if m.Role == RoleTool {
			if m.ToolCallID == "" {
				return fmt.Errorf("message %d: tool message without tool_call_id", i)
			}
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: orphaned tool result %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
			continue
		}

		if len(pending) > 0 {
			return fmt.Errorf("message %d: %d tool call(s) left unanswered", i, len(pending))
		}
		pending = nil

		if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
			pending = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("conversation ends with %d unanswered tool call(s)", len(pending))
	}
	return nil
}
