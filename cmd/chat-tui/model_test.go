package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
	"github.com/tjfontaine/mcp-chat/internal/session"
)

type fakeBridge struct {
	prompts []string
	reply   *session.Reply
	err     error
}

func (f *fakeBridge) Submit(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func typeLine(t *testing.T, m model, text string) (model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(model), cmd
}

// runBatch executes cmd and returns the first replyMsg it yields.
func runBatch(cmd tea.Cmd) (replyMsg, bool) {
	if cmd == nil {
		return replyMsg{}, false
	}
	switch msg := cmd().(type) {
	case replyMsg:
		return msg, true
	case tea.BatchMsg:
		for _, c := range msg {
			if r, ok := runBatch(c); ok {
				return r, true
			}
		}
	}
	return replyMsg{}, false
}

func TestModel_AskAndAnswer(t *testing.T) {
	fb := &fakeBridge{reply: &session.Reply{Text: "9", Status: orchestrator.StatusCompleted}}
	m := newModel(fb, session.New("s", orchestrator.Env{}), "qwen3:1.7b", 3)

	m, cmd := typeLine(t, m, "sqrt(81)?")
	if !m.thinking {
		t.Fatal("model should be thinking")
	}
	if !strings.Contains(m.View(), "Thinking...") {
		t.Error("spinner line missing")
	}

	msg, ok := runBatch(cmd)
	if !ok {
		t.Fatal("no reply command issued")
	}
	if len(fb.prompts) != 1 || fb.prompts[0] != "sqrt(81)?" {
		t.Errorf("prompts = %v", fb.prompts)
	}

	next, _ := m.Update(msg)
	m = next.(model)
	if m.thinking {
		t.Error("still thinking after reply")
	}
	last := m.lines[len(m.lines)-1]
	if last.label != "Assistant" || last.text != "9" {
		t.Errorf("last line = %+v", last)
	}
}

func TestModel_IgnoresInputWhileThinking(t *testing.T) {
	fb := &fakeBridge{reply: &session.Reply{Text: "ok"}}
	m := newModel(fb, session.New("s", orchestrator.Env{}), "m", 0)
	m.thinking = true

	_, cmd := typeLine(t, m, "another")
	if cmd != nil {
		t.Error("second prompt should be ignored while a run is in flight")
	}
}

func TestModel_Commands(t *testing.T) {
	s := session.New("s", orchestrator.Env{})
	m := newModel(&fakeBridge{}, s, "m", 0)
	m.lines = append(m.lines, line{label: "You", text: "hi"})

	m, _ = typeLine(t, m, "/reset")
	if len(m.lines) != 1 || m.lines[0].text != "Conversation cleared." {
		t.Errorf("lines after reset = %+v", m.lines)
	}
	if s.Generation() != 1 {
		t.Error("reset did not reach the session")
	}

	_, cmd := typeLine(t, m, "/quit")
	if cmd == nil {
		t.Fatal("/quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("/quit should quit")
	}
}

func TestModel_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  replyMsg
		want string
	}{
		{"bridge error", replyMsg{err: errors.New("timed out")}, "Error: timed out"},
		{"failed run", replyMsg{reply: &session.Reply{
			Text:   domain.UserMessage(domain.NewBackendUnavailableError("connection refused")),
			Status: orchestrator.StatusFailed,
		}}, "Error: the language model is unavailable (connection refused)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(&fakeBridge{}, session.New("s", orchestrator.Env{}), "m", 0)
			m.thinking = true
			next, _ := m.Update(tt.msg)
			got := next.(model).lines
			if last := got[len(got)-1]; last.text != tt.want {
				t.Errorf("last line = %q, want %q", last.text, tt.want)
			}
		})
	}
}
