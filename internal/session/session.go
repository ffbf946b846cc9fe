// Package session holds per-user chat state and bridges blocking UI calls to
// a background pool that runs the orchestration loop.
package session

import (
	"sync"
	"time"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
)

// Entry is one line of the displayed transcript.
type Entry struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
	// Status is set on assistant entries: completed, truncated or failed.
	Status orchestrator.Status `json:"status,omitempty"`
}

// Session is the state of one interactive chat. The conversation is only
// replaced by whole completed runs, never edited in place by a worker.
type Session struct {
	ID  string
	env orchestrator.Env

	// slot holds a token while a run for this session is queued or running.
	slot chan struct{}

	mu         sync.Mutex
	conv       *domain.Conversation
	transcript []Entry
	generation uint64
	lastActive time.Time
}

// New creates an empty session. env is shared read-only between sessions.
func New(id string, env orchestrator.Env) *Session {
	conv, _ := domain.NewConversation()
	return &Session{
		ID:         id,
		env:        env,
		slot:       make(chan struct{}, 1),
		conv:       conv,
		lastActive: time.Now(),
	}
}

// Env returns the preamble and tool descriptors used for every run.
func (s *Session) Env() orchestrator.Env {
	return s.env
}

// Reset clears the conversation and transcript. A run in flight when Reset
// is called finishes but its result is dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv, _ = domain.NewConversation()
	s.transcript = nil
	s.generation++
	s.lastActive = time.Now()
}

// Transcript returns a copy of the displayed entries.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Messages returns a copy of the model-facing conversation.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Messages()
}

// Generation counts resets.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// LastActive reports when the session was last looked up, reset or
// committed to.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Busy reports whether a run is queued or in flight.
func (s *Session) Busy() bool {
	return len(s.slot) > 0
}

func (s *Session) snapshot() (*domain.Conversation, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Clone(), s.generation
}

// commit installs conv as the session conversation unless the session was
// reset since gen was taken.
func (s *Session) commit(gen uint64, conv *domain.Conversation, prompt string, res *orchestrator.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return false
	}
	s.conv = conv
	s.transcript = append(s.transcript,
		Entry{Role: domain.RoleUser, Content: prompt},
		Entry{Role: domain.RoleAssistant, Content: res.Text, Status: res.Status},
	)
	s.lastActive = time.Now()
	return true
}
