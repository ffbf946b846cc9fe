package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
)

// CookieName carries the session id in browser requests.
const CookieName = "mcp_chat_session"

// Manager maps session ids to sessions.
type Manager struct {
	env    orchestrator.Env
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions all share env.
func NewManager(env orchestrator.Env, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		env:      env,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Env returns the environment handed to new sessions.
func (m *Manager) Env() orchestrator.Env {
	return m.env
}

// Create starts a session with a fresh id.
func (m *Manager) Create() *Session {
	s := New(uuid.NewString(), m.env)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.logger.Info("session created", slog.String("session_id", s.ID))
	return s
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating a new one when id is
// unknown. created reports whether a new session was made. A found session
// is marked active so Prune leaves it alone until its caller is done.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	if ok {
		s.touch()
	}
	m.mu.RUnlock()
	if ok {
		return s, false
	}
	return m.Create(), true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune drops idle sessions with no run in flight and returns how many went.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if !s.Busy() && s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Info("pruned idle sessions", slog.Int("count", n), slog.Int("remaining", len(m.sessions)))
	}
	return n
}
