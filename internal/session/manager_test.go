package session

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
)

func TestManager_GetOrCreate(t *testing.T) {
	env := orchestrator.Env{Tools: []domain.ToolDescriptor{{Name: "calculate_expression"}}}
	m := NewManager(env, quietLogger())

	s, created := m.GetOrCreate("")
	if !created {
		t.Fatal("empty id should create a session")
	}
	if _, err := uuid.Parse(s.ID); err != nil {
		t.Errorf("session id %q is not a uuid", s.ID)
	}
	if len(s.Env().Tools) != 1 {
		t.Error("session should carry the manager env")
	}

	again, created := m.GetOrCreate(s.ID)
	if created || again != s {
		t.Error("known id should return the same session")
	}

	other, created := m.GetOrCreate("not-a-known-id")
	if !created || other.ID == "not-a-known-id" {
		t.Errorf("unknown id should get a fresh server-side id, got %q", other.ID)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d", m.Len())
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := NewManager(orchestrator.Env{}, quietLogger())
	a, b := m.Create(), m.Create()

	conv, gen := a.snapshot()
	conv.AppendUser("only in a")
	conv.AppendAssistant("ok")
	a.commit(gen, conv, "only in a", &orchestrator.Result{Text: "ok", Status: orchestrator.StatusCompleted})

	if len(b.Messages()) != 0 || len(b.Transcript()) != 0 {
		t.Error("sessions share state")
	}
	b.Reset()
	if len(a.Transcript()) != 2 {
		t.Error("resetting one session touched another")
	}
}

func TestManager_Prune(t *testing.T) {
	m := NewManager(orchestrator.Env{}, quietLogger())
	idle := m.Create()
	busy := m.Create()
	fresh := m.Create()

	idle.lastActive = time.Now().Add(-time.Hour)
	busy.lastActive = time.Now().Add(-time.Hour)
	busy.slot <- struct{}{}

	if n := m.Prune(30 * time.Minute); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
	if _, ok := m.Get(idle.ID); ok {
		t.Error("idle session survived")
	}
	for _, s := range []*Session{busy, fresh} {
		if _, ok := m.Get(s.ID); !ok {
			t.Errorf("session %s pruned", s.ID)
		}
	}
}

func TestManager_LookupKeepsSessionAlive(t *testing.T) {
	m := NewManager(orchestrator.Env{}, quietLogger())
	s := m.Create()
	s.lastActive = time.Now().Add(-2 * time.Hour)

	got, created := m.GetOrCreate(s.ID)
	if created || got != s {
		t.Fatal("expected existing session")
	}
	if n := m.Prune(time.Hour); n != 0 {
		t.Errorf("Prune() = %d, a session just looked up was dropped", n)
	}
	if _, ok := m.Get(s.ID); !ok {
		t.Error("session pruned between lookup and submit")
	}
}
