package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
	"github.com/tjfontaine/mcp-chat/internal/session"
)

type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, conv *domain.Conversation, env orchestrator.Env, prompt string) *orchestrator.Result {
	conv.AppendUser(prompt)
	text := "You said: " + prompt
	conv.AppendAssistant(text)
	return &orchestrator.Result{Text: text, Status: orchestrator.StatusCompleted}
}

type submitFunc func(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error)

func (f submitFunc) Submit(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error) {
	return f(ctx, s, prompt)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testTools = []domain.ToolDescriptor{
	{Name: "calculate_expression", Description: "Evaluate math"},
	{Name: "get_alerts", Description: "Weather alerts"},
}

func newTestServer(t *testing.T, submitter Submitter) *httptest.Server {
	t.Helper()
	m := session.NewManager(orchestrator.Env{Tools: testTools}, quietLogger())
	if submitter == nil {
		b := session.NewBridge(echoRunner{}, session.WithBridgeLogger(quietLogger()))
		b.Start()
		t.Cleanup(b.Stop)
		submitter = b
	}
	h, err := NewHandler(submitter, m, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	h.Mount(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

// client keeps the session cookie between calls.
type client struct {
	t      *testing.T
	base   string
	cookie *http.Cookie
}

func (c *client) do(method, path, body string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, strings.NewReader(body))
	if err != nil {
		c.t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName {
			c.cookie = ck
		}
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, nil)
	c := &client{t: t, base: ts.URL}

	resp := c.do(http.MethodGet, "/", "")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if c.cookie == nil || !c.cookie.HttpOnly {
		t.Errorf("session cookie = %+v", c.cookie)
	}
	for _, want := range []string{"Are there any alerts in CA?", "2 + 2 * 3", "calculate_expression", "get_alerts", "Reset Chat"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestChatAndHistory(t *testing.T) {
	ts := newTestServer(t, nil)
	c := &client{t: t, base: ts.URL}

	resp := c.do(http.MethodPost, "/api/chat", `{"message":"What is 2+2?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	reply := decode[session.Reply](t, resp)
	if reply.Text != "You said: What is 2+2?" || reply.Status != orchestrator.StatusCompleted {
		t.Errorf("reply = %+v", reply)
	}

	hist := decode[HistoryResponse](t, c.do(http.MethodGet, "/api/history", ""))
	if len(hist.Messages) != 2 || hist.Messages[0].Role != domain.RoleUser || hist.Messages[1].Content != reply.Text {
		t.Errorf("history = %+v", hist)
	}
	if hist.SessionID != c.cookie.Value {
		t.Errorf("session id %q does not match cookie %q", hist.SessionID, c.cookie.Value)
	}

	// Another browser has its own history.
	other := &client{t: t, base: ts.URL}
	if h := decode[HistoryResponse](t, other.do(http.MethodGet, "/api/history", "")); len(h.Messages) != 0 {
		t.Errorf("history leaked across sessions: %+v", h)
	}
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, nil)
	c := &client{t: t, base: ts.URL}

	c.do(http.MethodPost, "/api/chat", `{"message":"hello"}`).Body.Close()
	resp := c.do(http.MethodPost, "/api/reset", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if h := decode[HistoryResponse](t, c.do(http.MethodGet, "/api/history", "")); len(h.Messages) != 0 {
		t.Errorf("history after reset = %+v", h.Messages)
	}
}

func TestTools(t *testing.T) {
	ts := newTestServer(t, nil)
	c := &client{t: t, base: ts.URL}

	got := decode[ToolsResponse](t, c.do(http.MethodGet, "/api/tools", ""))
	if len(got.Tools) != 2 || got.Tools[0].Name != "calculate_expression" {
		t.Errorf("tools = %+v", got.Tools)
	}
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name       string
		submitter  Submitter
		body       string
		wantStatus int
		wantType   string
	}{
		{
			name:       "malformed body",
			body:       `not json`,
			wantStatus: http.StatusBadRequest,
			wantType:   string(domain.ErrorTypeInvalidRequest),
		},
		{
			name:       "empty message",
			body:       `{"message":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantType:   string(domain.ErrorTypeInvalidRequest),
		},
		{
			name: "reply timeout",
			submitter: submitFunc(func(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error) {
				return nil, session.ErrReplyTimeout
			}),
			body:       `{"message":"slow"}`,
			wantStatus: http.StatusGatewayTimeout,
			wantType:   "timeout",
		},
		{
			name: "bridge stopped",
			submitter: submitFunc(func(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error) {
				return nil, session.ErrStopped
			}),
			body:       `{"message":"hi"}`,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.submitter)
			c := &client{t: t, base: ts.URL}

			resp := c.do(http.MethodPost, "/api/chat", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body := decode[ErrorBody](t, resp)
			if body.Error.Type != tt.wantType || body.Error.Message == "" {
				t.Errorf("error = %+v", body.Error)
			}
		})
	}
}

func TestChat_FailedRunIsStillAnAnswer(t *testing.T) {
	ts := newTestServer(t, submitFunc(func(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error) {
		err := domain.NewBackendUnavailableError("connection refused")
		return &session.Reply{Text: domain.UserMessage(err), Status: orchestrator.StatusFailed, Err: err}, nil
	}))
	c := &client{t: t, base: ts.URL}

	resp := c.do(http.MethodPost, "/api/chat", `{"message":"hi"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	reply := decode[session.Reply](t, resp)
	if reply.Status != orchestrator.StatusFailed || !strings.HasPrefix(reply.Text, "Error: ") {
		t.Errorf("reply = %+v", reply)
	}
}
