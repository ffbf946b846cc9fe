// Package web serves the browser chat page and the JSON endpoints it calls.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/mcp-chat/internal/domain"
	"github.com/tjfontaine/mcp-chat/internal/server"
	"github.com/tjfontaine/mcp-chat/internal/session"
)

//go:embed templates/index.html
var templateFS embed.FS

// maxBodyBytes caps chat request bodies.
const maxBodyBytes = 64 << 10

// ExampleGroup is one block of suggested prompts in the sidebar.
type ExampleGroup struct {
	Title   string
	Prompts []string
}

// DefaultExamples are the sidebar suggestions.
var DefaultExamples = []ExampleGroup{
	{Title: "Weather", Prompts: []string{
		"What's the weather in Los Angeles?",
		"Are there any alerts in CA?",
	}},
	{Title: "Math", Prompts: []string{
		"2 + 2 * 3",
		"What's the square root of 144?",
	}},
	{Title: "Dataset Analysis", Prompts: []string{
		"Show me the average values of the dataset",
		"How many records are in the file?",
		"What's the most frequent word in the title?",
		"Do any descriptions mention 'cloud' or 'AI'?",
	}},
}

// Submitter runs one prompt for a session. *session.Bridge implements it.
type Submitter interface {
	Submit(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithExamples replaces the sidebar suggestions.
func WithExamples(groups []ExampleGroup) Option {
	return func(h *Handler) { h.examples = groups }
}

// WithTitle sets the page title.
func WithTitle(title string) Option {
	return func(h *Handler) { h.title = title }
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) { h.secureCookie = secure }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

type Handler struct {
	bridge   Submitter
	sessions *session.Manager
	page     *template.Template

	title        string
	examples     []ExampleGroup
	secureCookie bool
	logger       *slog.Logger
}

// NewHandler creates the chat page handler.
func NewHandler(bridge Submitter, sessions *session.Manager, opts ...Option) (*Handler, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	h := &Handler{
		bridge:   bridge,
		sessions: sessions,
		page:     page,
		title:    "MCP Chat",
		examples: DefaultExamples,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Mount registers the page and API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/history", h.handleHistory)
		r.Get("/tools", h.handleTools)
		r.Post("/chat", h.handleChat)
		r.Post("/reset", h.handleReset)
	})
}

type pageData struct {
	Title    string
	Examples []ExampleGroup
	Tools    []domain.ToolDescriptor
	History  []session.Entry
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.page.Execute(w, pageData{
		Title:    h.title,
		Examples: h.examples,
		Tools:    h.sessions.Env().Tools,
		History:  s.Transcript(),
	})
	if err != nil {
		server.AddError(r.Context(), err)
		h.logger.Error("failed to render chat page", slog.String("error", err.Error()))
	}
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []session.Entry `json:"messages"`
	Busy      bool            `json:"busy"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	writeJSON(w, http.StatusOK, HistoryResponse{
		SessionID: s.ID,
		Messages:  s.Transcript(),
		Busy:      s.Busy(),
	})
}

// ToolsResponse is the body of GET /api/tools.
type ToolsResponse struct {
	Tools []domain.ToolDescriptor `json:"tools"`
}

func (h *Handler) handleTools(w http.ResponseWriter, r *http.Request) {
	tools := h.sessions.Env().Tools
	if tools == nil {
		tools = []domain.ToolDescriptor{}
	}
	writeJSON(w, http.StatusOK, ToolsResponse{Tools: tools})
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, domain.NewInvalidRequestError("request body must be JSON like {\"message\": \"...\"}").WithCause(err))
		return
	}

	s := h.session(w, r)
	server.AddLogField(ctx, "session_id", s.ID)

	reply, err := h.bridge.Submit(ctx, s, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	server.AddLogField(ctx, "status", string(reply.Status))
	if reply.Err != nil {
		server.AddError(ctx, reply.Err)
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.Reset()
	server.AddLogField(r.Context(), "session_id", s.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// session resolves the caller's session, issuing a cookie for new ones.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(session.CookieName); err == nil {
		id = c.Value
	}
	s, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	status := http.StatusInternalServerError
	detail := ErrorDetail{Type: "internal_error", Message: err.Error()}
	switch {
	case errors.Is(err, session.ErrReplyTimeout):
		status = http.StatusGatewayTimeout
		detail = ErrorDetail{Type: "timeout", Message: "Error: the assistant is taking too long. The answer will appear in the history when it is ready."}
	case errors.Is(err, session.ErrStopped):
		status = http.StatusServiceUnavailable
		detail = ErrorDetail{Type: "unavailable", Message: "Error: the chat service is shutting down."}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		detail = ErrorDetail{Type: "cancelled", Message: "Error: the request was cancelled."}
	default:
		if de, ok := domain.AsError(err); ok {
			status = de.HTTPStatusCode()
			detail = ErrorDetail{Type: string(de.Type), Message: de.Message}
		}
	}
	writeJSON(w, status, ErrorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
