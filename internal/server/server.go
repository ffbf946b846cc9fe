package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds every request context. Zero disables the bound,
// which long-lived event streams need.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

// WithAddress sets the listen host; the default listens on all interfaces.
func WithAddress(host string) Option {
	return func(s *Server) {
		s.host = host
	}
}

// WithServiceName names the spans produced by the HTTP instrumentation.
func WithServiceName(name string) Option {
	return func(s *Server) {
		s.serviceName = name
	}
}

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	host           string
	serviceName    string
	requestTimeout time.Duration
	httpServer     *http.Server
}

func New(port int, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		Port:           port,
		logger:         logger,
		serviceName:    "mcp-chat",
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	if s.requestTimeout > 0 {
		r.Use(TimeoutMiddleware(s.requestTimeout))
	}
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	serviceName := s.serviceName
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	})

	s.Router = r
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.Port)
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", slog.String("addr", s.Addr()))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
