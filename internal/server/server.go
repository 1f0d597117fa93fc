// ABOUTME: Optional HTTP listener exposing liveness and readiness endpoints
// ABOUTME: Readiness requires a live Socket Mode connection and a reachable backend

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// probeTimeout bounds the backend check made by /health/ready.
const probeTimeout = 5 * time.Second

// Backend is probed for reachability.
type Backend interface {
	TestConnection(ctx context.Context) bool
}

// Socket reports the platform connection state.
type Socket interface {
	Connected() bool
}

// Server serves /health and /health/ready.
type Server struct {
	addr       string
	backend    Backend
	socket     Socket
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a Server listening on addr once Run is called.
func New(addr string, backend Backend, socket Socket, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:    addr,
		backend: backend,
		socket:  socket,
		logger:  logger.With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	return mux
}

// Run listens until ctx is canceled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		s.logger.Error("server error", "error", serveErr)
	}

	// The caller's context is already canceled here.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// handleHealth always returns 200 OK while the process is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if Slack is connected and the backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.socket != nil && !s.socket.Connected() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("slack not connected"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()
	if s.backend != nil && !s.backend.TestConnection(ctx) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("backend unreachable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
