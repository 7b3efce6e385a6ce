package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// defaultUser identifies the caller when no X-User-ID header is sent.
// The service is single-user by default; the header exists so shared
// deployments can front it with their own auth.
const defaultUser = "local"

// Config holds the server settings.
type Config struct {
	// ListenAddr is the address to bind, e.g. "127.0.0.1:8420".
	ListenAddr string
}

// Server is the HTTP driving adapter.
type Server struct {
	cfg      Config
	chat     driving.ChatService
	threads  driving.ThreadService
	search   driving.SearchService
	evals    driving.EvalService
	server   *http.Server
	listener net.Listener
}

// NewServer wires the core services into an HTTP server.
func NewServer(cfg Config, chat driving.ChatService, threads driving.ThreadService,
	search driving.SearchService, evals driving.EvalService) *Server {
	s := &Server{
		cfg:     cfg,
		chat:    chat,
		threads: threads,
		search:  search,
		evals:   evals,
	}
	s.server = &http.Server{
		Handler:     s.routes(),
		ReadTimeout: 10 * time.Second,
		// No write timeout: chat turns stream for as long as the
		// generation takes.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/threads", s.handleCreateThread)
	mux.HandleFunc("GET /api/v1/threads", s.handleListThreads)
	mux.HandleFunc("GET /api/v1/threads/{id}", s.handleGetThread)
	mux.HandleFunc("PATCH /api/v1/threads/{id}", s.handleRenameThread)
	mux.HandleFunc("DELETE /api/v1/threads/{id}", s.handleDeleteThread)
	mux.HandleFunc("GET /api/v1/threads/{id}/messages", s.handleHistory)
	mux.HandleFunc("POST /api/v1/threads/{id}/messages", s.handleChatTurn)

	mux.HandleFunc("POST /api/v1/search", s.handleSearch)

	mux.HandleFunc("POST /api/v1/eval/runs", s.handleTriggerRun)
	mux.HandleFunc("GET /api/v1/eval/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/eval/runs/{id}", s.handleRunStatus)
	mux.HandleFunc("DELETE /api/v1/eval/runs/{id}", s.handleCancelRun)
	mux.HandleFunc("GET /api/v1/eval/runs/{id}/results", s.handleRunResults)

	return logRequests(mux)
}

// Handler returns the route tree, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server: %v", err)
		}
	}()

	logger.Info("http api listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.ListenAddr
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userID resolves the calling user for a request.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return defaultUser
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
