// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tognete/codi/internal/agent"
	"github.com/tognete/codi/internal/domain"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8000"

// ShutdownTimeout bounds graceful shutdown once the run context is cancelled.
const ShutdownTimeout = 10 * time.Second

// maxBodyBytes caps the size of a task request body.
const maxBodyBytes = 1 << 20

// TaskRunner runs coding tasks. It is satisfied by *agent.Agent.
type TaskRunner interface {
	ProcessTask(ctx context.Context, task *domain.Task) (*domain.CodeResponse, error)
}

// Options configures a Server.
type Options struct {
	Addr string
	// Webhook, when set, is mounted at POST /github/webhook.
	Webhook http.Handler
}

// Server serves the task endpoint, health checks, and metrics.
type Server struct {
	runner  TaskRunner
	addr    string
	handler http.Handler
}

// New creates a Server.
func New(runner TaskRunner, opts Options) *Server {
	s := &Server{runner: runner, addr: opts.Addr}
	if s.addr == "" {
		s.addr = DefaultAddr
	}

	mux := http.NewServeMux()
	mux.Handle("POST /task", instrument("/task", http.HandlerFunc(s.handleTask)))
	mux.Handle("GET /health", instrument("/health", http.HandlerFunc(handleHealth)))
	mux.Handle("GET /metrics", promhttp.Handler())
	if opts.Webhook != nil {
		mux.Handle("POST /github/webhook", instrument("/github/webhook", opts.Webhook))
	}
	s.handler = recoverPanics(mux)
	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting at most ShutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := clog.FromContext(ctx)
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("task service listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down task service")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	<-errc
	return nil
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	ctx := agent.WithSource(r.Context(), domain.SourceAPI)
	log := clog.FromContext(ctx)

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	var task domain.Task
	if err := dec.Decode(&task); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := task.Validate(); err != nil {
		if errors.Is(err, domain.ErrUnknownTaskType) {
			writeNotImplemented(w, task.Type)
			return
		}
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	log.Info("[API Task]", "type", task.Type, "files", len(task.Context.Files))
	resp, err := s.runner.ProcessTask(ctx, &task)
	switch {
	case errors.Is(err, domain.ErrUnknownTaskType):
		writeNotImplemented(w, task.Type)
	case err != nil:
		log.With("error", err).Error("task failed")
		writeDetail(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeNotImplemented(w http.ResponseWriter, t domain.TaskType) {
	writeDetail(w, http.StatusNotImplemented, fmt.Sprintf("Task type '%s' not implemented yet", t))
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
