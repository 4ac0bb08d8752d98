// Package server exposes the agent over HTTP. Chat turns are streamed with the
// AI SDK data stream protocol.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	todoagent "github.com/Protocol-Lattice/todo-agent"
	"github.com/Protocol-Lattice/todo-agent/src/concurrent"
	"github.com/Protocol-Lattice/todo-agent/src/logging"
	"github.com/Protocol-Lattice/todo-agent/src/models"
	"github.com/Protocol-Lattice/todo-agent/src/session"
	"github.com/Protocol-Lattice/todo-agent/src/todo"
)

const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// Options configure a Server. Zero values fall back to defaults.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Sessions        *session.Store
	Pool            *concurrent.WorkerPool
	Logger          *zap.Logger
}

// Server owns the HTTP routes for one agent.
type Server struct {
	agent           *todoagent.Agent
	sessions        *session.Store
	pool            *concurrent.WorkerPool
	logger          *zap.Logger
	addr            string
	shutdownTimeout time.Duration
}

func New(agent *todoagent.Agent, opts Options) (*Server, error) {
	if agent == nil {
		return nil, errors.New("server requires an agent")
	}
	s := &Server{
		agent:           agent,
		sessions:        opts.Sessions,
		pool:            opts.Pool,
		logger:          opts.Logger,
		addr:            opts.Addr,
		shutdownTimeout: opts.ShutdownTimeout,
	}
	if s.sessions == nil {
		s.sessions = session.NewStore(0, 0)
	}
	if s.pool == nil {
		s.pool = concurrent.NewWorkerPool(0)
	}
	s.logger = logging.OrNop(s.logger)
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = DefaultShutdownTimeout
	}
	return s, nil
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/todos", s.handleTodos)
	mux.HandleFunc("GET /api/chats/{id}", s.handleChatQuery)
	mux.HandleFunc("DELETE /api/chats/{id}", s.handleChatDelete)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return requestLogging(s.logger)(mux)
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for up to the shutdown timeout. Streams still open after that are
// canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		cancelBase()
		if errors.Is(err, context.DeadlineExceeded) {
			return srv.Close()
		}
		return err
	})
	return g.Wait()
}

type chatRequest struct {
	ID       string           `json:"id"`
	Messages []models.Message `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	id := session.Resolve(req.ID)

	release, err := s.pool.Acquire(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer release()

	events, err := s.agent.Stream(r.Context(), req.Messages)
	if err != nil {
		s.logger.Error("chat request failed", zap.String("chat_id", id), zap.Error(err))
		writeChatError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set(dataStreamHeader, "v1")
	h.Set("X-Chat-Id", id)
	w.WriteHeader(http.StatusOK)

	s.sessions.Save(id, req.Messages)
	dw := newDataStreamWriter(w)
	writeFailed := false
	for ev := range events {
		if ev.Kind == todoagent.EventFinish {
			s.sessions.Append(id, ev.Messages...)
			s.logger.Debug("chat turn finished",
				zap.String("chat_id", id),
				zap.String("stop_reason", string(ev.StopReason)),
			)
		}
		if writeFailed {
			continue
		}
		if err := dw.event(ev); err != nil {
			s.logger.Debug("client write failed", zap.String("chat_id", id), zap.Error(err))
			writeFailed = true
		}
	}
}

type todosResponse struct {
	Tasks   []todo.Task `json:"tasks"`
	Count   int         `json:"count"`
	Pending int         `json:"pending"`
}

func (s *Server) handleTodos(w http.ResponseWriter, _ *http.Request) {
	tasks := s.agent.Store().Snapshot()
	pending := 0
	for _, t := range tasks {
		if !t.Completed {
			pending++
		}
	}
	writeJSON(w, http.StatusOK, todosResponse{Tasks: tasks, Count: len(tasks), Pending: pending})
}

func (s *Server) handleChatQuery(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writePlain(w, http.StatusOK, "ok")
}
