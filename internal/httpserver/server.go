// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpserver is the REST+SSE front door the spec's "send"
// handler and Live-Stream Store clients talk to: it turns an inbound
// request into a Session Store mutation, launches the orchestrator task
// as a tracked background goroutine, and serves each session's
// StreamingState subscription as an SSE stream.
//
// No third-party HTTP router is used: the teacher's own server surface
// is gRPC (google.golang.org/grpc, deliberately left unbound — see
// DESIGN.md), and no REST router appears anywhere else in the example
// pack to ground a choice on. Go 1.22's enhanced http.ServeMux (method +
// wildcard patterns) covers this handful of routes without inventing a
// dependency the corpus never reaches for.
package httpserver

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/log"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/orchestrator"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

// Deps bundles the stores and the orchestrator the HTTP layer dispatches
// turns against.
type Deps struct {
	Sessions    session.Store
	Messages    message.Store
	Todos       todo.Store
	AgentStates agentstate.Store
	Streams     streamstate.Store

	Orchestrator *orchestrator.Orchestrator

	Tracer observability.Tracer
}

// Server is the process-wide registry of in-flight turns and live
// broadcasters, plus the http.Handler wired over Deps. One Server per
// process; New(WithAddr...) style options aren't needed since cmd/ owns
// the net.Listener directly.
type Server struct {
	deps Deps

	mu                sync.Mutex
	running           map[string]context.CancelFunc // sessionID -> turn cancel
	broadcaster       map[string]*streamstate.Broadcaster
	broadcasterCancel map[string]context.CancelFunc // sessionID -> Store.Subscribe cancel
}

// New builds the Server and its http.Handler.
func New(deps Deps) *Server {
	if deps.Tracer == nil {
		deps.Tracer = observability.NewNoOpTracer()
	}
	return &Server{
		deps:              deps,
		running:           make(map[string]context.CancelFunc),
		broadcaster:       make(map[string]*streamstate.Broadcaster),
		broadcasterCancel: make(map[string]context.CancelFunc),
	}
}

// Handler builds the route table. Exported separately from New so cmd/
// can wrap it in middleware (logging, recovery) before handing it to
// http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)

	mux.HandleFunc("POST /sessions/{id}/send", s.handleSend)
	mux.HandleFunc("POST /sessions/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /sessions/{id}/answer", s.handleAnswerQuestion)

	mux.HandleFunc("GET /sessions/{id}/messages", s.handleListMessages)
	mux.HandleFunc("GET /sessions/{id}/todos", s.handleListTodos)
	mux.HandleFunc("GET /sessions/{id}/stream", s.handleStream)

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return mux
}

// Shutdown cancels every in-flight turn's context and closes every live
// broadcaster. It does not wait for RunTurn goroutines to observe
// cancellation and exit; callers that need that should pair it with a
// short grace period before process exit.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cancel := range s.running {
		cancel()
		delete(s.running, id)
	}
	for id, b := range s.broadcaster {
		b.Close()
		delete(s.broadcaster, id)
	}
	for id, cancel := range s.broadcasterCancel {
		cancel()
		delete(s.broadcasterCancel, id)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) logger() *zap.Logger {
	return log.Logger()
}
