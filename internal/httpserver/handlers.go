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

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/orchestrator"
	"github.com/stratuscode/orchestrator/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type createSessionRequest struct {
	UserID string            `json:"userId"`
	Owner  string            `json:"owner"`
	Repo   string            `json:"repo"`
	Branch string            `json:"branch"`
	Agent  session.AgentMode `json:"agent"`
	Model  string            `json:"model"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.Owner == "" || req.Repo == "" {
		writeError(w, http.StatusBadRequest, errRequiredFields)
		return
	}
	if req.Agent == "" {
		req.Agent = session.ModeBuild
	}
	if req.Branch == "" {
		req.Branch = "main"
	}

	created, err := s.deps.Sessions.Create(r.Context(), session.Session{
		UserID: req.UserID,
		Owner:  req.Owner,
		Repo:   req.Repo,
		Branch: req.Branch,
		Agent:  req.Agent,
		Model:  req.Model,
		Status: session.StatusIdle,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, errRequiredFields)
		return
	}
	sessions, err := s.deps.Sessions.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	if cancel, ok := s.running[id]; ok {
		cancel()
		delete(s.running, id)
	}
	s.mu.Unlock()

	if err := s.deps.Sessions.PurgeSessionData(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendRequest struct {
	Message         string            `json:"message"`
	Model           string            `json:"model"`
	AlphaMode       bool              `json:"alphaMode"`
	ReasoningEffort string            `json:"reasoningEffort"`
	AgentMode       session.AgentMode `json:"agentMode"`
}

// handleSend is the spec's "send" handler: it performs the synchronous
// prepareSend transition (clears cancelRequested, flips status=running,
// seeds the title, persists the user Message), then launches the turn as
// a background goroutine tracked in s.running so a concurrent send can
// see that this server is already driving the session with a task (the
// sweeper does not consult s.running). A session already running rejects
// the request rather than starting a second concurrent turn, per §5's
// "two concurrent turns for the same session are not allowed".
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errRequiredFields)
		return
	}

	s.mu.Lock()
	if _, busy := s.running[id]; busy {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, errSessionBusy)
		return
	}
	s.mu.Unlock()

	sess, err := s.deps.Sessions.PrepareSend(r.Context(), id, req.Message)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err := s.deps.Streams.Start(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	userMsg := message.Message{
		SessionID: id,
		Role:      message.RoleUser,
		Content:   req.Message,
		Parts:     []message.Part{message.NewTextPart(req.Message)},
	}
	if _, err := s.deps.Messages.Append(r.Context(), userMsg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	turnCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[id] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, id)
			s.mu.Unlock()
			cancel()
		}()

		err := s.deps.Orchestrator.RunTurn(turnCtx, orchestrator.TurnInput{
			SessionID:       id,
			Message:         req.Message,
			Model:           req.Model,
			AlphaMode:       req.AlphaMode,
			ReasoningEffort: req.ReasoningEffort,
			AgentMode:       req.AgentMode,
		})
		if err != nil {
			s.logger().Error("turn failed", zap.String("session_id", id), zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, sess)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Sessions.SetCancelRequested(r.Context(), id, true); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type answerRequest struct {
	Answer json.RawMessage `json:"answer"`
}

func (s *Server) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Streams.AnswerQuestion(r.Context(), id, string(req.Answer)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.deps.Messages.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.deps.Todos.List(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}
