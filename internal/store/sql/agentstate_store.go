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

package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/pubsub"
	"github.com/stratuscode/orchestrator/internal/session"
)

// AgentStateStore implements agentstate.Store. There is exactly one row
// per session, upserted wholesale by Save — the finalize step that calls
// it already holds the authoritative post-turn state and never needs a
// partial update.
type AgentStateStore struct {
	db     *sql.DB
	driver Driver
	hub    *hub[agentstate.AgentState]
}

func NewAgentStateStore(db *sql.DB, driver Driver) *AgentStateStore {
	return &AgentStateStore{db: db, driver: driver, hub: newHub[agentstate.AgentState]()}
}

func (s *AgentStateStore) q(query string) string { return rebind(s.driver, query) }

func (s *AgentStateStore) Get(ctx context.Context, sessionID string) (agentstate.AgentState, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT session_id, sage_messages, summary, plan_file_path, agent_mode, updated_at
		FROM agent_state WHERE session_id = ?
	`), sessionID)

	var st agentstate.AgentState
	var sageJSON, summaryText, agentMode string
	err := row.Scan(&st.SessionID, &sageJSON, &summaryText, &st.PlanFilePath, &agentMode, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return agentstate.AgentState{}, fmt.Errorf("agent state for session %s not found", sessionID)
	}
	if err != nil {
		return agentstate.AgentState{}, fmt.Errorf("get agent state: %w", err)
	}

	if err := json.Unmarshal([]byte(sageJSON), &st.SageMessages); err != nil {
		return agentstate.AgentState{}, fmt.Errorf("unmarshal sage messages: %w", err)
	}
	if summaryText != "" {
		var summary agentstate.Summary
		if err := json.Unmarshal([]byte(summaryText), &summary); err != nil {
			return agentstate.AgentState{}, fmt.Errorf("unmarshal summary: %w", err)
		}
		st.Summary = &summary
	}
	st.AgentMode = session.AgentMode(agentMode)
	return st, nil
}

func (s *AgentStateStore) Save(ctx context.Context, st agentstate.AgentState) error {
	sageJSON, err := json.Marshal(st.SageMessages)
	if err != nil {
		return fmt.Errorf("save agent state: marshal sage messages: %w", err)
	}

	var summaryText string
	if st.Summary != nil {
		b, err := json.Marshal(st.Summary)
		if err != nil {
			return fmt.Errorf("save agent state: marshal summary: %w", err)
		}
		summaryText = string(b)
	}

	if st.UpdatedAt == 0 {
		st.UpdatedAt = time.Now().Unix()
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO agent_state (session_id, sage_messages, summary, plan_file_path, agent_mode, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			sage_messages = excluded.sage_messages,
			summary = excluded.summary,
			plan_file_path = excluded.plan_file_path,
			agent_mode = excluded.agent_mode,
			updated_at = excluded.updated_at
	`), st.SessionID, string(sageJSON), summaryText, st.PlanFilePath, string(st.AgentMode), st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save agent state: %w", err)
	}

	s.hub.publish(pubsub.NewUpdatedEvent(st))
	return nil
}

func (s *AgentStateStore) Subscribe(ctx context.Context) <-chan pubsub.Event[agentstate.AgentState] {
	return s.hub.subscribe(ctx)
}
