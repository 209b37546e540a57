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

	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/pubsub"
	"github.com/stratuscode/orchestrator/internal/streamstate"
)

// StreamingStateStore implements streamstate.Store. Every mutator reads,
// modifies, and rewrites the one row for a session inside a transaction;
// a row missing underneath a mutation (a race with a concurrent purge, or
// a stale subscriber outliving Finish) is a no-op rather than an error,
// per the interface's documented contract.
type StreamingStateStore struct {
	db     *sql.DB
	driver Driver
	hub    *hub[streamstate.StreamingState]
}

func NewStreamingStateStore(db *sql.DB, driver Driver) *StreamingStateStore {
	return &StreamingStateStore{db: db, driver: driver, hub: newHub[streamstate.StreamingState]()}
}

func (s *StreamingStateStore) q(query string) string { return rebind(s.driver, query) }

func (s *StreamingStateStore) Get(ctx context.Context, sessionID string) (streamstate.StreamingState, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT session_id, content, reasoning, tool_calls, parts,
		       pending_question, pending_answer, stage, is_streaming, updated_at
		FROM streaming_state WHERE session_id = ?
	`), sessionID)

	st, err := scanStreamingState(row)
	if err == sql.ErrNoRows {
		return streamstate.StreamingState{}, fmt.Errorf("streaming state for session %s not found", sessionID)
	}
	if err != nil {
		return streamstate.StreamingState{}, fmt.Errorf("get streaming state: %w", err)
	}
	return st, nil
}

func (s *StreamingStateStore) Start(ctx context.Context, sessionID string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO streaming_state (
			session_id, content, reasoning, tool_calls, parts,
			pending_question, pending_answer, stage, is_streaming, updated_at
		) VALUES (?, '', '', '[]', '[]', '', '', '', 1, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			content = '', reasoning = '', tool_calls = '[]', parts = '[]',
			pending_question = '', pending_answer = '', stage = '', is_streaming = 1, updated_at = excluded.updated_at
	`), sessionID, now)
	if err != nil {
		return fmt.Errorf("start streaming state: %w", err)
	}

	if st, getErr := s.Get(ctx, sessionID); getErr == nil {
		s.hub.publish(pubsub.NewCreatedEvent(st))
	}
	return nil
}

func (s *StreamingStateStore) AppendToken(ctx context.Context, sessionID, text string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.Content += text
		st.Parts = appendOrMergeTextPart(st.Parts, message.PartText, text)
	})
}

func (s *StreamingStateStore) AppendReasoning(ctx context.Context, sessionID, text string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.Reasoning += text
		st.Parts = appendOrMergeTextPart(st.Parts, message.PartReasoning, text)
	})
}

func (s *StreamingStateStore) AddToolCall(ctx context.Context, sessionID, toolCallID, name, args string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.ToolCalls = append(st.ToolCalls, streamstate.ToolCall{
			ID: toolCallID, Name: name, Args: args, Status: message.ToolCallRunning,
		})
		st.Parts = append(st.Parts, message.NewToolCallPart(toolCallID, name, args))
	})
}

func (s *StreamingStateStore) UpdateToolResult(ctx context.Context, sessionID, toolCallID, result string) error {
	truncated := streamstate.TruncateResult(result)
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		for i := range st.ToolCalls {
			if st.ToolCalls[i].ID == toolCallID {
				st.ToolCalls[i].Result = truncated
				st.ToolCalls[i].Status = message.ToolCallCompleted
			}
		}
		for i := range st.Parts {
			if st.Parts[i].Kind == message.PartToolCall && st.Parts[i].ToolCallID == toolCallID {
				st.Parts[i].ToolResult = truncated
				st.Parts[i].ToolStatus = message.ToolCallCompleted
			}
		}
	})
}

func (s *StreamingStateStore) SetQuestion(ctx context.Context, sessionID, questionJSON string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.PendingQuestion = questionJSON
		st.PendingAnswer = ""
	})
}

func (s *StreamingStateStore) AnswerQuestion(ctx context.Context, sessionID, answerJSON string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.PendingAnswer = answerJSON
	})
}

func (s *StreamingStateStore) ClearQuestion(ctx context.Context, sessionID string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.PendingQuestion = ""
		st.PendingAnswer = ""
	})
}

func (s *StreamingStateStore) Finish(ctx context.Context, sessionID string) error {
	return s.mutate(ctx, sessionID, func(st *streamstate.StreamingState) {
		st.IsStreaming = false
	})
}

func (s *StreamingStateStore) Subscribe(ctx context.Context) <-chan pubsub.Event[streamstate.StreamingState] {
	return s.hub.subscribe(ctx)
}

// mutate loads the row, applies fn, and rewrites it inside one
// transaction. A missing row is a silent no-op: the interface contract
// requires mutations to tolerate a purge or a stale subscriber racing the
// write, and every call site already treats absence as "nothing to do."
func (s *StreamingStateStore) mutate(ctx context.Context, sessionID string, fn func(*streamstate.StreamingState)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update streaming state: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, s.q(`
		SELECT session_id, content, reasoning, tool_calls, parts,
		       pending_question, pending_answer, stage, is_streaming, updated_at
		FROM streaming_state WHERE session_id = ?
	`), sessionID)

	st, err := scanStreamingState(row)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update streaming state: %w", err)
	}

	fn(&st)
	st.UpdatedAt = time.Now().Unix()

	toolCallsJSON, err := json.Marshal(st.ToolCalls)
	if err != nil {
		return fmt.Errorf("update streaming state: marshal tool calls: %w", err)
	}
	partsJSON, err := json.Marshal(st.Parts)
	if err != nil {
		return fmt.Errorf("update streaming state: marshal parts: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		UPDATE streaming_state SET
			content = ?, reasoning = ?, tool_calls = ?, parts = ?,
			pending_question = ?, pending_answer = ?, stage = ?, is_streaming = ?, updated_at = ?
		WHERE session_id = ?
	`),
		st.Content, st.Reasoning, string(toolCallsJSON), string(partsJSON),
		st.PendingQuestion, st.PendingAnswer, string(st.Stage), boolToInt(st.IsStreaming), st.UpdatedAt,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("update streaming state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update streaming state: %w", err)
	}

	s.hub.publish(pubsub.NewUpdatedEvent(st))
	return nil
}

func scanStreamingState(row scannable) (streamstate.StreamingState, error) {
	var st streamstate.StreamingState
	var toolCallsJSON, partsJSON, stage string
	var isStreaming int

	err := row.Scan(
		&st.SessionID, &st.Content, &st.Reasoning, &toolCallsJSON, &partsJSON,
		&st.PendingQuestion, &st.PendingAnswer, &stage, &isStreaming, &st.UpdatedAt,
	)
	if err != nil {
		return streamstate.StreamingState{}, err
	}

	if err := json.Unmarshal([]byte(toolCallsJSON), &st.ToolCalls); err != nil {
		return streamstate.StreamingState{}, fmt.Errorf("unmarshal tool calls: %w", err)
	}
	if err := json.Unmarshal([]byte(partsJSON), &st.Parts); err != nil {
		return streamstate.StreamingState{}, fmt.Errorf("unmarshal parts: %w", err)
	}
	st.Stage = streamstate.Stage(stage)
	st.IsStreaming = isStreaming != 0
	return st, nil
}

// appendOrMergeTextPart extends the trailing part when it's already the
// same kind (coalescing a token-by-token stream into one growing part,
// matching the in-process turnProgress accumulator the orchestrator keeps
// for the same reason), appending a fresh part otherwise.
func appendOrMergeTextPart(parts []message.Part, kind message.PartKind, text string) []message.Part {
	if n := len(parts); n > 0 && parts[n-1].Kind == kind {
		parts[n-1].Text += text
		return parts
	}
	return append(parts, message.Part{Kind: kind, Text: text})
}
