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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stratuscode/orchestrator/internal/pubsub"
	"github.com/stratuscode/orchestrator/internal/todo"
)

// TodoStore implements todo.Store. WriteAll replaces a session's entire
// list inside one transaction; a `position` column (not part of the
// in-memory Todo type) records list order, since SQL tables carry no
// inherent row order and a client re-reading the list needs todos back
// in the order it wrote them.
type TodoStore struct {
	db     *sql.DB
	driver Driver
	hub    *hub[[]todo.Todo]
}

func NewTodoStore(db *sql.DB, driver Driver) *TodoStore {
	return &TodoStore{db: db, driver: driver, hub: newHub[[]todo.Todo]()}
}

func (s *TodoStore) q(query string) string { return rebind(s.driver, query) }

func (s *TodoStore) List(ctx context.Context, sessionID string) ([]todo.Todo, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, session_id, content, status, priority, created_at
		FROM todos WHERE session_id = ? ORDER BY position ASC
	`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var out []todo.Todo
	for rows.Next() {
		var t todo.Todo
		var status, priority string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Content, &status, &priority, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		t.Status = todo.Status(status)
		t.Priority = todo.Priority(priority)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TodoStore) WriteAll(ctx context.Context, sessionID string, todos []todo.Todo) ([]todo.Todo, error) {
	if err := todo.Validate(todos); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	out := make([]todo.Todo, len(todos))
	copy(out, todos)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.New().String()
		}
		if out[i].CreatedAt == 0 {
			out[i].CreatedAt = now
		}
		out[i].SessionID = sessionID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("write todos: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM todos WHERE session_id = ?`), sessionID); err != nil {
		return nil, fmt.Errorf("write todos: clear: %w", err)
	}

	insert := s.q(`
		INSERT INTO todos (id, session_id, content, status, priority, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for i, t := range out {
		if _, err := tx.ExecContext(ctx, insert,
			t.ID, t.SessionID, t.Content, string(t.Status), string(t.Priority), i, t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("write todos: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("write todos: %w", err)
	}

	s.hub.publish(pubsub.NewUpdatedEvent(out))
	return out, nil
}

func (s *TodoStore) Subscribe(ctx context.Context) <-chan pubsub.Event[[]todo.Todo] {
	return s.hub.subscribe(ctx)
}
