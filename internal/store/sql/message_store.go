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

	"github.com/google/uuid"

	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// MessageStore implements message.Store. Messages are append-only: there
// is no Update, matching the immutability invariant the in-memory type
// documents. Parts are stored as a JSON array column rather than a child
// table, since a Message's parts are always read and written as one unit
// and never queried by part kind.
type MessageStore struct {
	db     *sql.DB
	driver Driver
	hub    *hub[message.Message]
}

func NewMessageStore(db *sql.DB, driver Driver) *MessageStore {
	return &MessageStore{db: db, driver: driver, hub: newHub[message.Message]()}
}

func (s *MessageStore) q(query string) string { return rebind(s.driver, query) }

func (s *MessageStore) Append(ctx context.Context, m message.Message) (message.Message, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}

	partsJSON, err := json.Marshal(m.Parts)
	if err != nil {
		return message.Message{}, fmt.Errorf("append message: marshal parts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO messages (id, session_id, role, content, parts, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), m.ID, m.SessionID, string(m.Role), m.Content, string(partsJSON), m.CreatedAt)
	if err != nil {
		return message.Message{}, fmt.Errorf("append message: %w", err)
	}

	s.hub.publish(pubsub.NewCreatedEvent(m))
	return m, nil
}

func (s *MessageStore) List(ctx context.Context, sessionID string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, session_id, role, content, parts, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC
	`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []message.Message
	for rows.Next() {
		var m message.Message
		var role string
		var partsJSON string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &partsJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = message.Role(role)
		if err := json.Unmarshal([]byte(partsJSON), &m.Parts); err != nil {
			return nil, fmt.Errorf("unmarshal message parts: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MessageStore) Subscribe(ctx context.Context) <-chan pubsub.Event[message.Message] {
	return s.hub.subscribe(ctx)
}
