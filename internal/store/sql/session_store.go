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
	"github.com/stratuscode/orchestrator/internal/session"
)

// SessionStore implements session.Store against a *sql.DB shared with the
// other four stores. Every query is written against `?` and rebound for
// the configured driver before being sent to the database.
type SessionStore struct {
	db     *sql.DB
	driver Driver
	hub    *hub[session.Session]
}

// NewSessionStore wraps db for driver, a dialect-aware store with no
// in-memory state of its own beyond the subscriber fan-out hub.
func NewSessionStore(db *sql.DB, driver Driver) *SessionStore {
	return &SessionStore{db: db, driver: driver, hub: newHub[session.Session]()}
}

func (s *SessionStore) q(query string) string { return rebind(s.driver, query) }

func (s *SessionStore) Create(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO sessions (
			id, user_id, owner, repo, branch, session_branch, agent, model, status,
			sandbox_id, snapshot_id, title, title_generated, last_message,
			cancel_requested, has_changes, error_message,
			token_usage_input, token_usage_output, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		sess.ID, sess.UserID, sess.Owner, sess.Repo, sess.Branch, sess.SessionBranch,
		string(sess.Agent), sess.Model, string(sess.Status),
		sess.SandboxID, sess.SnapshotID, sess.Title, boolToInt(sess.TitleGenerated), sess.LastMessage,
		boolToInt(sess.CancelRequested), boolToInt(sess.HasChanges), sess.ErrorMessage,
		sess.TokenUsage.Input, sess.TokenUsage.Output, sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(),
	)
	if err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.hub.publish(pubsub.NewCreatedEvent(sess))
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, owner, repo, branch, session_branch, agent, model, status,
		       sandbox_id, snapshot_id, title, title_generated, last_message,
		       cancel_requested, has_changes, error_message,
		       token_usage_input, token_usage_output, created_at, updated_at
		FROM sessions WHERE id = ?
	`), id)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return session.Session{}, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) List(ctx context.Context, userID string) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, owner, repo, branch, session_branch, agent, model, status,
		       sandbox_id, snapshot_id, title, title_generated, last_message,
		       cancel_requested, has_changes, error_message,
		       token_usage_input, token_usage_output, created_at, updated_at
		FROM sessions WHERE user_id = ? ORDER BY updated_at DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SessionStore) Update(ctx context.Context, sess session.Session) error {
	sess.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE sessions SET
			owner = ?, repo = ?, branch = ?, session_branch = ?, agent = ?, model = ?, status = ?,
			sandbox_id = ?, snapshot_id = ?, title = ?, title_generated = ?, last_message = ?,
			cancel_requested = ?, has_changes = ?, error_message = ?,
			token_usage_input = ?, token_usage_output = ?, updated_at = ?
		WHERE id = ?
	`),
		sess.Owner, sess.Repo, sess.Branch, sess.SessionBranch, string(sess.Agent), sess.Model, string(sess.Status),
		sess.SandboxID, sess.SnapshotID, sess.Title, boolToInt(sess.TitleGenerated), sess.LastMessage,
		boolToInt(sess.CancelRequested), boolToInt(sess.HasChanges), sess.ErrorMessage,
		sess.TokenUsage.Input, sess.TokenUsage.Output, sess.UpdatedAt.Unix(), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", sess.ID)
	}

	s.hub.publish(pubsub.NewUpdatedEvent(sess))
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.hub.publish(pubsub.NewDeletedEvent(session.Session{ID: id}))
	return nil
}

// PrepareSend clears CancelRequested, sets Status=running, and seeds a
// placeholder Title the first time a message is sent, all in one
// statement so a concurrent reader never observes a half-applied state.
func (s *SessionStore) PrepareSend(ctx context.Context, id string, messagePreview string) (session.Session, error) {
	preview := session.TruncatedPreview(messagePreview, 200)
	now := time.Now()

	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE sessions SET
			status = ?,
			cancel_requested = 0,
			last_message = ?,
			title = CASE WHEN title_generated = 0 AND title = '' THEN ? ELSE title END,
			updated_at = ?
		WHERE id = ?
	`), string(session.StatusRunning), preview, session.TruncatedPreview(messagePreview, 60), now.Unix(), id)
	if err != nil {
		return session.Session{}, fmt.Errorf("prepare send: %w", err)
	}

	sess, err := s.Get(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	s.hub.publish(pubsub.NewUpdatedEvent(sess))
	return sess, nil
}

func (s *SessionStore) MarkHasChanges(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE sessions SET has_changes = 1, updated_at = ? WHERE id = ?`),
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("mark has changes: %w", err)
	}
	if sess, getErr := s.Get(ctx, id); getErr == nil {
		s.hub.publish(pubsub.NewUpdatedEvent(sess))
	}
	return nil
}

func (s *SessionStore) SetCancelRequested(ctx context.Context, id string, cancel bool) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE sessions SET cancel_requested = ?, updated_at = ? WHERE id = ?`),
		boolToInt(cancel), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("set cancel requested: %w", err)
	}
	if sess, getErr := s.Get(ctx, id); getErr == nil {
		s.hub.publish(pubsub.NewUpdatedEvent(sess))
	}
	return nil
}

// ListStale joins against streaming_state so the sweeper can find
// Status=running sessions whose stream hasn't moved recently without a
// full table scan: both columns used in the predicate (status and the
// streaming_state primary key/session_id) are indexed.
func (s *SessionStore) ListStale(ctx context.Context, olderThan time.Time) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT se.id, se.user_id, se.owner, se.repo, se.branch, se.session_branch, se.agent, se.model, se.status,
		       se.sandbox_id, se.snapshot_id, se.title, se.title_generated, se.last_message,
		       se.cancel_requested, se.has_changes, se.error_message,
		       se.token_usage_input, se.token_usage_output, se.created_at, se.updated_at
		FROM sessions se
		LEFT JOIN streaming_state ss ON ss.session_id = se.id
		WHERE se.status = ? AND (ss.updated_at IS NULL OR ss.updated_at < ?)
	`), string(session.StatusRunning), olderThan.Unix())
	if err != nil {
		return nil, fmt.Errorf("list stale sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// PurgeSessionData cascades the delete across every table keyed by
// session_id; the caller is responsible for stopping any live sandbox
// first, since this store has no knowledge of sandbox.Manager.
func (s *SessionStore) PurgeSessionData(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("purge session data: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM todos WHERE session_id = ?`,
		`DELETE FROM agent_state WHERE session_id = ?`,
		`DELETE FROM streaming_state WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.q(stmt), id); err != nil {
			return fmt.Errorf("purge session data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("purge session data: %w", err)
	}

	s.hub.publish(pubsub.NewDeletedEvent(session.Session{ID: id}))
	return nil
}

func (s *SessionStore) Subscribe(ctx context.Context) <-chan pubsub.Event[session.Session] {
	return s.hub.subscribe(ctx)
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scannable) (session.Session, error) {
	var sess session.Session
	var agent, status string
	var titleGenerated, cancelRequested, hasChanges int
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Owner, &sess.Repo, &sess.Branch, &sess.SessionBranch,
		&agent, &sess.Model, &status,
		&sess.SandboxID, &sess.SnapshotID, &sess.Title, &titleGenerated, &sess.LastMessage,
		&cancelRequested, &hasChanges, &sess.ErrorMessage,
		&sess.TokenUsage.Input, &sess.TokenUsage.Output, &createdAt, &updatedAt,
	)
	if err != nil {
		return session.Session{}, err
	}

	sess.Agent = session.AgentMode(agent)
	sess.Status = session.Status(status)
	sess.TitleGenerated = titleGenerated != 0
	sess.CancelRequested = cancelRequested != 0
	sess.HasChanges = hasChanges != 0
	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
