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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/stratuscode/orchestrator/internal/sqlitedriver"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(dir, "test.db")+"?_fk=1&_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := NewMigrator(db, DriverSQLite, observability.NewNoOpTracer())
	require.NoError(t, err)
	require.NoError(t, migrator.MigrateUp(context.Background()))

	return db
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	migrator, err := NewMigrator(db, DriverSQLite, observability.NewNoOpTracer())
	require.NoError(t, err)

	require.NoError(t, migrator.MigrateUp(context.Background()))

	version, err := migrator.CurrentVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, version)

	pending, err := migrator.PendingMigrations(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSessionStoreCreateGetUpdate(t *testing.T) {
	db := newTestDB(t)
	store := NewSessionStore(db, DriverSQLite)
	ctx := context.Background()

	created, err := store.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusIdle,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, session.StatusIdle, got.Status)

	got.Status = session.StatusRunning
	got.HasChanges = true
	require.NoError(t, store.Update(ctx, got))

	refetched, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, session.StatusRunning, refetched.Status)
	require.True(t, refetched.HasChanges)
}

func TestSessionStorePrepareSendSeedsTitleOnce(t *testing.T) {
	db := newTestDB(t)
	store := NewSessionStore(db, DriverSQLite)
	ctx := context.Background()

	created, err := store.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusIdle,
	})
	require.NoError(t, err)

	sess, err := store.PrepareSend(ctx, created.ID, "please fix the flaky test")
	require.NoError(t, err)
	require.Equal(t, session.StatusRunning, sess.Status)
	require.False(t, sess.CancelRequested)
	require.NotEmpty(t, sess.Title)

	firstTitle := sess.Title
	sess, err = store.PrepareSend(ctx, created.ID, "a second message")
	require.NoError(t, err)
	require.Equal(t, firstTitle, sess.Title, "PrepareSend must not overwrite an already-seeded title")
}

func TestSessionStoreListStaleUsesStreamingStateAge(t *testing.T) {
	db := newTestDB(t)
	sessions := NewSessionStore(db, DriverSQLite)
	streams := NewStreamingStateStore(db, DriverSQLite)
	ctx := context.Background()

	created, err := sessions.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusRunning,
	})
	require.NoError(t, err)
	require.NoError(t, streams.Start(ctx, created.ID))

	// A fresh stream is not stale against any reasonable threshold.
	stale, err := sessions.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Empty(t, stale)

	// Force the streaming_state row's updated_at far into the past to
	// simulate an abandoned turn.
	_, err = db.ExecContext(ctx, "UPDATE streaming_state SET updated_at = ? WHERE session_id = ?",
		time.Now().Add(-10*time.Minute).Unix(), created.ID)
	require.NoError(t, err)

	stale, err = sessions.ListStale(ctx, time.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, created.ID, stale[0].ID)
}

func TestSessionStorePurgeSessionDataCascades(t *testing.T) {
	db := newTestDB(t)
	sessions := NewSessionStore(db, DriverSQLite)
	messages := NewMessageStore(db, DriverSQLite)
	todos := NewTodoStore(db, DriverSQLite)
	ctx := context.Background()

	created, err := sessions.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusIdle,
	})
	require.NoError(t, err)

	_, err = messages.Append(ctx, message.Message{SessionID: created.ID, Role: message.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = todos.WriteAll(ctx, created.ID, []todo.Todo{{Content: "write tests", Status: todo.StatusPending}})
	require.NoError(t, err)

	require.NoError(t, sessions.PurgeSessionData(ctx, created.ID))

	_, err = sessions.Get(ctx, created.ID)
	require.Error(t, err)

	msgs, err := messages.List(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestTodoStoreWriteAllRejectsMultipleInProgress(t *testing.T) {
	db := newTestDB(t)
	store := NewTodoStore(db, DriverSQLite)
	ctx := context.Background()

	_, err := store.WriteAll(ctx, "sess-1", []todo.Todo{
		{Content: "a", Status: todo.StatusInProgress},
		{Content: "b", Status: todo.StatusInProgress},
	})
	require.ErrorIs(t, err, todo.ErrMultipleInProgress)
}

func TestTodoStoreWriteAllPreservesOrder(t *testing.T) {
	db := newTestDB(t)
	store := NewTodoStore(db, DriverSQLite)
	ctx := context.Background()

	written, err := store.WriteAll(ctx, "sess-1", []todo.Todo{
		{Content: "first", Status: todo.StatusPending},
		{Content: "second", Status: todo.StatusInProgress},
		{Content: "third", Status: todo.StatusCompleted},
	})
	require.NoError(t, err)
	require.Len(t, written, 3)

	listed, err := store.List(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, []string{listed[0].Content, listed[1].Content, listed[2].Content})
}

func TestMessageStoreAppendAndList(t *testing.T) {
	db := newTestDB(t)
	store := NewMessageStore(db, DriverSQLite)
	ctx := context.Background()

	_, err := store.Append(ctx, message.Message{
		SessionID: "sess-1", Role: message.RoleUser, Content: "hello",
		Parts: []message.Part{message.NewTextPart("hello")},
	})
	require.NoError(t, err)

	_, err = store.Append(ctx, message.Message{
		SessionID: "sess-1", Role: message.RoleAssistant, Content: "hi there",
		Parts: []message.Part{message.NewTextPart("hi there")},
	})
	require.NoError(t, err)

	msgs, err := store.List(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, message.RoleUser, msgs[0].Role)
	require.Equal(t, "hi there", msgs[1].VisibleText())
}

func TestAgentStateStoreSaveUpserts(t *testing.T) {
	db := newTestDB(t)
	store := NewAgentStateStore(db, DriverSQLite)
	ctx := context.Background()

	st := agentstate.AgentState{
		SessionID:    "sess-1",
		SageMessages: []agentstate.SageMessage{{Role: "user", Content: "hi"}},
		AgentMode:    session.ModeBuild,
	}
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, session.ModeBuild, got.AgentMode)
	require.Len(t, got.SageMessages, 1)

	st.SageMessages = append(st.SageMessages, agentstate.SageMessage{Role: "assistant", Content: "hello"})
	require.NoError(t, store.Save(ctx, st))

	got, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got.SageMessages, 2)
}

func TestStreamingStateStoreLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := NewStreamingStateStore(db, DriverSQLite)
	ctx := context.Background()

	require.NoError(t, store.Start(ctx, "sess-1"))
	require.NoError(t, store.AppendToken(ctx, "sess-1", "Hello"))
	require.NoError(t, store.AppendToken(ctx, "sess-1", ", world"))
	require.NoError(t, store.AddToolCall(ctx, "sess-1", "call-1", "bash", `{"cmd":"ls"}`))
	require.NoError(t, store.UpdateToolResult(ctx, "sess-1", "call-1", "file1\nfile2"))

	st, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "Hello, world", st.Content)
	require.Len(t, st.ToolCalls, 1)
	require.Equal(t, message.ToolCallCompleted, st.ToolCalls[0].Status)
	require.True(t, st.IsStreaming)

	require.NoError(t, store.Finish(ctx, "sess-1"))
	st, err = store.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, st.IsStreaming)
}

func TestStreamingStateStoreMutateNoOpOnMissingRow(t *testing.T) {
	db := newTestDB(t)
	store := NewStreamingStateStore(db, DriverSQLite)
	ctx := context.Background()

	require.NoError(t, store.AppendToken(ctx, "never-started", "ignored"))
	_, err := store.Get(ctx, "never-started")
	require.Error(t, err)
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	db := newTestDB(t)
	store := NewSessionStore(db, DriverSQLite)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := store.Subscribe(ctx)

	_, err := store.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusIdle,
	})
	require.NoError(t, err)

	select {
	case evt := <-events:
		require.Equal(t, "u1", evt.Payload.UserID)
	case <-time.After(time.Second):
		t.Fatal("expected a created event")
	}
}
