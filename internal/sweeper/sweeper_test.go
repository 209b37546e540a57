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

package sweeper

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/stratuscode/orchestrator/internal/sqlitedriver"

	"github.com/stratuscode/orchestrator/internal/session"
	storesql "github.com/stratuscode/orchestrator/internal/store/sql"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db")+"?_fk=1&_journal_mode=WAL")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := storesql.NewMigrator(db, storesql.DriverSQLite, observability.NewNoOpTracer())
	require.NoError(t, err)
	require.NoError(t, migrator.MigrateUp(context.Background()))
	return db
}

func TestSweepResetsOnlyStaleRunningSessions(t *testing.T) {
	db := newTestDB(t)
	sessions := storesql.NewSessionStore(db, storesql.DriverSQLite)
	streams := storesql.NewStreamingStateStore(db, storesql.DriverSQLite)
	ctx := context.Background()

	stale, err := sessions.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusRunning,
	})
	require.NoError(t, err)
	require.NoError(t, streams.Start(ctx, stale.ID))
	_, err = db.ExecContext(ctx, "UPDATE streaming_state SET updated_at = ? WHERE session_id = ?",
		time.Now().Add(-10*time.Minute).Unix(), stale.ID)
	require.NoError(t, err)

	fresh, err := sessions.Create(ctx, session.Session{
		UserID: "u1", Owner: "acme", Repo: "widgets", Branch: "main",
		Agent: session.ModeBuild, Model: "claude", Status: session.StatusRunning,
	})
	require.NoError(t, err)
	require.NoError(t, streams.Start(ctx, fresh.ID))

	sw, err := New(Config{Sessions: sessions, StaleThreshold: 5 * time.Minute})
	require.NoError(t, err)
	require.NoError(t, sw.Sweep(ctx))

	got, err := sessions.Get(ctx, stale.ID)
	require.NoError(t, err)
	require.Equal(t, session.StatusError, got.Status)
	require.Equal(t, "task abandoned", got.ErrorMessage)

	got, err = sessions.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, session.StatusRunning, got.Status)
}

func TestNewRejectsMissingStore(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	db := newTestDB(t)
	sessions := storesql.NewSessionStore(db, storesql.DriverSQLite)

	sw, err := New(Config{Sessions: sessions})
	require.NoError(t, err)
	require.Equal(t, DefaultSchedule, sw.cfg.Schedule)
	require.Equal(t, DefaultStaleThreshold, sw.cfg.StaleThreshold)
}
