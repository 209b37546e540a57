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

// Package backend is the storage factory: it picks SQLite (the default)
// or Postgres (opt-in) per configuration, opens the right *sql.DB, runs
// the shared migrations, and wires up the five stores internal/orchestrator
// depends on.
package backend

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // registers "postgres"

	"github.com/stratuscode/orchestrator/internal/agentstate"
	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/session"
	storesql "github.com/stratuscode/orchestrator/internal/store/sql"
	"github.com/stratuscode/orchestrator/internal/store/sqlite"
	"github.com/stratuscode/orchestrator/internal/streamstate"
	"github.com/stratuscode/orchestrator/internal/todo"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

// Type names the two supported backends.
type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
)

// Config selects and parameterizes a backend. The zero value is SQLite
// against "stratuscode.db" in the current directory, matching the
// product's own zero-config default.
type Config struct {
	Backend Type

	// SQLitePath is the database file path (or ":memory:") used when
	// Backend is TypeSQLite or unset.
	SQLitePath string

	// PostgresDSN is a lib/pq connection string, required when Backend
	// is TypePostgres.
	PostgresDSN string

	Tracer observability.Tracer
}

// Stores bundles the five persistence contracts internal/orchestrator
// depends on, plus the close function the caller must defer.
type Stores struct {
	Sessions    session.Store
	Messages    message.Store
	Todos       todo.Store
	AgentStates agentstate.Store
	Streams     streamstate.Store

	DB    *sql.DB
	Close func() error
}

// Open builds the configured backend: opens the database, migrates it to
// the latest schema, and returns the five stores ready for use.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	if cfg.Backend == "" {
		cfg.Backend = TypeSQLite
	}

	var (
		db     *sql.DB
		driver storesql.Driver
		err    error
	)

	switch cfg.Backend {
	case TypeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "stratuscode.db"
		}
		db, err = sqlite.Open(path)
		driver = storesql.DriverSQLite

	case TypePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a PostgresDSN")
		}
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		driver = storesql.DriverPostgres

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}

	migrator, err := storesql.NewMigrator(db, driver, cfg.Tracer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare migrator: %w", err)
	}
	if err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate storage backend: %w", err)
	}

	return &Stores{
		Sessions:    storesql.NewSessionStore(db, driver),
		Messages:    storesql.NewMessageStore(db, driver),
		Todos:       storesql.NewTodoStore(db, driver),
		AgentStates: storesql.NewAgentStateStore(db, driver),
		Streams:     storesql.NewStreamingStateStore(db, driver),
		DB:          db,
		Close:       db.Close,
	}, nil
}
