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

// Package sqlite is the default storage backend's SQLite front-end: it
// opens the database file with the driver registered by
// internal/sqlitedriver and sets the pragmas every store in
// internal/store/sql relies on, then hands the *sql.DB off to that
// package's driver-agnostic store implementations.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/stratuscode/orchestrator/internal/sqlitedriver" // registers "sqlite3"
)

// Open opens path (or an in-memory database for ":memory:") under the
// "sqlite3" driver and applies the pragmas the store layer needs: WAL so
// readers don't block the single writer a turn's worth of mutations
// produces, and a busy_timeout so a second writer waits instead of
// immediately failing with SQLITE_BUSY under the orchestrator's own
// concurrent session load.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	return db, nil
}
