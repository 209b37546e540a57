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
package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/stratuscode/orchestrator/internal/config"
	storesql "github.com/stratuscode/orchestrator/internal/store/sql"
	"github.com/stratuscode/orchestrator/internal/store/sqlite"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the storage backend's schema migrations",
	Long: `migrate opens the configured storage backend directly and runs
its migrations, without starting the HTTP server. With --down N (N > 0)
it rolls back N steps instead of migrating up; without --down (default
0) it migrates up.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDownSteps, "down", 0, "roll back N migrations instead of migrating up")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var (
		db     *sql.DB
		driver storesql.Driver
	)
	switch cfg.Storage.Backend {
	case "", "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = "stratuscode.db"
		}
		db, err = sqlite.Open(path)
		driver = storesql.DriverSQLite
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires storage.postgres_dsn")
		}
		db, err = sql.Open("postgres", cfg.Storage.PostgresDSN)
		driver = storesql.DriverPostgres
	default:
		return fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer db.Close()

	migrator, err := storesql.NewMigrator(db, driver, observability.NewNoOpTracer())
	if err != nil {
		return fmt.Errorf("prepare migrator: %w", err)
	}

	ctx := context.Background()
	if migrateDownSteps > 0 {
		if err := migrator.MigrateDown(ctx, migrateDownSteps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Printf("rolled back %d migration(s)\n", migrateDownSteps)
		return nil
	}

	if err := migrator.MigrateUp(ctx); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, err := migrator.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("read current version: %w", err)
	}
	fmt.Printf("migrated up to version %d\n", version)
	return nil
}
