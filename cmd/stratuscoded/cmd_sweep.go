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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratuscode/orchestrator/internal/config"
	"github.com/stratuscode/orchestrator/internal/store/backend"
	"github.com/stratuscode/orchestrator/internal/sweeper"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

var sweepOnceCmd = &cobra.Command{
	Use:   "sweep-once",
	Short: "Run a single abandoned-session sweep and exit",
	Long: `sweep-once opens the configured storage backend, resets any
session that has been "running" with no StreamingState update past the
configured stale threshold to "error", and exits. Useful for running the
sweep from an external scheduler instead of the server's own background
cron, or for recovering a backend by hand after an outage.`,
	RunE: runSweepOnce,
}

func init() {
	rootCmd.AddCommand(sweepOnceCmd)
}

func runSweepOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tracer := observability.NewNoOpTracer()
	ctx := context.Background()

	stores, err := backend.Open(ctx, cfg.StorageBackendConfig(tracer))
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer stores.Close()

	_, staleThreshold := cfg.SweeperSchedule()
	sweep, err := sweeper.New(sweeper.Config{
		Sessions:       stores.Sessions,
		StaleThreshold: staleThreshold,
		Tracer:         tracer,
	})
	if err != nil {
		return fmt.Errorf("build sweeper: %w", err)
	}

	if err := sweep.Sweep(ctx); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	fmt.Println("sweep complete")
	return nil
}
