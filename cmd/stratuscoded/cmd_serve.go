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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/config"
	"github.com/stratuscode/orchestrator/internal/httpserver"
	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/log"
	"github.com/stratuscode/orchestrator/internal/orchestrator"
	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/store/backend"
	"github.com/stratuscode/orchestrator/internal/sweeper"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent turn orchestrator's HTTP/SSE server",
	Long: `Start the orchestrator server.

The server will:
- Load configuration (the allowed/disabled tool lists are read once at
  startup and not re-read while the server runs)
- Open the configured storage backend and run pending migrations
- Acquire sandboxes against the configured Docker host
- Serve the REST+SSE API clients send turns and watch live progress over
- Run the periodic abandoned-session sweep in the background

Press Ctrl+C to gracefully shut down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, cfg, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	tracer := observability.NewNoOpTracer()

	ctx := context.Background()

	stores, err := backend.Open(ctx, cfg.StorageBackendConfig(tracer))
	if err != nil {
		return fmt.Errorf("open storage backend: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("storage backend close failed", zap.Error(err))
		}
	}()

	sandboxCfg := cfg.SandboxProviderConfig()
	sandboxCfg.Logger = logger
	sandboxCfg.Tracer = tracer
	dockerProvider, err := sandbox.NewDockerProvider(ctx, sandboxCfg)
	if err != nil {
		return fmt.Errorf("start docker sandbox provider: %w", err)
	}
	defer func() {
		if err := dockerProvider.Close(); err != nil {
			logger.Warn("docker provider close failed", zap.Error(err))
		}
	}()
	sandboxMgr := sandbox.NewManager(dockerProvider)

	codexTokens := llmrouter.NewCodexTokenCache(ctx, cfg.LLMRouterConfig().Codex)

	policy := mgr.Current()
	orch := orchestrator.New(orchestrator.Deps{
		Sessions:      stores.Sessions,
		Streams:       stores.Streams,
		Todos:         stores.Todos,
		AgentStates:   stores.AgentStates,
		Messages:      stores.Messages,
		SandboxMgr:    sandboxMgr,
		HTTPClient:    http.DefaultClient,
		LLMConfig:     cfg.LLMRouterConfig(),
		BedrockCreds:  cfg.BedrockCredentials(),
		CodexTokens:   codexTokens,
		GitHubToken:   cfg.GitHub.Token,
		AllowedTools:  policy.AllowedTools,
		DisabledTools: policy.DisabledTools,
	})

	srv := httpserver.New(httpserver.Deps{
		Sessions:     stores.Sessions,
		Messages:     stores.Messages,
		Todos:        stores.Todos,
		AgentStates:  stores.AgentStates,
		Streams:      stores.Streams,
		Orchestrator: orch,
		Tracer:       tracer,
	})

	schedule, staleThreshold := cfg.SweeperSchedule()
	sweep, err := sweeper.New(sweeper.Config{
		Sessions:       stores.Sessions,
		Schedule:       schedule,
		StaleThreshold: staleThreshold,
		Logger:         logger,
		Tracer:         tracer,
	})
	if err != nil {
		return fmt.Errorf("build sweeper: %w", err)
	}
	if err := sweep.Start(ctx); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}

	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("server listening", zap.String("address", cfg.Server.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	logger.Info("shutting down gracefully... (press Ctrl+C again to force)")

	go func() {
		<-sigch
		logger.Warn("force shutdown requested")
		os.Exit(1)
	}()

	srv.Shutdown()
	sweep.Stop(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}

	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err == nil {
		zapCfg.Level = level
	}

	return zapCfg.Build()
}
