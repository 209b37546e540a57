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

// Package sweeper recovers sessions abandoned mid-turn: a process crash
// or a killed goroutine can leave a session's status at "running" with
// no orchestrator task left to finish it. A cron-scheduled sweep finds
// those sessions by StreamingState staleness and resets them to "error"
// so a client isn't left watching a turn that will never complete.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stratuscode/orchestrator/internal/session"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

// DefaultSchedule matches the product's own "every two minutes" cron
// expression; DefaultStaleThreshold is the StreamingState idle window
// past which a running session is presumed abandoned.
const (
	DefaultSchedule       = "*/2 * * * *"
	DefaultStaleThreshold = 5 * time.Minute
)

// Config parameterizes the sweeper.
type Config struct {
	Sessions session.Store

	// Schedule is a standard five-field cron expression. Empty uses
	// DefaultSchedule.
	Schedule string

	// StaleThreshold is how long a running session's StreamingState can
	// go without an update before the sweeper resets it. Zero uses
	// DefaultStaleThreshold.
	StaleThreshold time.Duration

	Logger *zap.Logger
	Tracer observability.Tracer
}

// Sweeper runs Sweep on a cron schedule until Stop is called.
type Sweeper struct {
	cfg  Config
	cron *cron.Cron
}

// New validates cfg, fills in defaults, and returns a Sweeper ready for
// Start. It does not run anything until Start is called.
func New(cfg Config) (*Sweeper, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("sweeper: Sessions store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoOpTracer()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.StaleThreshold == 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}

	return &Sweeper{cfg: cfg, cron: cron.New()}, nil
}

// Start arms the cron schedule. Sweep errors are logged, never returned,
// since a single bad tick should not stop subsequent ones.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			s.cfg.Logger.Error("sweeper tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("sweeper: invalid schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight tick to finish, then returns.
func (s *Sweeper) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		s.cfg.Logger.Warn("sweeper stop timed out waiting for the in-flight tick")
	}
}

// Sweep runs one pass: find sessions stale past the threshold, reset
// each to status=error, and record one metric/log line per reset so a
// dashboard shows abandoned turns rather than silently mutated rows.
func (s *Sweeper) Sweep(ctx context.Context) error {
	ctx, span := s.cfg.Tracer.StartSpan(ctx, "sweeper.sweep")
	defer s.cfg.Tracer.EndSpan(span)

	threshold := time.Now().Add(-s.cfg.StaleThreshold)
	stale, err := s.cfg.Sessions.ListStale(ctx, threshold)
	if err != nil {
		return fmt.Errorf("list stale sessions: %w", err)
	}

	for _, sess := range stale {
		sess.Status = session.StatusError
		sess.ErrorMessage = "task abandoned"
		if err := s.cfg.Sessions.Update(ctx, sess); err != nil {
			s.cfg.Logger.Error("failed to reset abandoned session",
				zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}

		s.cfg.Logger.Info("reset abandoned session",
			zap.String("session_id", sess.ID),
			zap.String("owner", sess.Owner),
			zap.String("repo", sess.Repo))
		s.cfg.Tracer.RecordMetric("sweeper.sessions_reset", 1, map[string]string{
			"owner": sess.Owner,
		})
	}

	return nil
}
