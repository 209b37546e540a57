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

// Package sandbox manages the isolated execution environment bound to a
// session's git working tree: acquiring one (resume-from-snapshot →
// reconnect-by-id → fresh clone), running commands in it, snapshotting it
// back to durable storage, and stopping it.
package sandbox

import (
	"context"
	"errors"
	"fmt"
)

// Result is the outcome of running a command in a sandbox.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs int64
}

// GoneError is returned by a Provider when the sandbox id it was asked to
// use no longer exists remotely (HTTP 410 Gone or equivalent) — it has
// been reaped, expired, or evicted since it was acquired.
type GoneError struct {
	SandboxID string
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("sandbox %q is gone", e.SandboxID)
}

// IsGone reports whether err is a GoneError.
func IsGone(err error) bool {
	var g *GoneError
	return errors.As(err, &g)
}

// Provider is the remote sandbox contract this package is built against.
// A production deployment supplies a Docker-backed implementation
// (see NewDockerProvider); tests use an in-memory fake.
type Provider interface {
	// Create provisions a fresh sandbox cloning repo at branch into a git
	// working tree, returning its id.
	Create(ctx context.Context, owner, repo, branch string) (sandboxID string, err error)

	// Get reconnects to an existing sandbox by id. Returns a *GoneError if
	// it no longer exists.
	Get(ctx context.Context, sandboxID string) error

	// RunCommand runs argv inside the sandbox's working tree. Returns a
	// *GoneError if the sandbox has disappeared mid-call.
	RunCommand(ctx context.Context, sandboxID string, argv []string, workingDir string, env map[string]string) (Result, error)

	// Snapshot captures the sandbox's git working tree to durable storage
	// and stops the sandbox, returning a snapshot id that Resume can
	// later restore from.
	Snapshot(ctx context.Context, sandboxID string) (snapshotID string, err error)

	// Resume restores a sandbox from a previously taken snapshot,
	// returning a new sandbox id.
	Resume(ctx context.Context, snapshotID string) (sandboxID string, err error)

	// Stop tears down a sandbox without snapshotting it (used when a
	// turn ends with no changes worth preserving, or on purge).
	Stop(ctx context.Context, sandboxID string) error
}

// Handle identifies which execution environment a session is currently
// bound to. Per the Session invariant, exactly one of SandboxID/SnapshotID
// is non-empty at rest.
type Handle struct {
	SandboxID  string
	SnapshotID string
}

// Manager acquires and releases sandboxes on behalf of the orchestrator,
// and wraps command execution with the single-retry-on-Gone recovery the
// spec requires.
type Manager struct {
	provider Provider
}

// NewManager builds a Manager over the given Provider.
func NewManager(provider Provider) *Manager {
	return &Manager{provider: provider}
}

// Acquire returns a usable sandbox id for a session, trying in order:
// resume from snapshot, reconnect by existing sandbox id, fresh clone.
// Exactly one of h.SandboxID/h.SnapshotID should be set on entry (or
// neither, for a session's first turn).
func (m *Manager) Acquire(ctx context.Context, h Handle, owner, repo, branch string) (string, error) {
	if h.SnapshotID != "" {
		sandboxID, err := m.provider.Resume(ctx, h.SnapshotID)
		if err == nil {
			return sandboxID, nil
		}
		// Fall through to a fresh clone: a snapshot that fails to resume
		// (expired, corrupted, evicted) is not itself recoverable by
		// retrying resume.
	}
	if h.SandboxID != "" {
		if err := m.provider.Get(ctx, h.SandboxID); err == nil {
			return h.SandboxID, nil
		}
		// Gone or otherwise unreachable: fall through to a fresh clone.
	}
	return m.provider.Create(ctx, owner, repo, branch)
}

// Release snapshots the sandbox, returning the new snapshot id. Per the
// Session invariant, the caller must clear SandboxID and persist
// SnapshotID in the same update.
func (m *Manager) Release(ctx context.Context, sandboxID string) (string, error) {
	return m.provider.Snapshot(ctx, sandboxID)
}

// Stop tears down a sandbox without snapshotting (e.g. a cancelled turn
// with no changes, or session purge).
func (m *Manager) Stop(ctx context.Context, sandboxID string) error {
	return m.provider.Stop(ctx, sandboxID)
}

// SafeExec runs argv in the sandbox, and on a single Gone response
// reacquires a sandbox for the same repo/branch and retries exactly once
// more before giving up. This is deliberately NOT implemented as a
// recursive call to SafeExec: the retry calls the provider directly, so
// a second consecutive Gone surfaces as a terminal error instead of
// looping indefinitely.
func (m *Manager) SafeExec(ctx context.Context, sandboxID, owner, repo, branch string, argv []string, workingDir string, env map[string]string) (Result, string, error) {
	result, err := m.provider.RunCommand(ctx, sandboxID, argv, workingDir, env)
	if err == nil {
		return result, sandboxID, nil
	}
	if !IsGone(err) {
		return Result{}, sandboxID, err
	}

	newSandboxID, acqErr := m.Acquire(ctx, Handle{}, owner, repo, branch)
	if acqErr != nil {
		return Result{}, sandboxID, fmt.Errorf("sandbox gone and reacquire failed: %w", acqErr)
	}

	result, err = m.provider.RunCommand(ctx, newSandboxID, argv, workingDir, env)
	if err != nil {
		return Result{}, newSandboxID, fmt.Errorf("sandbox reacquired but retry failed: %w", err)
	}
	return result, newSandboxID, nil
}
