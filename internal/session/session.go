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

// Package session holds the durable Session record: one row per chat
// conversation, owning its messages, todos, agent-state, streaming-state,
// and the sandbox/snapshot handle currently bound to it.
package session

import (
	"context"
	"time"

	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// Status is the Session lifecycle state. The only legal transitions are
// idle->running (prepareSend), running->idle (successful/cancelled
// finalize), running->error (error finalize or sweeper), and the
// transient booting state inside a first sandbox acquire.
type Status string

const (
	StatusBooting Status = "booting"
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// AgentMode is the operating mode the LLM is told it's in. Plan mode
// restricts file writes to the plan file and mandates ending a turn with
// either a question or plan_exit; build mode has no such restriction.
type AgentMode string

const (
	ModePlan  AgentMode = "plan"
	ModeBuild AgentMode = "build"
)

// TokenUsage accumulates prompt/completion token counts across the life
// of a session.
type TokenUsage struct {
	Input  int64
	Output int64
}

// Session is one conversation: a GitHub repo, a base branch, a working
// branch cut for the session, and the sandbox/snapshot currently holding
// its git working tree.
//
// Invariants: Status == running implies either an orchestrator task owns
// this session or the sweeper will reset it; CancelRequested is read-only
// within a turn and cleared only by PrepareSend; at rest exactly one of
// SandboxID/SnapshotID is non-empty (taking a snapshot stops the sandbox
// and clears SandboxID).
type Session struct {
	ID        string
	UserID    string
	Owner     string
	Repo      string
	Branch    string // base branch cloned from
	SessionBranch string // working branch, e.g. stratuscode/<id>

	Agent AgentMode
	Model string

	Status Status

	SandboxID  string
	SnapshotID string

	Title          string
	TitleGenerated bool
	LastMessage    string // truncated to 200 chars

	CancelRequested bool
	HasChanges      bool

	ErrorMessage string

	TokenUsage TokenUsage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TruncatedPreview returns s truncated to at most n runes, used both for
// LastMessage and for the placeholder title set by PrepareSend.
func TruncatedPreview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Store is the durable persistence contract for sessions. Implementations
// live in internal/store (sqlite by default, postgres optionally).
type Store interface {
	Create(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	List(ctx context.Context, userID string) ([]Session, error)
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error

	// PrepareSend is the atomic pre-turn transition: clears CancelRequested,
	// sets Status=running, seeds a placeholder Title if none is set yet,
	// and must be called (by the caller, alongside opening the
	// StreamingState and persisting the user Message) before the
	// orchestrator task is scheduled, so subscribers observe the
	// transition immediately.
	PrepareSend(ctx context.Context, id string, messagePreview string) (Session, error)

	// MarkHasChanges idempotently sets HasChanges=true.
	MarkHasChanges(ctx context.Context, id string) error

	// SetCancelRequested is the only cancel signal a client may write.
	SetCancelRequested(ctx context.Context, id string, cancel bool) error

	// ListStale returns sessions with Status=running whose StreamingState
	// has not been updated since the given threshold; used by the
	// sweeper (internal/sweeper).
	ListStale(ctx context.Context, olderThan time.Time) ([]Session, error)

	// PurgeSessionData cascades the delete to Messages, Todos, Agent-State,
	// StreamingState, and any attachments. The caller must stop any live
	// sandbox first.
	PurgeSessionData(ctx context.Context, id string) error

	Subscribe(ctx context.Context) <-chan pubsub.Event[Session]
}
