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

// Package todo holds the per-session task list the agent maintains with
// the todoread/todowrite tools.
package todo

import (
	"context"
	"errors"
	"fmt"

	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// Status is a Todo's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Priority is an optional hint; the agent and clients are free to ignore
// it, it never gates a write.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Todo is one task in a session's list.
type Todo struct {
	ID        string
	SessionID string
	Content   string
	Status    Status
	Priority  Priority
	CreatedAt int64
}

// ErrMultipleInProgress is returned by WriteAll when the proposed list
// names more than one in_progress todo.
var ErrMultipleInProgress = errors.New("todo: at most one todo may be in_progress")

// Validate checks the single-in_progress invariant across a whole list,
// the way WriteAll must before persisting it.
func Validate(todos []Todo) error {
	inProgress := 0
	for _, t := range todos {
		if t.Status == StatusInProgress {
			inProgress++
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("%w: found %d", ErrMultipleInProgress, inProgress)
	}
	return nil
}

// Store is the durable persistence contract for todo lists. Writes are
// replace-all: WriteAll discards the session's prior list and persists the
// given one as a unit, assigning IDs and CreatedAt to any Todo arriving
// without one so a client can resend a list it just read back unchanged.
type Store interface {
	List(ctx context.Context, sessionID string) ([]Todo, error)

	// WriteAll replaces the session's entire todo list atomically. It
	// rejects the write (without persisting anything) if the proposed
	// list would leave more than one todo in_progress.
	WriteAll(ctx context.Context, sessionID string, todos []Todo) ([]Todo, error)

	Subscribe(ctx context.Context) <-chan pubsub.Event[[]Todo]
}
