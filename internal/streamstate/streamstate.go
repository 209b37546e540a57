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

// Package streamstate is the live-stream store: a single mutable row per
// session that mirrors an in-flight turn for subscribed clients. It is an
// ephemeral mirror — the durable record of a finished turn is the
// assistant message written by the orchestrator's finalize step, not this
// row, which the next turn's start simply overwrites.
package streamstate

import (
	"context"
	"fmt"

	"github.com/stratuscode/orchestrator/internal/message"
	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// resultTruncateBytes caps a tool result written into toolCalls, so one
// chatty tool invocation can't blow out the row (and every subscriber's
// payload) with megabytes of stdout.
const resultTruncateBytes = 5 * 1024

// Stage is a coarse progress indicator surfaced to clients while a turn
// is in flight (e.g. "thinking", "running tools"); optional, set by the
// orchestrator, never required for correctness.
type Stage string

// ToolCall is one entry of the ordered tool-call list, independent of the
// parts log so a client that only cares about tool status doesn't have to
// scan the interleaved parts.
type ToolCall struct {
	ID     string
	Name   string
	Args   string
	Result string
	Status message.ToolCallStatus
}

// StreamingState is the per-session live-stream row.
type StreamingState struct {
	SessionID string

	Content   string
	Reasoning string
	ToolCalls []ToolCall
	Parts     []message.Part

	PendingQuestion string // JSON; empty when none outstanding
	PendingAnswer   string // JSON; the public answerQuestion endpoint sets this

	Stage       Stage
	IsStreaming bool

	UpdatedAt int64
}

// Store is the durable persistence contract for streaming state. Every
// mutation bumps UpdatedAt so ListStale (internal/session) and client
// subscriptions can both rely on it; mutations on a session with no row
// (a race with a concurrent purge, or a client resubscribing after finish)
// are no-ops rather than errors, per §4.1.
type Store interface {
	Get(ctx context.Context, sessionID string) (StreamingState, error)

	// Start upserts a fresh row, overwriting any prior one — a session
	// only ever has one StreamingState, and a new turn owns it outright.
	Start(ctx context.Context, sessionID string) error

	AppendToken(ctx context.Context, sessionID, text string) error
	AppendReasoning(ctx context.Context, sessionID, text string) error

	// AddToolCall appends a running tool_call to both ToolCalls and Parts.
	AddToolCall(ctx context.Context, sessionID, toolCallID, name, args string) error

	// UpdateToolResult locates the tool call by id, truncates result to
	// resultTruncateBytes, and marks it completed. A no-op if the id
	// isn't present (e.g. the row was reset by a concurrent Start).
	UpdateToolResult(ctx context.Context, sessionID, toolCallID, result string) error

	SetQuestion(ctx context.Context, sessionID, questionJSON string) error

	// AnswerQuestion is the public endpoint a client calls to unblock the
	// question/plan_exit rendezvous tools' polling loop.
	AnswerQuestion(ctx context.Context, sessionID, answerJSON string) error
	ClearQuestion(ctx context.Context, sessionID string) error

	Finish(ctx context.Context, sessionID string) error

	Subscribe(ctx context.Context) <-chan pubsub.Event[StreamingState]
}

// TruncateResult trims a tool result to the row's byte budget, applied by
// Store implementations before persisting UpdateToolResult.
func TruncateResult(result string) string {
	if len(result) <= resultTruncateBytes {
		return result
	}
	return fmt.Sprintf("%s\n... [truncated %d bytes]", result[:resultTruncateBytes], len(result)-resultTruncateBytes)
}
