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

// Package message holds the immutable Message record persisted at the end
// of every turn, and the ordered sum-type Parts that make it up.
package message

import (
	"context"

	"github.com/stratuscode/orchestrator/internal/pubsub"
)

// Role is the sender of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is immutable once written. Messages for a session are totally
// ordered by CreatedAt.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Parts     []Part
	CreatedAt int64
}

// PartKind discriminates the Part sum type.
type PartKind string

const (
	PartText           PartKind = "text"
	PartReasoning      PartKind = "reasoning"
	PartToolCall       PartKind = "tool_call"
	PartSubagentStart  PartKind = "subagent_start"
	PartSubagentEnd    PartKind = "subagent_end"
)

// ToolCallStatus tracks a tool_call Part's lifecycle; "running" only ever
// survives to a persisted Message when the turn was cancelled mid-tool.
type ToolCallStatus string

const (
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
)

// Part is one ordered entry in a Message (or, before finalize, in a
// StreamingState's parts log). Exactly one of the Kind-specific fields
// below is meaningful for a given Kind; this mirrors the source's
// flattened-fields representation (see streamstate package) rather than
// a Go type-switch union, so the same struct can be JSON-round-tripped
// verbatim between StreamingState and the final Message.
type Part struct {
	Kind PartKind

	// PartText / PartReasoning
	Text string

	// PartToolCall
	ToolCallID   string
	ToolName     string
	ToolArgs     string
	ToolResult   string
	ToolStatus   ToolCallStatus

	// PartSubagentStart / PartSubagentEnd
	SubagentID   string
	SubagentName string
}

// NewTextPart builds a text Part.
func NewTextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

// NewReasoningPart builds a reasoning Part.
func NewReasoningPart(text string) Part {
	return Part{Kind: PartReasoning, Text: text}
}

// NewToolCallPart builds a running tool_call Part; the caller sets
// ToolStatus to completed (and fills ToolResult) once the tool returns.
func NewToolCallPart(id, name, args string) Part {
	return Part{Kind: PartToolCall, ToolCallID: id, ToolName: name, ToolArgs: args, ToolStatus: ToolCallRunning}
}

// VisibleText reconstructs the visible text of a message by concatenating
// its text parts.
func (m Message) VisibleText() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns the tool_call parts, in order.
func (m Message) ToolCalls() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			out = append(out, p)
		}
	}
	return out
}

// Store is the durable persistence contract for messages.
type Store interface {
	Append(ctx context.Context, m Message) (Message, error)
	List(ctx context.Context, sessionID string) ([]Message, error)
	Subscribe(ctx context.Context) <-chan pubsub.Event[Message]
}
