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

// Package agentstate holds the single per-session row that mirrors what
// the LLM has seen: the wire-shaped conversation history, optional
// summarization state, the plan file path, and the current agent mode.
// It is updated once, atomically, at the end of each turn.
package agentstate

import (
	"context"

	"github.com/stratuscode/orchestrator/internal/pubsub"
	"github.com/stratuscode/orchestrator/internal/session"
)

// SageMessage is one entry of the LLM-visible history, serialized as JSON
// in the order the inference engine expects (see internal/llmrouter for
// the wire shape each provider actually wants on the way out).
type SageMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summary is the optional rolling-summarization state used once the
// conversation history grows past a provider's context window.
type Summary struct {
	Text          string `json:"text"`
	ThroughIndex  int    `json:"throughIndex"`
}

// AgentState is the per-session snapshot of the prior conversation as the
// LLM sees it.
type AgentState struct {
	SessionID string

	SageMessages []SageMessage
	Summary      *Summary
	PlanFilePath string
	AgentMode    session.AgentMode

	UpdatedAt int64
}

// Store is the durable persistence contract for agent state.
type Store interface {
	Get(ctx context.Context, sessionID string) (AgentState, error)

	// Save atomically replaces the session's agent state; called once, at
	// the end of a turn's finalize step, never mid-turn.
	Save(ctx context.Context, s AgentState) error

	Subscribe(ctx context.Context) <-chan pubsub.Event[AgentState]
}
