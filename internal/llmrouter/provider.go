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

package llmrouter

import (
	"context"

	"github.com/stratuscode/orchestrator/internal/tools"
)

// Callbacks mirrors the orchestrator's stream event contract: each is
// invoked synchronously from within Stream as the underlying event arrives,
// so implementations must be non-blocking (the orchestrator's own callbacks
// enqueue onto a buffered flush timer rather than writing the DB inline).
type Callbacks struct {
	OnToken         func(token string)
	OnReasoning     func(text string)
	OnToolCallStart func(tc ToolCall)
	OnToolResult    func(toolCallID string, result string, isError bool)
}

func (c Callbacks) token(s string) {
	if c.OnToken != nil {
		c.OnToken(s)
	}
}

func (c Callbacks) reasoning(s string) {
	if c.OnReasoning != nil {
		c.OnReasoning(s)
	}
}

func (c Callbacks) toolCallStart(tc ToolCall) {
	if c.OnToolCallStart != nil {
		c.OnToolCallStart(tc)
	}
}

// Provider is one concrete LLM backend: Anthropic direct, Bedrock-hosted
// Claude, or a generic OpenAI-compatible HTTP leg. Stream sends one turn of
// conversation and blocks until the model finishes or ctx is cancelled.
type Provider interface {
	Name() string
	Stream(ctx context.Context, systemPrompt string, messages []Message, toolList []tools.Tool, cb Callbacks) (*Response, error)
}
