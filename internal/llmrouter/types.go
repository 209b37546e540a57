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

// Package llmrouter resolves a model id to a concrete LLM provider and
// streams one turn's worth of conversation through it, surfacing tokens,
// reasoning, and tool-call/tool-result events via callbacks as they arrive.
package llmrouter

// ContentBlock is one piece of a multi-modal user message.
type ContentBlock struct {
	Type  string // "text" or "image"
	Text  string
	Image *ImageContent
}

// ImageContent is inline base64 image data attached to a user message.
type ImageContent struct {
	MediaType string
	Data      string
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// Message is one turn of conversation as the provider adapters see it.
type Message struct {
	Role          string // "system", "user", "assistant", "tool"
	Content       string
	ContentBlocks []ContentBlock
	ToolCalls     []ToolCall // assistant role only
	ToolUseID     string     // tool role only: which ToolCall this answers
	ToolResult    string     // tool role only: the stringified Result
	ToolIsError   bool
}

// Usage tracks input/output token counts for one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a completed (non-streaming) provider turn, also returned by
// Stream once the underlying event stream has finished.
type Response struct {
	Content    string
	Thinking   string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}
