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
	"fmt"
	"testing"

	"github.com/stratuscode/orchestrator/internal/tools"
)

// echoTool just reflects its "text" param back, for exercising the
// tool-dispatch loop without needing a sandbox.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes text back" }
func (echoTool) Category() tools.Category { return tools.CategorySession }
func (echoTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("echo params", map[string]*tools.JSONSchema{
		"text": tools.NewStringSchema("text to echo"),
	}, []string{"text"})
}
func (echoTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	return &tools.Result{Success: true, Data: params["text"]}, nil
}

// scriptedProvider returns one canned Response per call, in order, letting
// tests drive ProcessDirectly through a fixed number of tool-call turns.
type scriptedProvider struct {
	responses []Response
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Stream(ctx context.Context, systemPrompt string, messages []Message, toolList []tools.Tool, cb Callbacks) (*Response, error) {
	if p.calls >= len(p.responses) {
		return nil, fmt.Errorf("scriptedProvider: no more responses scripted")
	}
	resp := p.responses[p.calls]
	p.calls++
	for _, tc := range resp.ToolCalls {
		cb.toolCallStart(tc)
	}
	return &resp, nil
}

func newTestExecutor() *tools.Executor {
	registry := tools.NewRegistry()
	registry.Register(echoTool{})
	return tools.NewExecutor(registry, nil)
}

func TestProcessDirectlyNoToolCallsReturnsImmediately(t *testing.T) {
	provider := &scriptedProvider{responses: []Response{
		{Content: "hello there", Usage: Usage{InputTokens: 10, OutputTokens: 5}},
	}}

	result, err := ProcessDirectly(context.Background(), provider, "you are helpful", nil, nil, newTestExecutor(), false, Callbacks{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "hello there" {
		t.Fatalf("got content %q", result.Content)
	}
	if result.Usage.TotalTokens != 15 {
		t.Fatalf("got total tokens %d, want 15", result.Usage.TotalTokens)
	}
	if len(result.Messages) != 0 {
		t.Fatalf("expected no messages appended when there were no tool calls, got %d", len(result.Messages))
	}
}

func TestProcessDirectlyExecutesToolAndLoopsToCompletion(t *testing.T) {
	provider := &scriptedProvider{responses: []Response{
		{
			ToolCalls: []ToolCall{{ID: "call_1", Name: "echo", Input: map[string]interface{}{"text": "ping"}}},
			Usage:     Usage{InputTokens: 10, OutputTokens: 5},
		},
		{Content: "done", Usage: Usage{InputTokens: 20, OutputTokens: 8}},
	}}

	var toolResults []string
	cb := Callbacks{OnToolResult: func(id string, result string, isError bool) {
		toolResults = append(toolResults, result)
		if isError {
			t.Fatalf("tool result unexpectedly marked as error: %s", result)
		}
	}}

	result, err := ProcessDirectly(context.Background(), provider, "", nil, nil, newTestExecutor(), false, cb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "done" {
		t.Fatalf("got final content %q, want %q", result.Content, "done")
	}
	if result.Usage.InputTokens != 30 || result.Usage.OutputTokens != 13 {
		t.Fatalf("usage did not accumulate across turns: %+v", result.Usage)
	}
	if len(toolResults) != 1 || toolResults[0] != `"ping"` {
		t.Fatalf("got tool results %v, want one echoing %q", toolResults, `"ping"`)
	}
	// assistant tool-call message + tool-result message appended to history
	if len(result.Messages) != 2 {
		t.Fatalf("got %d history messages, want 2", len(result.Messages))
	}
	if result.Messages[0].Role != "assistant" || result.Messages[1].Role != "tool" {
		t.Fatalf("unexpected message roles: %+v", result.Messages)
	}
}

func TestProcessDirectlyUnknownToolSurfacesAsErrorResult(t *testing.T) {
	provider := &scriptedProvider{responses: []Response{
		{ToolCalls: []ToolCall{{ID: "call_1", Name: "no_such_tool"}}},
		{Content: "recovered"},
	}}

	var sawError bool
	cb := Callbacks{OnToolResult: func(id string, result string, isError bool) {
		sawError = isError
	}}

	result, err := ProcessDirectly(context.Background(), provider, "", nil, nil, newTestExecutor(), false, cb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawError {
		t.Fatalf("expected the missing-tool dispatch failure to be reported as an error result")
	}
	if result.Content != "recovered" {
		t.Fatalf("got %q, want the loop to continue to the next scripted turn", result.Content)
	}
}

func TestProcessDirectlyRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &scriptedProvider{responses: []Response{{Content: "should not be reached"}}}
	_, err := ProcessDirectly(ctx, provider, "", nil, nil, newTestExecutor(), false, Callbacks{})
	if err != ErrCancelledByUser {
		t.Fatalf("got error %v, want ErrCancelledByUser", err)
	}
}
