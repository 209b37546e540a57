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
	"encoding/json"
	"fmt"

	"github.com/stratuscode/orchestrator/internal/tools"
)

// maxToolTurns caps how many model-call/tool-execute round trips one
// ProcessDirectly invocation will run, mirroring the teacher's own
// MaxToolExecutions guard against a model that never stops calling tools.
const maxToolTurns = 50

// ErrCancelledByUser is surfaced by ProcessDirectly when ctx is cancelled
// mid-loop — the orchestrator's cancellation side channel cancels ctx, and
// the Turn Orchestrator's finalize path distinguishes this from a genuine
// provider error.
var ErrCancelledByUser = fmt.Errorf("CancelledByUser")

// Result is what ProcessDirectly returns: the final turn's text/usage, plus
// the full message history (including the assistant/tool turns appended
// along the way) for the caller to persist into agent-state.
type Result struct {
	Response
	Messages []Message
}

// ProcessDirectly is the orchestrator's `processDirectly` inference-engine
// contract (SPEC_FULL.md §4.5 step 7): it owns the tool-call loop — call
// the model, and for each tool_use the model requests, execute it via
// executor and append a tool-result message, continuing until the model
// stops requesting tools or maxToolTurns is hit. Each streamed token,
// reasoning chunk, tool-call start, and tool result is forwarded to cb as
// it happens so the caller can flush it to the Live-Stream Store.
func ProcessDirectly(
	ctx context.Context,
	provider Provider,
	systemPrompt string,
	messages []Message,
	toolList []tools.Tool,
	executor *tools.Executor,
	alphaMode bool,
	cb Callbacks,
) (*Result, error) {
	history := append([]Message(nil), messages...)
	var total Usage

	for turn := 0; turn < maxToolTurns; turn++ {
		select {
		case <-ctx.Done():
			return &Result{Response: Response{Usage: total}, Messages: history}, ErrCancelledByUser
		default:
		}

		resp, err := provider.Stream(ctx, systemPrompt, history, toolList, cb)
		if err != nil {
			if ctx.Err() != nil {
				return &Result{Response: Response{Usage: total}, Messages: history}, ErrCancelledByUser
			}
			return &Result{Response: Response{Usage: total}, Messages: history}, err
		}
		total.InputTokens += resp.Usage.InputTokens
		total.OutputTokens += resp.Usage.OutputTokens
		total.TotalTokens = total.InputTokens + total.OutputTokens

		if len(resp.ToolCalls) == 0 {
			resp.Usage = total
			return &Result{Response: *resp, Messages: history}, nil
		}

		history = append(history, Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})

		for _, tc := range resp.ToolCalls {
			select {
			case <-ctx.Done():
				return &Result{Response: Response{Usage: total}, Messages: history}, ErrCancelledByUser
			default:
			}

			// A tool's own `confirmed` argument (set by the model once the
			// user has approved a destructive call) is threaded into
			// CallOptions per call, not fixed for the whole turn — git tools
			// read it back via tools.CallOptionsFromContext rather than their
			// params map.
			confirmed, _ := tc.Input["confirmed"].(bool)
			opts := tools.CallOptions{Confirmed: confirmed, AlphaMode: alphaMode}
			result, execErr := executor.Execute(ctx, tc.Name, tc.Input, opts)
			resultStr, isError := formatToolResult(result, execErr)
			if cb.OnToolResult != nil {
				cb.OnToolResult(tc.ID, resultStr, isError)
			}
			history = append(history, Message{Role: "tool", ToolUseID: tc.ID, ToolResult: resultStr, ToolIsError: isError})
		}
	}

	return &Result{Response: Response{Usage: total}, Messages: history}, fmt.Errorf("exceeded max tool-execution turns (%d)", maxToolTurns)
}

// formatToolResult stringifies a tool.Result (or the dispatch error that
// replaced it) into the text the model sees in a tool-role message.
func formatToolResult(result *tools.Result, execErr error) (string, bool) {
	if execErr != nil {
		return execErr.Error(), true
	}
	if result == nil {
		return "", false
	}
	if !result.Success {
		msg := ""
		if result.Error != nil {
			msg = result.Error.Message
		}
		return msg, true
	}
	b, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Sprintf("%v", result.Data), false
	}
	return string(b), false
}
