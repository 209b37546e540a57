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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stratuscode/orchestrator/internal/tools"
)

const httpProviderTimeout = 120 * time.Second

// chatCompletionsProvider speaks the OpenAI chat-completions wire format
// over raw HTTP+SSE, the way the teacher's own anthropic.Client does for
// its non-SDK REST leg — OpenRouter, OpenCode Zen, and default OpenAI are
// all OpenAI-compatible on this endpoint shape, so one adapter covers all
// three legs of the routing table.
type chatCompletionsProvider struct {
	route      Route
	httpClient *http.Client
}

// NewChatCompletionsProvider builds the shared adapter for the OpenAI,
// OpenRouter, and OpenCode Zen routing legs.
func NewChatCompletionsProvider(route Route) Provider {
	return &chatCompletionsProvider{route: route, httpClient: &http.Client{Timeout: httpProviderTimeout}}
}

func (p *chatCompletionsProvider) Name() string { return string(p.route.Type) }

type ccMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	ToolCalls  []ccToolCall `json:"tool_calls,omitempty"`
}

type ccToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type ccTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string              `json:"name"`
		Description string              `json:"description"`
		Parameters  *tools.JSONSchema   `json:"parameters,omitempty"`
	} `json:"function"`
}

type ccRequest struct {
	Model    string      `json:"model"`
	Messages []ccMessage `json:"messages"`
	Tools    []ccTool    `json:"tools,omitempty"`
	Stream   bool        `json:"stream"`
}

type ccStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *chatCompletionsProvider) Stream(ctx context.Context, systemPrompt string, messages []Message, toolList []tools.Tool, cb Callbacks) (*Response, error) {
	req := ccRequest{Model: p.route.ModelID, Stream: true}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, ccMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		switch m.Role {
		case "tool":
			req.Messages = append(req.Messages, ccMessage{Role: "tool", Content: m.ToolResult, ToolCallID: m.ToolUseID})
		case "assistant":
			cm := ccMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				call := ccToolCall{ID: tc.ID, Type: "function"}
				call.Function.Name = tc.Name
				call.Function.Arguments = string(args)
				cm.ToolCalls = append(cm.ToolCalls, call)
			}
			req.Messages = append(req.Messages, cm)
		default:
			req.Messages = append(req.Messages, ccMessage{Role: m.Role, Content: m.Content})
		}
	}
	for _, t := range toolList {
		var ct ccTool
		ct.Type = "function"
		ct.Function.Name = t.Name()
		ct.Function.Description = t.Description()
		ct.Function.Parameters = t.InputSchema()
		req.Tools = append(req.Tools, ct)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.route.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.route.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.route.APIKey)
	}
	for k, v := range p.route.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.route.Type, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("%s API error (status %d): %s", p.route.Type, httpResp.StatusCode, string(respBody))
	}

	var content strings.Builder
	var stopReason string
	usage := Usage{}
	toolCallsByIndex := map[int]*ToolCall{}
	toolArgsByIndex := map[int]*strings.Builder{}
	var order []int

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk ccStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				content.WriteString(choice.Delta.Content)
				cb.token(choice.Delta.Content)
			}
			for _, tc := range choice.Delta.ToolCalls {
				if _, ok := toolCallsByIndex[tc.Index]; !ok {
					toolCallsByIndex[tc.Index] = &ToolCall{ID: tc.ID, Name: tc.Function.Name}
					toolArgsByIndex[tc.Index] = &strings.Builder{}
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					toolCallsByIndex[tc.Index].ID = tc.ID
				}
				if tc.Function.Name != "" {
					toolCallsByIndex[tc.Index].Name = tc.Function.Name
				}
				toolArgsByIndex[tc.Index].WriteString(tc.Function.Arguments)
			}
			if choice.FinishReason != "" {
				stopReason = choice.FinishReason
			}
		}
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s stream: %w", p.route.Type, err)
	}

	var toolCalls []ToolCall
	for _, idx := range order {
		tc := toolCallsByIndex[idx]
		var input map[string]interface{}
		_ = json.Unmarshal([]byte(toolArgsByIndex[idx].String()), &input)
		if input == nil {
			input = map[string]interface{}{}
		}
		tc.Input = input
		cb.toolCallStart(*tc)
		toolCalls = append(toolCalls, *tc)
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return &Response{Content: content.String(), ToolCalls: toolCalls, StopReason: stopReason, Usage: usage}, nil
}
