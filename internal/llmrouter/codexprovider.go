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

	"github.com/stratuscode/orchestrator/internal/tools"
)

// codexProvider speaks the Codex responses-api leg: bearer-token auth off
// a refreshing oauth2.TokenSource rather than a static API key, and the
// OpenAI Responses API's streamed-event shape rather than chat-completions
// deltas. Treated per the routing table as a provider-specific external
// contract; this adapter covers the subset of events needed to drive one
// turn (text deltas, function-call items, completion usage).
type codexProvider struct {
	route      Route
	tokens     *CodexTokenCache
	httpClient *http.Client
}

// NewCodexProvider builds the Codex adapter, with tokens supplying a bearer
// token that refreshes transparently per request.
func NewCodexProvider(route Route, tokens *CodexTokenCache) Provider {
	return &codexProvider{route: route, tokens: tokens, httpClient: &http.Client{Timeout: httpProviderTimeout}}
}

func (p *codexProvider) Name() string { return "codex" }

type codexInputItem struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Output  string `json:"output,omitempty"`
}

type codexRequest struct {
	Model  string           `json:"model"`
	Input  []codexInputItem `json:"input"`
	Stream bool             `json:"stream"`
}

type codexStreamEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Item  struct {
		Type      string `json:"type"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"item"`
	Response struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"response"`
}

func (p *codexProvider) Stream(ctx context.Context, systemPrompt string, messages []Message, toolList []tools.Tool, cb Callbacks) (*Response, error) {
	req := codexRequest{Model: p.route.ModelID, Stream: true}
	if systemPrompt != "" {
		req.Input = append(req.Input, codexInputItem{Type: "message", Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		switch m.Role {
		case "tool":
			req.Input = append(req.Input, codexInputItem{Type: "function_call_output", CallID: m.ToolUseID, Output: m.ToolResult})
		case "assistant":
			if m.Content != "" {
				req.Input = append(req.Input, codexInputItem{Type: "message", Role: "assistant", Content: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				req.Input = append(req.Input, codexInputItem{Type: "function_call", CallID: tc.ID, Name: tc.Name, Output: string(args)})
			}
		default:
			req.Input = append(req.Input, codexInputItem{Type: "message", Role: m.Role, Content: m.Content})
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal codex request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.route.BaseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build codex request: %w", err)
	}
	token, err := p.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("codex token: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if accountID := p.tokens.AccountID(); accountID != "" {
		httpReq.Header.Set("ChatGPT-Account-Id", accountID)
	}
	for k, v := range p.route.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("codex request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("codex API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var content strings.Builder
	var toolCalls []ToolCall
	usage := Usage{}

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
		var event codexStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" {
				content.WriteString(event.Delta)
				cb.token(event.Delta)
			}
		case "response.output_item.done":
			if event.Item.Type == "function_call" {
				var input map[string]interface{}
				_ = json.Unmarshal([]byte(event.Item.Arguments), &input)
				if input == nil {
					input = map[string]interface{}{}
				}
				tc := ToolCall{ID: event.Item.CallID, Name: event.Item.Name, Input: input}
				cb.toolCallStart(tc)
				toolCalls = append(toolCalls, tc)
			}
		case "response.completed":
			usage.InputTokens = event.Response.Usage.InputTokens
			usage.OutputTokens = event.Response.Usage.OutputTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("codex stream: %w", err)
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return &Response{Content: content.String(), ToolCalls: toolCalls, Usage: usage}, nil
}
