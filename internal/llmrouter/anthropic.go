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
	"io"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stratuscode/orchestrator/internal/tools"
)

const (
	defaultAnthropicMaxTokens   = int64(8192)
	defaultAnthropicTemperature = 1.0
)

// AnthropicProvider streams one model turn via the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider builds a direct (non-Bedrock) Anthropic provider.
func NewAnthropicProvider(route Route) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(route.APIKey)}
	if route.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(route.BaseURL))
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       route.ModelID,
		maxTokens:   defaultAnthropicMaxTokens,
		temperature: defaultAnthropicTemperature,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Stream(ctx context.Context, systemPrompt string, messages []Message, toolList []tools.Tool, cb Callbacks) (*Response, error) {
	sdkMessages := convertMessagesToSDK(messages)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("no valid messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		Messages:    sdkMessages,
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(p.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(toolList) > 0 {
		params.Tools = convertToolsToSDK(toolList)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	return consumeAnthropicStream(stream, p.model, cb)
}

// anthropicEventStream is the subset of anthropic.Stream's API consumed by
// both the direct and Bedrock adapters.
type anthropicEventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
}

// consumeAnthropicStream drains an Anthropic SSE stream, forwarding text
// deltas and tool-call starts to cb as they arrive, mirroring Bedrock SDK
// client's ChatStream block-index bookkeeping for streamed tool-input JSON.
func consumeAnthropicStream(stream anthropicEventStream, model string, cb Callbacks) (*Response, error) {
	var content strings.Builder
	var reasoning strings.Builder
	var toolCalls []ToolCall
	var usage Usage
	var stopReason string

	toolInputBuffers := make(map[int64]*strings.Builder)
	blockIndexToToolIndex := make(map[int64]int)

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			usage.InputTokens = int(event.Message.Usage.InputTokens)

		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				tc := ToolCall{ID: event.ContentBlock.ID, Name: event.ContentBlock.Name, Input: map[string]interface{}{}}
				blockIndexToToolIndex[event.Index] = len(toolCalls)
				toolCalls = append(toolCalls, tc)
				toolInputBuffers[event.Index] = &strings.Builder{}
			}

		case "content_block_delta":
			switch event.Delta.Type {
			case "text_delta":
				if event.Delta.Text != "" {
					content.WriteString(event.Delta.Text)
					cb.token(event.Delta.Text)
				}
			case "thinking_delta":
				if event.Delta.Thinking != "" {
					reasoning.WriteString(event.Delta.Thinking)
					cb.reasoning(event.Delta.Thinking)
				}
			case "input_json_delta":
				if buf, ok := toolInputBuffers[event.Index]; ok {
					buf.WriteString(event.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if buf, ok := toolInputBuffers[event.Index]; ok {
				if buf.Len() > 0 {
					var input map[string]interface{}
					if err := json.Unmarshal([]byte(buf.String()), &input); err == nil {
						if idx, ok := blockIndexToToolIndex[event.Index]; ok {
							toolCalls[idx].Input = input
							cb.toolCallStart(toolCalls[idx])
						}
					}
				}
				delete(toolInputBuffers, event.Index)
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = string(event.Delta.StopReason)
			}
			if event.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(event.Usage.OutputTokens)
			}
		}
	}

	if err := stream.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return &Response{
		Content:    content.String(),
		Thinking:   reasoning.String(),
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

// convertMessagesToSDK converts router Messages into Anthropic SDK message
// params; system-role messages are dropped here since the caller supplies
// systemPrompt separately via params.System.
func convertMessagesToSDK(messages []Message) []anthropic.MessageParam {
	var sdkMessages []anthropic.MessageParam
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			if len(msg.ContentBlocks) > 0 {
				var blocks []anthropic.ContentBlockParamUnion
				for _, b := range msg.ContentBlocks {
					switch b.Type {
					case "text":
						if b.Text != "" {
							blocks = append(blocks, anthropic.NewTextBlock(b.Text))
						}
					case "image":
						if b.Image != nil {
							blocks = append(blocks, anthropic.NewImageBlockBase64(b.Image.MediaType, b.Image.Data))
						}
					}
				}
				if len(blocks) > 0 {
					sdkMessages = append(sdkMessages, anthropic.NewUserMessage(blocks...))
				}
			} else if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}

		case "assistant":
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Input
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(blocks...))
			}

		case "tool":
			sdkMessages = append(sdkMessages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolUseID, msg.ToolResult, msg.ToolIsError),
			))
		}
	}
	return sdkMessages
}

// convertToolsToSDK converts the tool registry's JSONSchema-described tools
// into the SDK's ToolUnionParam shape.
func convertToolsToSDK(toolList []tools.Tool) []anthropic.ToolUnionParam {
	unions := make([]anthropic.ToolUnionParam, 0, len(toolList))
	for _, t := range toolList {
		sdkTool := anthropic.ToolParam{Name: t.Name(), Description: anthropic.String(t.Description())}

		if schema := t.InputSchema(); schema != nil {
			schemaJSON, _ := json.Marshal(schema)
			var inputSchema anthropic.ToolInputSchemaParam
			_ = json.Unmarshal(schemaJSON, &inputSchema)
			sdkTool.InputSchema = inputSchema
		}
		unions = append(unions, anthropic.ToolUnionParam{OfTool: &sdkTool})
	}
	return unions
}
