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

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/stratuscode/orchestrator/internal/tools"
)

// BedrockCredentials mirrors the three ways the teacher's client_sdk.go let
// an operator supply AWS credentials: an explicit static key pair, a named
// shared-config profile, or (when neither is set) the default chain.
type BedrockCredentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
}

// BedrockProvider streams one model turn via Bedrock-hosted Claude, using
// the Anthropic SDK's Bedrock transport rather than hand-rolled AWS SigV4
// signing — the same "simpler, better maintained" choice the teacher's own
// SDKClient made over its older converse.go/converse_stream.go path.
type BedrockProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewBedrockProvider resolves AWS credentials per creds and builds a
// Bedrock-backed Anthropic client for route.
func NewBedrockProvider(ctx context.Context, route Route, creds BedrockCredentials) (*BedrockProvider, error) {
	var awsCfg aws.Config
	var err error

	switch {
	case creds.AccessKeyID != "" && creds.SecretAccessKey != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(creds.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
			)),
		)
	case creds.Profile != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(creds.Region),
			config.WithSharedConfigProfile(creds.Profile),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(creds.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config for bedrock: %w", err)
	}

	client := anthropic.NewClient(bedrock.WithConfig(awsCfg))
	return &BedrockProvider{
		client:      client,
		model:       route.ModelID,
		maxTokens:   defaultAnthropicMaxTokens,
		temperature: defaultAnthropicTemperature,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Stream(ctx context.Context, systemPrompt string, messages []Message, toolList []tools.Tool, cb Callbacks) (*Response, error) {
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
	resp, err := consumeAnthropicStream(stream, p.model, cb)
	if err != nil {
		return nil, fmt.Errorf("bedrock: %w", err)
	}
	return resp, nil
}
