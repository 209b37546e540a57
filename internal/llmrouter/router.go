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
	"fmt"
	"strings"
)

// RouteType names which adapter a Route resolves to.
type RouteType string

const (
	RouteCodex       RouteType = "codex"
	RouteAnthropic   RouteType = "anthropic"
	RouteBedrock     RouteType = "bedrock"
	RouteOpenRouter  RouteType = "openrouter"
	RouteOpenCodeZen RouteType = "opencode-zen"
	RouteOpenAI      RouteType = "openai"
)

// Route is the resolved {apiKey, baseUrl, type, headers} tuple for a model id.
type Route struct {
	Type    RouteType
	ModelID string
	BaseURL string
	APIKey  string
	Headers map[string]string
}

// Config holds every credential ResolveRoute needs to decide whether a leg
// is usable; it is built fresh per call site (the orchestrator's config
// layer), never cached as a package global.
type Config struct {
	AnthropicAPIKey string

	AWSRegion         string
	HasAWSCredentials bool // the default credential chain resolved something

	OpenAIAPIKey  string
	OpenAIBaseURL string

	OpenRouterAPIKey string

	OpenCodeZenAPIKey string

	Codex CodexTokenConfig
}

const (
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL  = "https://openrouter.ai/api/v1"
	defaultOpenCodeZenBaseURL = "https://opencode-zen.dev/api/v1"
	defaultCodexBaseURL       = "https://chatgpt.com/backend-api/codex"
	defaultAnthropicBaseURL   = "https://api.anthropic.com/v1"
)

// ResolveRoute implements the provider routing table: model id -> provider.
func ResolveRoute(modelID string, cfg Config) (Route, error) {
	switch {
	case strings.Contains(modelID, "codex"):
		return Route{
			Type:    RouteCodex,
			ModelID: modelID,
			BaseURL: defaultCodexBaseURL,
			APIKey:  cfg.Codex.AccessToken,
			Headers: map[string]string{
				"originator": "stratuscode",
				"User-Agent": "stratuscode-cli",
			},
		}, nil

	case strings.HasPrefix(modelID, "claude-") && cfg.AnthropicAPIKey != "":
		return Route{Type: RouteAnthropic, ModelID: modelID, BaseURL: defaultAnthropicBaseURL, APIKey: cfg.AnthropicAPIKey}, nil

	case strings.HasPrefix(modelID, "claude-") && cfg.HasAWSCredentials:
		return Route{Type: RouteBedrock, ModelID: modelID}, nil

	case strings.Contains(modelID, "/"):
		if cfg.OpenRouterAPIKey == "" {
			return Route{}, fmt.Errorf("model %q routes to OpenRouter but no OpenRouter API key is configured", modelID)
		}
		return Route{
			Type:    RouteOpenRouter,
			ModelID: modelID,
			BaseURL: defaultOpenRouterBaseURL,
			APIKey:  cfg.OpenRouterAPIKey,
			Headers: map[string]string{"HTTP-Referer": "https://stratuscode.dev", "X-Title": "StratusCode"},
		}, nil

	case strings.Contains(modelID, "-free") || modelID == "big-pickle":
		if cfg.OpenCodeZenAPIKey == "" {
			return Route{}, fmt.Errorf("model %q routes to OpenCode Zen but no API key is configured", modelID)
		}
		return Route{
			Type:    RouteOpenCodeZen,
			ModelID: modelID,
			BaseURL: defaultOpenCodeZenBaseURL,
			APIKey:  cfg.OpenCodeZenAPIKey,
			Headers: map[string]string{"x-opencode-client": "cli"},
		}, nil

	default:
		if cfg.OpenAIAPIKey == "" {
			return Route{}, fmt.Errorf("model %q routes to OpenAI but no API key is configured", modelID)
		}
		baseURL := cfg.OpenAIBaseURL
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		return Route{Type: RouteOpenAI, ModelID: modelID, BaseURL: baseURL, APIKey: cfg.OpenAIAPIKey}, nil
	}
}
