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

import "testing"

func TestResolveRoute(t *testing.T) {
	cases := []struct {
		name    string
		modelID string
		cfg     Config
		want    RouteType
		wantErr bool
	}{
		{
			name:    "codex model always routes to codex regardless of other keys",
			modelID: "gpt-5-codex",
			cfg:     Config{AnthropicAPIKey: "anthropic-key"},
			want:    RouteCodex,
		},
		{
			name:    "claude model with anthropic key goes direct",
			modelID: "claude-opus-4-6",
			cfg:     Config{AnthropicAPIKey: "anthropic-key"},
			want:    RouteAnthropic,
		},
		{
			name:    "claude model with only AWS credentials goes to bedrock",
			modelID: "claude-opus-4-6",
			cfg:     Config{HasAWSCredentials: true},
			want:    RouteBedrock,
		},
		{
			name:    "claude model with neither key falls through to openai and errors without one",
			modelID: "claude-opus-4-6",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "slash-qualified model routes to openrouter",
			modelID: "qwen/qwen3-coder",
			cfg:     Config{OpenRouterAPIKey: "or-key"},
			want:    RouteOpenRouter,
		},
		{
			name:    "slash-qualified model errors without an openrouter key",
			modelID: "qwen/qwen3-coder",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "free-suffixed model routes to opencode zen",
			modelID: "grok-code-free",
			cfg:     Config{OpenCodeZenAPIKey: "zen-key"},
			want:    RouteOpenCodeZen,
		},
		{
			name:    "big-pickle alias routes to opencode zen",
			modelID: "big-pickle",
			cfg:     Config{OpenCodeZenAPIKey: "zen-key"},
			want:    RouteOpenCodeZen,
		},
		{
			name:    "unrecognized model id defaults to openai",
			modelID: "gpt-5-mini",
			cfg:     Config{OpenAIAPIKey: "oai-key"},
			want:    RouteOpenAI,
		},
		{
			name:    "default openai leg errors without a key",
			modelID: "gpt-5-mini",
			cfg:     Config{},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			route, err := ResolveRoute(tc.modelID, tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got route %+v", route)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if route.Type != tc.want {
				t.Fatalf("got route type %q, want %q", route.Type, tc.want)
			}
		})
	}
}

func TestResolveRouteOpenAIUsesConfiguredBaseURL(t *testing.T) {
	route, err := ResolveRoute("gpt-5-mini", Config{OpenAIAPIKey: "k", OpenAIBaseURL: "https://example.test/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.BaseURL != "https://example.test/v1" {
		t.Fatalf("got base URL %q, want override", route.BaseURL)
	}
}
