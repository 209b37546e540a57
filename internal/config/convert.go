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

package config

import (
	"fmt"
	"time"

	"github.com/stratuscode/orchestrator/internal/llmrouter"
	"github.com/stratuscode/orchestrator/internal/sandbox"
	"github.com/stratuscode/orchestrator/internal/store/backend"
	"github.com/stratuscode/orchestrator/pkg/observability"
)

// LLMRouterConfig projects the LLM section into the shape
// internal/llmrouter.ResolveRoute consumes directly.
func (c *Config) LLMRouterConfig() llmrouter.Config {
	return llmrouter.Config{
		AnthropicAPIKey:   c.LLM.AnthropicAPIKey,
		AWSRegion:         c.LLM.AWSRegion,
		HasAWSCredentials: c.LLM.HasAWSCredentials,
		OpenAIAPIKey:      c.LLM.OpenAIAPIKey,
		OpenAIBaseURL:     c.LLM.OpenAIBaseURL,
		OpenRouterAPIKey:  c.LLM.OpenRouterAPIKey,
		OpenCodeZenAPIKey: c.LLM.OpenCodeZenAPIKey,
		Codex: llmrouter.CodexTokenConfig{
			AccessToken:  c.LLM.CodexAccessToken,
			RefreshToken: c.LLM.CodexRefreshToken,
			AccountID:    c.LLM.CodexAccountID,
		},
	}
}

// BedrockCredentials projects the Bedrock-specific subset of LLMConfig.
func (c *Config) BedrockCredentials() llmrouter.BedrockCredentials {
	return llmrouter.BedrockCredentials{
		Region:          c.LLM.AWSRegion,
		AccessKeyID:     c.LLM.BedrockAccessKeyID,
		SecretAccessKey: c.LLM.BedrockSecretAccessKey,
		SessionToken:    c.LLM.BedrockSessionToken,
		Profile:         c.LLM.BedrockProfile,
	}
}

// SandboxProviderConfig projects the sandbox section. Logger and Tracer
// are supplied by the caller since they're process-wide singletons, not
// configuration values.
func (c *Config) SandboxProviderConfig() sandbox.DockerProviderConfig {
	return sandbox.DockerProviderConfig{
		DockerHost:  c.Sandbox.DockerHost,
		Image:       c.Sandbox.Image,
		SnapshotDir: c.Sandbox.SnapshotDir,
	}
}

// SweeperSchedule projects the sweeper section into a robfig/cron "@every"
// expression and the stale-session threshold, falling back to the
// sweeper package's own defaults when either is left at zero.
func (c *Config) SweeperSchedule() (schedule string, staleThreshold time.Duration) {
	schedule = fmt.Sprintf("@every %ds", c.Sweeper.IntervalSeconds)
	if c.Sweeper.IntervalSeconds <= 0 {
		schedule = ""
	}
	if c.Sweeper.StaleThresholdSeconds > 0 {
		staleThreshold = time.Duration(c.Sweeper.StaleThresholdSeconds) * time.Second
	}
	return schedule, staleThreshold
}

// StorageBackendConfig projects the storage section into
// internal/store/backend.Open's input, given a tracer built from the
// observability section elsewhere in process startup.
func (c *Config) StorageBackendConfig(tracer observability.Tracer) backend.Config {
	return backend.Config{
		Backend:     backend.Type(c.Storage.Backend),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		Tracer:      tracer,
	}
}
