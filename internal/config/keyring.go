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
	"errors"
	"os"

	"github.com/zalando/go-keyring"
)

// serviceName is the OS keyring service every secret entry is filed
// under; keyName distinguishes entries within it.
const serviceName = "stratuscode-orchestrator"

// secretSource resolves one named secret, trying the OS keyring first and
// falling back to an explicit environment variable. Neither source being
// populated is not an error: most deployments run with only a handful of
// the providers below configured at all.
func secretSource(keyName, envVar string) string {
	if value, err := keyring.Get(serviceName, keyName); err == nil {
		return value
	} else if !errors.Is(err, keyring.ErrNotFound) {
		// A keyring that exists but is locked or unreachable (common in
		// headless CI/containers) degrades to the env var rather than
		// failing config load outright.
		_ = err
	}
	return os.Getenv(envVar)
}

// resolveSecrets fills in every LLMConfig/GitHubConfig field the config
// file and environment overrides deliberately skip (mapstructure:"-"),
// per provider and per the recognized env vars.
func resolveSecrets(cfg *Config) error {
	cfg.LLM.AnthropicAPIKey = secretSource("anthropic_api_key", "ANTHROPIC_API_KEY")

	cfg.LLM.BedrockAccessKeyID = secretSource("bedrock_access_key_id", "AWS_ACCESS_KEY_ID")
	cfg.LLM.BedrockSecretAccessKey = secretSource("bedrock_secret_access_key", "AWS_SECRET_ACCESS_KEY")
	cfg.LLM.BedrockSessionToken = secretSource("bedrock_session_token", "AWS_SESSION_TOKEN")
	cfg.LLM.HasAWSCredentials = cfg.LLM.BedrockAccessKeyID != "" || cfg.LLM.BedrockProfile != "" ||
		os.Getenv("AWS_PROFILE") != ""

	cfg.LLM.OpenAIAPIKey = secretSource("openai_api_key", "OPENAI_API_KEY")
	cfg.LLM.OpenRouterAPIKey = secretSource("openrouter_api_key", "OPENROUTER_API_KEY")
	cfg.LLM.OpenCodeZenAPIKey = secretSource("opencode_zen_api_key", "OPENCODE_ZEN_API_KEY")

	cfg.LLM.CodexAccessToken = secretSource("codex_access_token", "CODEX_ACCESS_TOKEN")
	cfg.LLM.CodexRefreshToken = secretSource("codex_refresh_token", "CODEX_REFRESH_TOKEN")
	cfg.LLM.CodexAccountID = secretSource("codex_account_id", "CODEX_ACCOUNT_ID")

	cfg.GitHub.Token = secretSource("github_token", "GITHUB_TOKEN")

	return nil
}

// HasAWSCredentials reports the same recognized-credential heuristic
// resolveSecrets already computed onto cfg.LLM, exposed standalone for
// callers that only have individual values, not a populated Config.
func HasAWSCredentials(accessKeyID, profile string) bool {
	return accessKeyID != "" || profile != "" || os.Getenv("AWS_PROFILE") != ""
}
