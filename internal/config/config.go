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

// Package config loads the process-wide configuration: defaults, an
// optional YAML file, and STRATUSCODE_-prefixed environment overrides,
// layered in that order by viper. A Manager built on top keeps the
// allow/deny tool list and default model live-reloadable via
// viper.WatchConfig without requiring a process restart.
package config

// Config is the root configuration tree. Fields are grouped the way the
// components that consume them are grouped, not alphabetically.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GitHub   GitHubConfig   `mapstructure:"github"`
}

// ServerConfig holds the HTTP/SSE listener configuration.
type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

// LLMConfig holds per-provider credentials and defaults. The *APIKey,
// Codex* and Bedrock access-key/secret/session-token fields are never
// populated from the config file or a STRATUSCODE_ env var (BedrockProfile,
// not a secret, is read from bedrock_profile) — LoadConfig resolves them from an OS keyring
// entry, falling back to the provider's own unprefixed env var (e.g.
// ANTHROPIC_API_KEY), matching the teacher's "From CLI/env/keyring only"
// convention for anything secret.
type LLMConfig struct {
	DefaultModel string `mapstructure:"default_model"`

	AnthropicAPIKey string `mapstructure:"-"`

	AWSRegion         string `mapstructure:"aws_region"`
	HasAWSCredentials bool   `mapstructure:"-"` // computed by resolveSecrets, not sourced from config

	BedrockAccessKeyID     string `mapstructure:"-"`
	BedrockSecretAccessKey string `mapstructure:"-"`
	BedrockSessionToken    string `mapstructure:"-"`
	BedrockProfile         string `mapstructure:"bedrock_profile"`

	OpenAIAPIKey  string `mapstructure:"-"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	OpenRouterAPIKey  string `mapstructure:"-"`
	OpenCodeZenAPIKey string `mapstructure:"-"`

	CodexAccessToken  string `mapstructure:"-"`
	CodexRefreshToken string `mapstructure:"-"`
	CodexAccountID    string `mapstructure:"-"`
}

// SandboxConfig configures the Docker-backed sandbox provider.
type SandboxConfig struct {
	DockerHost  string `mapstructure:"docker_host"`
	Image       string `mapstructure:"image"`
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // "sqlite" (default) or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ToolsConfig is the operator-level default Alpha mode flag and the
// allow/deny list internal/permission.Gate enforces against the
// destructive git tools. This subset is what Manager hot-reloads.
type ToolsConfig struct {
	AlphaModeDefault bool     `mapstructure:"alpha_mode_default"`
	AllowedTools     []string `mapstructure:"allowed_tools"`
	DisabledTools    []string `mapstructure:"disabled_tools"`
}

// SweeperConfig parameterizes the periodic abandoned-turn sweep.
type SweeperConfig struct {
	IntervalSeconds       int `mapstructure:"interval_seconds"`
	StaleThresholdSeconds int `mapstructure:"stale_threshold_seconds"`
}

// LoggingConfig mirrors the teacher's logging section.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GitHubConfig holds the repo clone/push credential. Never sourced from
// the config file — keyring or the bare GITHUB_TOKEN env var only.
type GitHubConfig struct {
	Token string `mapstructure:"-"`
}
