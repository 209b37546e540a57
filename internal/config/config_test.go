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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "claude-sonnet-4-5", cfg.LLM.DefaultModel)
	require.Equal(t, "sqlite", cfg.Storage.Backend)
	require.Equal(t, 60, cfg.Sweeper.IntervalSeconds)
	require.False(t, cfg.Tools.AlphaModeDefault)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratuscode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  default_model: gpt-5
storage:
  backend: postgres
  postgres_dsn: postgres://localhost/stratuscode
tools:
  alpha_mode_default: true
  disabled_tools: [git_push]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "gpt-5", cfg.LLM.DefaultModel)
	require.Equal(t, "postgres", cfg.Storage.Backend)
	require.True(t, cfg.Tools.AlphaModeDefault)
	require.Equal(t, []string{"git_push"}, cfg.Tools.DisabledTools)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stratuscode.yaml"), []byte("llm:\n  default_model: gpt-5-file\n"), 0o644))
	t.Setenv("STRATUSCODE_LLM_DEFAULT_MODEL", "gpt-5-env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "gpt-5-env", cfg.LLM.DefaultModel)
}

func TestSecretsNeverComeFromFileOrSTRATUSCODEEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	t.Setenv("STRATUSCODE_LLM_ANTHROPICAPIKEY", "should-be-ignored")

	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "sk-ant-from-env", cfg.LLM.AnthropicAPIKey)
}

func TestManagerReloadsToolPolicyOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratuscode.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools:\n  disabled_tools: [git_push]\n"), 0o644))

	mgr, cfg, err := NewManager(path)
	require.NoError(t, err)
	require.Equal(t, []string{"git_push"}, cfg.Tools.DisabledTools)
	require.Equal(t, []string{"git_push"}, mgr.Current().DisabledTools)

	require.NoError(t, os.WriteFile(path, []byte("tools:\n  disabled_tools: [git_push, force_push]\n"), 0o644))

	require.Eventually(t, func() bool {
		policy := mgr.Current()
		return len(policy.DisabledTools) == 2
	}, 2*time.Second, 20*time.Millisecond, "tool policy never picked up the on-disk change")
}
