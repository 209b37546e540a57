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
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/stratuscode/orchestrator/internal/log"
)

// ToolPolicy is the subset of Config that Manager keeps current as the
// config file changes on disk: the allow/deny list, the alpha-mode
// default and the default model.
type ToolPolicy struct {
	DefaultModel     string
	AlphaModeDefault bool
	AllowedTools     []string
	DisabledTools    []string
}

// Manager keeps a ToolPolicy snapshot fresh via viper's fsnotify-backed
// WatchConfig; Current() returns the latest snapshot. The serve command
// reads Current() once at startup to build its single Orchestrator, so a
// reload does not change the policy of turns that server dispatches.
type Manager struct {
	v *viper.Viper

	mu     sync.RWMutex
	policy ToolPolicy
}

// NewManager loads cfgFile once (falling back to the conventional search
// path when empty, same as LoadConfig) and arms viper.WatchConfig so
// subsequent edits to the file update Current()'s result in place.
func NewManager(cfgFile string) (*Manager, *Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("stratuscode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/stratuscode/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/stratuscode")
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file is fine; WatchConfig below still arms against
	// whichever path ConfigFileUsed() resolves to once it appears.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}
	if err := resolveSecrets(&cfg); err != nil {
		return nil, nil, err
	}

	m := &Manager{v: v, policy: policyFrom(&cfg)}

	v.OnConfigChange(func(_ fsnotify.Event) {
		var reloaded Config
		if err := v.Unmarshal(&reloaded); err != nil {
			log.Logger().Warn("config reload: unmarshal failed, keeping previous policy")
			return
		}
		m.mu.Lock()
		m.policy = policyFrom(&reloaded)
		m.mu.Unlock()
		log.Logger().Info("config reloaded: tool policy updated")
	})
	v.WatchConfig()

	return m, &cfg, nil
}

// Current returns the live tool policy snapshot.
func (m *Manager) Current() ToolPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

func policyFrom(cfg *Config) ToolPolicy {
	return ToolPolicy{
		DefaultModel:     cfg.LLM.DefaultModel,
		AlphaModeDefault: cfg.Tools.AlphaModeDefault,
		AllowedTools:     append([]string(nil), cfg.Tools.AllowedTools...),
		DisabledTools:    append([]string(nil), cfg.Tools.DisabledTools...),
	}
}
