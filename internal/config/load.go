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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "STRATUSCODE"

// LoadConfig layers defaults, an optional YAML file at cfgFile (or the
// conventional search path when cfgFile is empty), and STRATUSCODE_-
// prefixed environment overrides, in that order, then resolves every
// secret field from the keyring/env (see keyring.go) since those are
// never accepted from the file or a plain env var of their own.
func LoadConfig(cfgFile string) (*Config, error) {
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

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("resolve secrets: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")

	v.SetDefault("llm.default_model", "claude-sonnet-4-5")
	v.SetDefault("llm.aws_region", "us-east-1")
	v.SetDefault("llm.openai_base_url", "https://api.openai.com/v1")

	v.SetDefault("sandbox.docker_host", "")
	v.SetDefault("sandbox.image", "stratuscode/sandbox:latest")
	v.SetDefault("sandbox.snapshot_dir", "/var/lib/stratuscode/snapshots")

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite_path", "stratuscode.db")

	v.SetDefault("tools.alpha_mode_default", false)
	v.SetDefault("tools.allowed_tools", []string{})
	v.SetDefault("tools.disabled_tools", []string{})

	v.SetDefault("sweeper.interval_seconds", 60)
	v.SetDefault("sweeper.stale_threshold_seconds", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}
