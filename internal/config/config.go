// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TenantConfig holds Graph credentials for a mailbox tenant whose change
// notifications feed the parser.
type TenantConfig struct {
	Alias        string `yaml:"alias"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	ClientState  string `yaml:"client_state"`
}

// Config holds all configuration for the parser service.
type Config struct {
	Tenants []TenantConfig

	// Postgres (definitions, mappings, extracted records)
	DatabaseURL string

	// Redis
	RedisURL      string
	EmailsQueue   string
	RecordsQueue  string // empty disables record notifications
	ConsumerBlock time.Duration

	// Normalizer
	HTMLToText bool

	// Server
	Port     int
	LogLevel slog.Level
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Tenants  []TenantConfig `yaml:"tenants"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Emails  string `yaml:"emails"`
			Records string `yaml:"records"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Normalizer struct {
		HTMLToText bool `yaml:"html_to_text"`
	} `yaml:"normalizer"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from the file at CONFIG_PATH (with env var
// expansion) and environment variables for non-YAML settings. A missing
// file is not an error; defaults and environment are used instead.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")
	return LoadFile(configPath)
}

// LoadFile is Load with an explicit path.
func LoadFile(configPath string) (*Config, error) {
	var raw rawConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	case os.IsNotExist(err):
		slog.Warn("config file not found, using environment only", "path", configPath)
	default:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		DatabaseURL:   firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/emailparser")),
		RedisURL:      firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		EmailsQueue:   firstNonEmpty(raw.Redis.Queues.Emails, envOrDefault("EMAILS_QUEUE", "emails")),
		RecordsQueue:  firstNonEmpty(raw.Redis.Queues.Records, os.Getenv("RECORDS_QUEUE")),
		ConsumerBlock: envOrDefaultDuration("CONSUMER_BLOCK", 5*time.Second),
		HTMLToText:    raw.Normalizer.HTMLToText,
		Port:          envOrDefaultInt("PORT", 8080),
	}

	level := firstNonEmpty(raw.LogLevel, envOrDefault("LOG_LEVEL", "info"))
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	for _, t := range raw.Tenants {
		// Skip tenants with empty credentials (commented out in YAML)
		if t.TenantID == "" || t.ClientID == "" || t.ClientSecret == "" {
			continue
		}
		if t.Alias == "" {
			t.Alias = t.TenantID
			if len(t.Alias) > 8 {
				t.Alias = t.Alias[:8]
			}
		}
		cfg.Tenants = append(cfg.Tenants, t)
	}

	return cfg, nil
}

// Tenant returns the tenant with the given alias, or nil.
func (c *Config) Tenant(alias string) *TenantConfig {
	for i := range c.Tenants {
		if c.Tenants[i].Alias == alias {
			return &c.Tenants[i]
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
