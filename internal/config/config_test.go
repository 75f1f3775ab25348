// Copyright 2025 Tom Barlow
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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	batonerrors "github.com/tombee/baton/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected default log format 'json', got %q", cfg.Log.Format)
	}
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.CircuitBreakerThreshold != 5 {
		t.Errorf("expected default circuit breaker threshold 5, got %d", cfg.LLM.CircuitBreakerThreshold)
	}
	if cfg.Run.MaxParallel != 4 {
		t.Errorf("expected default max parallel 4, got %d", cfg.Run.MaxParallel)
	}
	if !cfg.Run.CheckpointsEnabled {
		t.Error("expected checkpoints enabled by default")
	}
	if cfg.Telemetry.Enabled {
		t.Error("expected telemetry disabled by default")
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Log.Level)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
log:
  level: debug
  format: text
llm:
  max_retries: 5
  request_timeout: 2m
default_provider: main
providers:
  main:
    type: claude
    model: claude-sonnet-4-5
run:
  max_parallel: 8
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("expected log format 'text', got %q", cfg.Log.Format)
	}
	if cfg.LLM.MaxRetries != 5 {
		t.Errorf("expected max retries 5, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.RequestTimeout != 2*time.Minute {
		t.Errorf("expected request timeout 2m, got %v", cfg.LLM.RequestTimeout)
	}
	if cfg.DefaultProvider != "main" {
		t.Errorf("expected default provider 'main', got %q", cfg.DefaultProvider)
	}
	if cfg.Run.MaxParallel != 8 {
		t.Errorf("expected max parallel 8, got %d", cfg.Run.MaxParallel)
	}

	// Unset fields keep their defaults
	if cfg.LLM.CircuitBreakerThreshold != 5 {
		t.Errorf("expected default circuit breaker threshold preserved, got %d", cfg.LLM.CircuitBreakerThreshold)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}

	var configErr *batonerrors.ConfigError
	if !errors.As(err, &configErr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("log: [unclosed"), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	envVars := map[string]string{
		"LOG_LEVEL":                    "error",
		"BATON_PROVIDER":               "backup",
		"BATON_MAX_PARALLEL":           "2",
		"LLM_MAX_RETRIES":              "7",
		"LLM_FAILOVER_PROVIDERS":       "backup, local",
		"LLM_CIRCUIT_BREAKER_TIMEOUT":  "1m",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Log.Level != "error" {
		t.Errorf("expected log level 'error', got %q", cfg.Log.Level)
	}
	if cfg.DefaultProvider != "backup" {
		t.Errorf("expected default provider 'backup', got %q", cfg.DefaultProvider)
	}
	if cfg.Run.MaxParallel != 2 {
		t.Errorf("expected max parallel 2, got %d", cfg.Run.MaxParallel)
	}
	if cfg.LLM.MaxRetries != 7 {
		t.Errorf("expected max retries 7, got %d", cfg.LLM.MaxRetries)
	}
	if len(cfg.LLM.FailoverProviders) != 2 || cfg.LLM.FailoverProviders[1] != "local" {
		t.Errorf("expected failover providers [backup local], got %v", cfg.LLM.FailoverProviders)
	}
	if cfg.LLM.CircuitBreakerTimeout != time.Minute {
		t.Errorf("expected circuit breaker timeout 1m, got %v", cfg.LLM.CircuitBreakerTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "zero max parallel",
			mutate:  func(c *Config) { c.Run.MaxParallel = 0 },
			wantErr: "run.max_parallel",
		},
		{
			name: "default provider must exist",
			mutate: func(c *Config) {
				c.DefaultProvider = "ghost"
				c.Providers = ProvidersMap{"main": {Type: "claude"}}
			},
			wantErr: "default_provider",
		},
		{
			name: "provider type must be supported",
			mutate: func(c *Config) {
				c.Providers = ProvidersMap{"main": {Type: "gpt"}}
			},
			wantErr: "unsupported type",
		},
		{
			name: "bedrock requires region",
			mutate: func(c *Config) {
				c.Providers = ProvidersMap{"aws": {Type: "bedrock"}}
			},
			wantErr: "region is required",
		},
		{
			name: "telemetry needs an endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			wantErr: "telemetry.enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig in chain, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error to mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	if got := cfg.HistoryPath(); got != filepath.Join("/data", "history.db") {
		t.Errorf("expected default history path under data dir, got %q", got)
	}

	cfg.History.Path = "/custom/history.db"
	if got := cfg.HistoryPath(); got != "/custom/history.db" {
		t.Errorf("expected explicit history path, got %q", got)
	}
}

func TestCheckpointDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	if got := cfg.CheckpointDir(); got != filepath.Join("/data", "checkpoints") {
		t.Errorf("expected checkpoint dir under data dir, got %q", got)
	}
}
