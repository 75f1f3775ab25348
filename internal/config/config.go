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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	batonerrors "github.com/tombee/baton/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete Baton configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`       // Global LLM settings (timeouts, retries, etc.)
	Run       RunConfig       `yaml:"run"`       // Pipeline execution settings
	History   HistoryConfig   `yaml:"history"`   // Run history persistence
	Telemetry TelemetryConfig `yaml:"telemetry"` // Tracing and metrics

	// DefaultProvider names the provider used when a step doesn't specify one.
	DefaultProvider string `yaml:"default_provider,omitempty"`

	// Providers maps provider instance names to their configurations.
	Providers ProvidersMap `yaml:"providers,omitempty"`

	// PipelinesDir is the directory to search for pipeline files.
	PipelinesDir string `yaml:"pipelines_dir,omitempty"`

	// DataDir is the directory for baton data (checkpoints, history).
	DataDir string `yaml:"data_dir,omitempty"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is the output format (json, text).
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	AddSource bool `yaml:"add_source"`
}

// LLMConfig configures global LLM request behavior.
type LLMConfig struct {
	// RequestTimeout is the per-request timeout for provider calls.
	// Environment: LLM_REQUEST_TIMEOUT
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// MaxRetries is the number of retry attempts for transient failures.
	// Environment: LLM_MAX_RETRIES
	MaxRetries int `yaml:"max_retries,omitempty"`

	// RetryBackoffBase is the base delay for exponential backoff.
	// Environment: LLM_RETRY_BACKOFF_BASE
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base,omitempty"`

	// FailoverProviders is an ordered list of fallback provider names
	// tried when the primary provider's circuit opens.
	// Environment: LLM_FAILOVER_PROVIDERS (comma-separated)
	FailoverProviders []string `yaml:"failover_providers,omitempty"`

	// CircuitBreakerThreshold is the consecutive failure count that opens
	// the circuit for a provider.
	// Environment: LLM_CIRCUIT_BREAKER_THRESHOLD
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold,omitempty"`

	// CircuitBreakerTimeout is how long an open circuit stays open before
	// a probe request is allowed.
	// Environment: LLM_CIRCUIT_BREAKER_TIMEOUT
	CircuitBreakerTimeout time.Duration `yaml:"circuit_breaker_timeout,omitempty"`
}

// RunConfig configures pipeline execution.
type RunConfig struct {
	// MaxParallel limits concurrent branches in parallel steps.
	// Environment: BATON_MAX_PARALLEL
	MaxParallel int `yaml:"max_parallel,omitempty"`

	// DefaultTimeout is the default timeout for a whole pipeline run.
	// Environment: BATON_DEFAULT_TIMEOUT
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty"`

	// CheckpointsEnabled enables checkpoint saving for resumable runs.
	// Environment: BATON_CHECKPOINTS_ENABLED
	CheckpointsEnabled bool `yaml:"checkpoints_enabled"`

	// WatchDebounce is the quiet period before a file change triggers
	// re-execution in watch mode.
	WatchDebounce time.Duration `yaml:"watch_debounce,omitempty"`
}

// HistoryConfig configures run history persistence.
type HistoryConfig struct {
	// Enabled controls whether run history is recorded.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database path. Empty means DataDir/history.db.
	Path string `yaml:"path,omitempty"`

	// RetentionDays is how long completed runs are kept. Zero keeps forever.
	RetentionDays int `yaml:"retention_days,omitempty"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	// Enabled activates OpenTelemetry tracing and metrics (opt-in).
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (host:port).
	// Environment: BATON_OTLP_ENDPOINT
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool `yaml:"otlp_insecure"`

	// MetricsAddr is the address for the Prometheus metrics endpoint.
	// Empty disables the metrics listener.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:     "info",
			Format:    "json",
			AddSource: false,
		},
		LLM: LLMConfig{
			RequestTimeout:          5 * time.Minute,
			MaxRetries:              3,
			RetryBackoffBase:        100 * time.Millisecond,
			FailoverProviders:       nil, // Failover disabled by default
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
		},
		Run: RunConfig{
			MaxParallel:        4,
			DefaultTimeout:     30 * time.Minute,
			CheckpointsEnabled: true,
			WatchDebounce:      500 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false, // Opt-in
			ServiceName: "baton",
		},
		PipelinesDir: "./pipelines",
		DataDir:      defaultDataDir(),
	}
}

// Load loads configuration from environment variables and optionally from a YAML file.
// Environment variables take precedence over file-based configuration.
// If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &batonerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	// Override with environment variables
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &batonerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.LLM.RequestTimeout == 0 {
		c.LLM.RequestTimeout = def.LLM.RequestTimeout
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = def.LLM.MaxRetries
	}
	if c.LLM.RetryBackoffBase == 0 {
		c.LLM.RetryBackoffBase = def.LLM.RetryBackoffBase
	}
	if c.LLM.CircuitBreakerThreshold == 0 {
		c.LLM.CircuitBreakerThreshold = def.LLM.CircuitBreakerThreshold
	}
	if c.LLM.CircuitBreakerTimeout == 0 {
		c.LLM.CircuitBreakerTimeout = def.LLM.CircuitBreakerTimeout
	}

	if c.Run.MaxParallel == 0 {
		c.Run.MaxParallel = def.Run.MaxParallel
	}
	if c.Run.DefaultTimeout == 0 {
		c.Run.DefaultTimeout = def.Run.DefaultTimeout
	}
	if c.Run.WatchDebounce == 0 {
		c.Run.WatchDebounce = def.Run.WatchDebounce
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = def.Telemetry.ServiceName
	}

	if c.PipelinesDir == "" {
		c.PipelinesDir = def.PipelinesDir
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
}

// loadFromFile reads and parses a YAML configuration file into the Config.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	// Log configuration
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	// BATON_PROVIDER overrides default_provider
	if val := os.Getenv("BATON_PROVIDER"); val != "" {
		c.DefaultProvider = val
	}

	if val := os.Getenv("BATON_PIPELINES_DIR"); val != "" {
		c.PipelinesDir = val
	}
	if val := os.Getenv("BATON_DATA_DIR"); val != "" {
		c.DataDir = val
	}

	// Run configuration
	if val := os.Getenv("BATON_MAX_PARALLEL"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Run.MaxParallel = n
		}
	}
	if val := os.Getenv("BATON_DEFAULT_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Run.DefaultTimeout = duration
		}
	}
	if val := os.Getenv("BATON_CHECKPOINTS_ENABLED"); val != "" {
		c.Run.CheckpointsEnabled = val == "1" || strings.ToLower(val) == "true"
	}

	// LLM configuration
	if val := os.Getenv("LLM_REQUEST_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.LLM.RequestTimeout = duration
		}
	}
	if val := os.Getenv("LLM_MAX_RETRIES"); val != "" {
		if retries, err := strconv.Atoi(val); err == nil {
			c.LLM.MaxRetries = retries
		}
	}
	if val := os.Getenv("LLM_RETRY_BACKOFF_BASE"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.LLM.RetryBackoffBase = duration
		}
	}
	if val := os.Getenv("LLM_FAILOVER_PROVIDERS"); val != "" {
		providers := strings.Split(val, ",")
		for i, p := range providers {
			providers[i] = strings.TrimSpace(p)
		}
		c.LLM.FailoverProviders = providers
	}
	if val := os.Getenv("LLM_CIRCUIT_BREAKER_THRESHOLD"); val != "" {
		if threshold, err := strconv.Atoi(val); err == nil {
			c.LLM.CircuitBreakerThreshold = threshold
		}
	}
	if val := os.Getenv("LLM_CIRCUIT_BREAKER_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.LLM.CircuitBreakerTimeout = duration
		}
	}

	// Telemetry configuration
	if val := os.Getenv("BATON_OTLP_ENDPOINT"); val != "" {
		c.Telemetry.OTLPEndpoint = val
		c.Telemetry.Enabled = true
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.LLM.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("llm.request_timeout must be positive, got %v", c.LLM.RequestTimeout))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries))
	}

	if c.Run.MaxParallel < 1 {
		errs = append(errs, fmt.Sprintf("run.max_parallel must be at least 1, got %d", c.Run.MaxParallel))
	}

	// default_provider should reference a configured provider.
	// Skip when no providers are configured yet (allows default config to pass).
	if c.DefaultProvider != "" && len(c.Providers) > 0 {
		if _, exists := c.Providers[c.DefaultProvider]; !exists {
			errs = append(errs, fmt.Sprintf("default_provider %q not found in configured providers %v", c.DefaultProvider, keysOf(c.Providers)))
		}
	}

	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("providers.%s: %v", name, err))
		}
	}

	if c.History.RetentionDays < 0 {
		errs = append(errs, fmt.Sprintf("history.retention_days must not be negative, got %d", c.History.RetentionDays))
	}

	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" && c.Telemetry.MetricsAddr == "" {
		errs = append(errs, "telemetry.enabled requires otlp_endpoint or metrics_addr")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// HistoryPath returns the resolved run-history database path.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.DataDir, "history.db")
}

// CheckpointDir returns the directory where checkpoints are stored.
func (c *Config) CheckpointDir() string {
	return filepath.Join(c.DataDir, "checkpoints")
}

func keysOf(m ProvidersMap) []string {
	keys := make([]string, 0, len(m))
	for name := range m {
		keys = append(keys, name)
	}
	return keys
}

// defaultDataDir returns the default data directory.
// Respects XDG_DATA_HOME, falling back to ~/.local/share/baton.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "baton")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".baton"
	}
	return filepath.Join(home, ".local", "share", "baton")
}
