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

package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler New builds.
type Format string

const (
	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
	// FormatText emits human-readable key=value records.
	FormatText Format = "text"
)

// LevelTrace sits below Debug for payload-level detail such as resolved
// step prompts and provider request bodies.
const LevelTrace = slog.Level(-8)

// Field keys used across the codebase so downstream log consumers can
// rely on stable names.
const (
	RunIDKey    = "run_id"
	PipelineKey = "pipeline"
	StepKey     = "step"
	ProviderKey = "provider"
	DurationKey = "duration_ms"
	EventKey    = "event"
)

// Config controls handler construction in New.
type Config struct {
	Level     string    // minimum level name, default info
	Format    Format    // json or text, default json
	Output    io.Writer // defaults to os.Stderr
	AddSource bool      // annotate records with file and line
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from the environment. BATON_DEBUG=1 forces
// debug level with source locations; otherwise BATON_LOG_LEVEL wins
// over LOG_LEVEL. LOG_FORMAT selects json or text and LOG_SOURCE=1
// adds source locations.
func FromEnv() *Config {
	cfg := DefaultConfig()

	if debug := os.Getenv("BATON_DEBUG"); debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	} else if level := firstEnv("BATON_LOG_LEVEL", "LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}
	return cfg
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// New builds a structured logger from cfg. A nil cfg or nil Output
// falls back to the defaults; unknown formats get the JSON handler.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	if cfg.Format == FormatText {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

var levelNames = map[string]slog.Level{
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel maps a level name to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	if l, ok := levelNames[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// String creates a string attribute.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// WithRunContext tags a logger with the run identifier and pipeline
// name so every later record carries them.
func WithRunContext(logger *slog.Logger, runID, pipelineName string) *slog.Logger {
	return logger.With(
		slog.String(RunIDKey, runID),
		slog.String(PipelineKey, pipelineName),
	)
}

// WithStepContext tags a logger with the run identifier and step name.
func WithStepContext(logger *slog.Logger, runID, step string) *slog.Logger {
	return logger.With(
		slog.String(RunIDKey, runID),
		slog.String(StepKey, step),
	)
}

// WithProvider tags a logger with the provider name.
func WithProvider(logger *slog.Logger, provider string) *slog.Logger {
	return logger.With(slog.String(ProviderKey, provider))
}

// SanitizeAPIKey masks an API key down to its last 4 characters, or
// fully when the key is too short to mask.
func SanitizeAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return "..." + key[len(key)-4:]
}

// Trace logs at LevelTrace. Callers use it for output too verbose for
// debug, like resolved prompts and provider payloads.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(nil, LevelTrace) {
		return
	}
	logger.LogAttrs(nil, LevelTrace, msg, attrs...)
}
