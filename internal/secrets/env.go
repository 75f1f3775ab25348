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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	// EnvBackendPriority puts environment variables ahead of every other
	// backend so they act as overrides.
	EnvBackendPriority = 100

	// envSecretPrefix marks baton-managed secret variables.
	envSecretPrefix = "BATON_SECRET_"
)

// providerAliases maps provider names to the conventional variable the
// vendor's own tooling reads. Providers absent from this map fall back
// to <NAME>_API_KEY.
var providerAliases = map[string]string{
	"claude": "ANTHROPIC_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"codex":  "OPENAI_API_KEY",
}

// EnvBackend reads secrets from the environment. A key resolves through
// BATON_SECRET_<KEY> first, then through the provider alias when the
// key follows the providers/<name>/api_key pattern.
type EnvBackend struct{}

// NewEnvBackend creates a new environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string {
	return "env"
}

// Get resolves a secret from the environment.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	for _, name := range []string{e.normalizeKey(key), e.providerAlias(key)} {
		if name == "" {
			continue
		}
		if value := os.Getenv(name); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: environment variable not set", ErrSecretNotFound)
}

// Set always fails; the environment is read-only.
func (e *EnvBackend) Set(ctx context.Context, key string, value string) error {
	return ErrReadOnlyBackend
}

// Delete always fails; the environment is read-only.
func (e *EnvBackend) Delete(ctx context.Context, key string) error {
	return ErrReadOnlyBackend
}

// List returns the keys of every non-empty BATON_SECRET_* variable.
func (e *EnvBackend) List(ctx context.Context) ([]string, error) {
	var keys []string
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, envSecretPrefix) {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && parts[1] != "" {
			keys = append(keys, e.denormalizeKey(parts[0]))
		}
	}
	return keys, nil
}

// Available returns true; the environment always exists.
func (e *EnvBackend) Available() bool {
	return true
}

// Priority returns the backend priority.
func (e *EnvBackend) Priority() int {
	return EnvBackendPriority
}

// ReadOnly returns true.
func (e *EnvBackend) ReadOnly() bool {
	return true
}

// normalizeKey maps "providers/claude/api_key" to
// "BATON_SECRET_PROVIDERS_CLAUDE_API_KEY".
func (e *EnvBackend) normalizeKey(key string) string {
	return envSecretPrefix + strings.ToUpper(strings.ReplaceAll(key, "/", "_"))
}

// denormalizeKey reverses normalizeKey. The mapping is lossy, so the
// first two underscores are read as slashes to recover the
// "providers/<name>/<key>" shape and any remaining underscores stay in
// the final segment.
func (e *EnvBackend) denormalizeKey(envVar string) string {
	key := strings.ToLower(strings.TrimPrefix(envVar, envSecretPrefix))

	parts := strings.Split(key, "_")
	if len(parts) >= 3 {
		return parts[0] + "/" + parts[1] + "/" + strings.Join(parts[2:], "_")
	}
	return strings.ReplaceAll(key, "_", "/")
}

// providerAlias returns the vendor variable for provider API-key paths,
// or "" for keys outside the providers/<name>/api_key pattern.
func (e *EnvBackend) providerAlias(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != "providers" || parts[2] != "api_key" {
		return ""
	}
	if alias, ok := providerAliases[parts[1]]; ok {
		return alias
	}
	return strings.ToUpper(parts[1]) + "_API_KEY"
}
