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
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tombee/baton/internal/secrets"
	batonerrors "github.com/tombee/baton/pkg/errors"
)

var (
	// secretRefPattern matches $secret:key references in config values
	secretRefPattern = regexp.MustCompile(`^\$secret:(.+)$`)

	// plaintextAPIKeyPattern matches common plaintext API key formats
	plaintextAPIKeyPattern = regexp.MustCompile(`^(sk-ant-|sk-|AIza|AKIA)`)
)

// SupportedProviderTypes lists the provider implementations baton ships with.
var SupportedProviderTypes = []string{"claude", "gemini", "codex", "bedrock", "mock"}

// ProviderConfig defines configuration for a single provider instance.
type ProviderConfig struct {
	// Type specifies the provider implementation (claude, gemini, codex, bedrock, mock)
	Type string `yaml:"type"`

	// APIKey for direct API access providers. Supports $secret:key references.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL for providers that support custom endpoints
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the default model for this provider instance
	Model string `yaml:"model,omitempty"`

	// Region is the AWS region (bedrock only)
	Region string `yaml:"region,omitempty"`

	// CredentialsFile is the service-account key file path (gemini only)
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	// RequestsPerMinute rate-limits requests to this provider. Zero disables.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`
}

// ProvidersMap is a map of provider instance names to their configurations.
// Each key is a unique provider instance name chosen by the user.
type ProvidersMap map[string]ProviderConfig

// Validate checks that the provider configuration is usable.
func (p *ProviderConfig) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("type is required (one of %v)", SupportedProviderTypes)
	}

	supported := false
	for _, t := range SupportedProviderTypes {
		if p.Type == t {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported type %q (one of %v)", p.Type, SupportedProviderTypes)
	}

	if p.Type == "bedrock" && p.Region == "" {
		return fmt.Errorf("region is required for bedrock providers")
	}

	if p.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative, got %d", p.RequestsPerMinute)
	}

	return nil
}

// ResolveSecretReference resolves a $secret:key reference to its actual value.
// If the value doesn't start with $secret:, it's returned as-is.
// This function uses a shared resolver with all available backends.
func ResolveSecretReference(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", nil
	}

	matches := secretRefPattern.FindStringSubmatch(value)
	if len(matches) != 2 {
		// Not a secret reference, return as-is
		return value, nil
	}

	key := matches[1]

	secretValue, err := secrets.DefaultResolver().Get(ctx, key)
	if err != nil {
		return "", &batonerrors.ConfigError{
			Key:    key,
			Reason: fmt.Sprintf("failed to resolve secret reference %q", key),
			Cause:  err,
		}
	}

	return secretValue, nil
}

// LooksLikePlaintextKey reports whether a value looks like a raw API key
// rather than a $secret: reference.
func LooksLikePlaintextKey(value string) bool {
	return plaintextAPIKeyPattern.MatchString(value) && !strings.HasPrefix(value, "$secret:")
}

// ResolveSecrets resolves all secret references in a provider configuration.
// It modifies the config in place and returns any warnings about plaintext API keys.
func (p *ProviderConfig) ResolveSecrets(ctx context.Context) (warnings []string, err error) {
	if p.APIKey != "" {
		// Check for plaintext API key before resolution
		if LooksLikePlaintextKey(p.APIKey) {
			warnings = append(warnings,
				"Plaintext API key detected in config. Move it to secure storage with: baton secrets migrate",
			)
		}

		resolved, err := ResolveSecretReference(ctx, p.APIKey)
		if err != nil {
			return warnings, &batonerrors.ConfigError{
				Key:    "api_key",
				Reason: "failed to resolve API key secret reference",
				Cause:  err,
			}
		}
		p.APIKey = resolved
	}

	return warnings, nil
}

// ResolveSecretsInProviders resolves all secret references in all providers.
// Returns aggregated warnings about plaintext API keys.
func ResolveSecretsInProviders(ctx context.Context, providers ProvidersMap) (warnings []string, err error) {
	for name, provider := range providers {
		providerWarnings, err := provider.ResolveSecrets(ctx)
		if err != nil {
			return warnings, &batonerrors.ConfigError{
				Key:    fmt.Sprintf("providers.%s", name),
				Reason: "failed to resolve provider secrets",
				Cause:  err,
			}
		}

		for _, w := range providerWarnings {
			warnings = append(warnings, fmt.Sprintf("provider %q: %s", name, w))
		}

		// Update the map with resolved config
		providers[name] = provider
	}

	return warnings, nil
}

// LoadWithSecrets loads configuration and resolves all secret references.
// It returns the config and any warnings about plaintext API keys.
func LoadWithSecrets(configPath string) (*Config, []string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	ctx := context.Background()
	warnings, err := ResolveSecretsInProviders(ctx, cfg.Providers)
	if err != nil {
		return nil, nil, &batonerrors.ConfigError{
			Key:    "secrets",
			Reason: "failed to resolve secret references",
			Cause:  err,
		}
	}

	return cfg, warnings, nil
}
