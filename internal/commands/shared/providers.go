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

package shared

import (
	"fmt"
	"sort"

	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/pkg/llm"

	// Import providers to register their factories
	_ "github.com/tombee/baton/pkg/llm/providers"
)

// ActivateProviders activates every configured provider on the given
// registry and sets the default. Each provider is wrapped with rate
// limiting (when configured) and retries, and an optional failover
// chain becomes the default when fallback providers are configured.
func ActivateProviders(cfg *config.Config, reg *llm.Registry) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no providers configured. Run 'baton init' to set one up")
	}

	retryCfg := retryConfigFrom(&cfg.LLM)

	// Stable activation order keeps error messages deterministic.
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pcfg := cfg.Providers[name]

		creds, err := credentialsFor(&pcfg)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}

		if err := reg.ActivateAs(name, pcfg.Type, creds); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}

		// Wrap the activated provider with rate limiting and retries.
		// Replace keeps the instance name and default designation.
		p, err := reg.Get(name)
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		if pcfg.RequestsPerMinute > 0 {
			p = llm.NewRateLimitedProvider(p, pcfg.RequestsPerMinute)
		}
		p = llm.NewRetryWrapper(p, retryCfg)
		if err := reg.Replace(name, p); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}

	if cfg.DefaultProvider != "" {
		if err := reg.SetDefault(cfg.DefaultProvider); err != nil {
			return fmt.Errorf("default provider: %w", err)
		}
	}

	return setupFailover(cfg, reg)
}

// setupFailover builds a failover chain from the default provider and
// the configured fallbacks, and makes it the registry default.
func setupFailover(cfg *config.Config, reg *llm.Registry) error {
	if len(cfg.LLM.FailoverProviders) == 0 {
		return nil
	}
	if cfg.DefaultProvider == "" {
		return fmt.Errorf("failover requires a default_provider to fail over from")
	}

	names := append([]string{cfg.DefaultProvider}, cfg.LLM.FailoverProviders...)

	failoverCfg := llm.DefaultFailoverConfig()
	if cfg.LLM.CircuitBreakerThreshold > 0 {
		failoverCfg.FailureThreshold = cfg.LLM.CircuitBreakerThreshold
	}
	if cfg.LLM.CircuitBreakerTimeout > 0 {
		failoverCfg.Cooldown = cfg.LLM.CircuitBreakerTimeout
	}

	failover, err := reg.CreateFailover(failoverCfg, names...)
	if err != nil {
		return fmt.Errorf("failover: %w", err)
	}
	if err := reg.Register(failover); err != nil {
		return fmt.Errorf("failover: %w", err)
	}
	return reg.SetDefault(failover.Name())
}

// credentialsFor builds provider credentials from configuration.
// Secret references have already been resolved by LoadWithSecrets.
func credentialsFor(pcfg *config.ProviderConfig) (llm.Credentials, error) {
	switch pcfg.Type {
	case "claude", "codex":
		return &llm.APIKeyCredentials{
			Key:     pcfg.APIKey,
			BaseURL: pcfg.BaseURL,
			Model:   pcfg.Model,
		}, nil

	case "gemini":
		if pcfg.CredentialsFile != "" {
			return &llm.ServiceAccountCredentials{
				KeyFile: pcfg.CredentialsFile,
				BaseURL: pcfg.BaseURL,
				Model:   pcfg.Model,
			}, nil
		}
		return &llm.APIKeyCredentials{
			Key:     pcfg.APIKey,
			BaseURL: pcfg.BaseURL,
			Model:   pcfg.Model,
		}, nil

	case "bedrock":
		return &llm.AWSCredentials{
			Region: pcfg.Region,
			Model:  pcfg.Model,
		}, nil

	case "mock":
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported provider type %q (one of %v)",
			pcfg.Type, config.SupportedProviderTypes)
	}
}

// retryConfigFrom maps global LLM settings onto the provider retry
// wrapper, keeping library defaults for anything unset.
func retryConfigFrom(llmCfg *config.LLMConfig) llm.RetryConfig {
	cfg := llm.DefaultRetryConfig()
	if llmCfg.MaxRetries > 0 {
		// MaxRetries counts retries; the wrapper counts total attempts.
		cfg.MaxAttempts = llmCfg.MaxRetries + 1
	}
	if llmCfg.RetryBackoffBase > 0 {
		cfg.InitialBackoff = llmCfg.RetryBackoffBase
	}
	return cfg
}
