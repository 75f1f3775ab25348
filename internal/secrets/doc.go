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

/*
Package secrets provides secure credential storage and retrieval.

This package implements a multi-backend secret management system with support
for environment variables, OS keychains, and encrypted file storage. Secrets
are resolved through a priority-ordered chain of backends.

# Backends

The package provides several secret backends:

	env      - Environment variables (BATON_SECRET_*)
	keychain - OS keychain (macOS Keychain, Linux Secret Service)
	file     - Encrypted file storage (AES-256-GCM)

Each backend implements the Backend interface:

	type Backend interface {
	    Name() string
	    Priority() int
	    Available() bool
	    Get(ctx context.Context, key string) (string, error)
	    Set(ctx context.Context, key, value string) error
	    Delete(ctx context.Context, key string) error
	    List(ctx context.Context) ([]string, error)
	}

# Usage

Create a resolver with multiple backends:

	resolver := secrets.NewResolver(
	    secrets.NewEnvBackend(),
	    secrets.NewKeychainBackend(),
	    fileBackend,
	)

Retrieve a secret:

	apiKey, err := resolver.Get(ctx, "claude_key")

# Configuration Integration

Secrets can be referenced in configuration files:

	providers:
	  main:
	    type: claude
	    api_key: $secret:claude_key

The config loader resolves these references at load time.

# Environment Variables

The env backend looks for variables prefixed with BATON_SECRET_:

	export BATON_SECRET_CLAUDE_KEY=sk-ant-...

Key names are normalized: slashes become underscores and the result is
uppercased, so "providers/claude/api_key" maps to
BATON_SECRET_PROVIDERS_CLAUDE_API_KEY.

# Error Handling

Common errors:

  - ErrSecretNotFound: Secret doesn't exist in any backend
  - ErrBackendUnavailable: No backends are available
*/
package secrets
