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
	"errors"
)

// Sentinel errors backends return so the Resolver can tell a miss from
// a broken or read-only backend.
var (
	ErrSecretNotFound     = errors.New("secret not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrReadOnlyBackend    = errors.New("backend is read-only")
)

// Backend stores sensitive values. Implementations cover the
// environment, the system keychain, and an encrypted file; the
// Resolver queries them in priority order.
type Backend interface {
	// Name identifies the backend, e.g. "keychain", "env", "file".
	Name() string

	// Get returns the value for key, or ErrSecretNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value, or returns ErrReadOnlyBackend.
	Set(ctx context.Context, key string, value string) error

	// Delete removes a key, returning ErrSecretNotFound when absent or
	// ErrReadOnlyBackend when writes are unsupported.
	Delete(ctx context.Context, key string) error

	// List returns the keys (never the values) this backend holds.
	List(ctx context.Context) ([]string, error)

	// Available reports whether the backend works in this environment,
	// e.g. the keychain backend probes the keyring service.
	Available() bool

	// Priority orders resolution, highest first. The standard chain is
	// env (100), keychain (50), file (25).
	Priority() int
}

// ReadOnlyBackend marks backends that reject writes. Implementations
// return ErrReadOnlyBackend from Set and Delete.
type ReadOnlyBackend interface {
	Backend
	ReadOnly() bool
}

// Metadata describes a listed secret without exposing its value.
type Metadata struct {
	Key      string
	Backend  string
	ReadOnly bool
}
