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
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeychainBackendPriority ranks the keychain between the env override
// and the encrypted file store.
const KeychainBackendPriority = 50

// keychainService scopes baton's entries in the OS credential store.
const keychainService = "baton"

// KeychainBackend stores secrets in the OS credential store: Keychain
// on macOS, the Secret Service API on Linux, Credential Manager on
// Windows.
type KeychainBackend struct {
	available bool
}

// NewKeychainBackend creates a keychain backend. The constructor probes
// the service with a key that cannot exist, so a locked or missing
// keychain drops the backend from the chain instead of failing every
// later call.
func NewKeychainBackend() *KeychainBackend {
	_, err := keyring.Get(keychainService, "__baton_probe__")
	return &KeychainBackend{
		available: err == nil || errors.Is(err, keyring.ErrNotFound),
	}
}

// Name returns the backend identifier.
func (k *KeychainBackend) Name() string {
	return "keychain"
}

// Available reports whether the credential store answered the probe.
func (k *KeychainBackend) Available() bool {
	return k.available
}

// Priority returns the backend priority.
func (k *KeychainBackend) Priority() int {
	return KeychainBackendPriority
}

// Get retrieves a secret from the credential store.
func (k *KeychainBackend) Get(ctx context.Context, key string) (string, error) {
	if !k.available {
		return "", fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}

	value, err := keyring.Get(keychainService, key)
	if err != nil {
		return "", classifyKeyringError(key, err)
	}
	return value, nil
}

// Set stores a secret in the credential store.
func (k *KeychainBackend) Set(ctx context.Context, key string, value string) error {
	if !k.available {
		return fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}

	if err := keyring.Set(keychainService, key, value); err != nil {
		return classifyKeyringError(key, err)
	}
	return nil
}

// Delete removes a secret from the credential store.
func (k *KeychainBackend) Delete(ctx context.Context, key string) error {
	if !k.available {
		return fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}

	if err := keyring.Delete(keychainService, key); err != nil {
		return classifyKeyringError(key, err)
	}
	return nil
}

// List returns no keys. go-keyring cannot enumerate entries; an empty
// list keeps the backend usable in the chain.
func (k *KeychainBackend) List(ctx context.Context) ([]string, error) {
	if !k.available {
		return nil, fmt.Errorf("%w: keychain service unavailable", ErrBackendUnavailable)
	}
	return []string{}, nil
}

// classifyKeyringError maps a go-keyring error onto the backend
// sentinels: missing keys to ErrSecretNotFound, locked or unreachable
// stores to ErrBackendUnavailable.
func classifyKeyringError(key string, err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	if isKeychainUnavailableError(err) {
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, err.Error())
	}
	return fmt.Errorf("keychain error: %w", err)
}

// lockedIndicators are substrings of platform errors that mean the
// store is locked or unreachable rather than the key missing.
var lockedIndicators = []string{
	"locked",
	"cannot access",
	"permission denied",
	"failed to unlock",
	"user interaction required",
	"secret service",
	"dbus",
	"user canceled",
}

// isKeychainUnavailableError reports whether err indicates a locked or
// inaccessible credential store.
func isKeychainUnavailableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range lockedIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
