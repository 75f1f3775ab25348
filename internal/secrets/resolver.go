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
	"sort"
)

// Resolver queries a prioritized chain of Backends.
type Resolver struct {
	backends []Backend
}

// DefaultResolver assembles the standard backend chain: environment
// variables over the system keychain over the encrypted file store.
// A file backend that cannot be constructed just shortens the chain.
func DefaultResolver() *Resolver {
	backends := []Backend{
		NewEnvBackend(),
		NewKeychainBackend(),
	}
	if fileBackend, err := NewFileBackend("", ""); err == nil {
		backends = append(backends, fileBackend)
	}
	return NewResolver(backends...)
}

// NewResolver builds a resolver from the given backends. Unavailable
// backends are dropped; the rest are ordered by descending priority.
func NewResolver(backends ...Backend) *Resolver {
	available := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			available = append(available, b)
		}
	}

	sort.Slice(available, func(i, j int) bool {
		return available[i].Priority() > available[j].Priority()
	})

	return &Resolver{backends: available}
}

// ensure fails when the chain holds no usable backend.
func (r *Resolver) ensure() error {
	if len(r.backends) == 0 {
		return fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}
	return nil
}

// named finds a backend in the chain by its identifier.
func (r *Resolver) named(name string) (Backend, error) {
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("backend %q not found or unavailable", name)
}

// writable reports whether a backend accepts writes.
func writable(b Backend) bool {
	ro, ok := b.(ReadOnlyBackend)
	return !ok || !ro.ReadOnly()
}

// Get returns the first hit walking the chain in priority order. When
// every backend misses, a failure from any backend outranks a plain
// not-found result.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	if err := r.ensure(); err != nil {
		return "", err
	}

	var lastErr error
	for _, b := range r.backends {
		value, err := b.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrSecretNotFound) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", key, lastErr)
	}
	return "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Set stores a secret in the named backend, or in the highest-priority
// writable backend when backendName is empty.
func (r *Resolver) Set(ctx context.Context, key string, value string, backendName string) error {
	if err := r.ensure(); err != nil {
		return err
	}

	if backendName != "" {
		b, err := r.named(backendName)
		if err != nil {
			return err
		}
		if err := b.Set(ctx, key, value); err != nil {
			return fmt.Errorf("failed to set secret in %s: %w", backendName, err)
		}
		return nil
	}

	for _, b := range r.backends {
		if !writable(b) {
			continue
		}
		if err := b.Set(ctx, key, value); err != nil {
			if errors.Is(err, ErrReadOnlyBackend) {
				continue
			}
			return fmt.Errorf("failed to set secret in %s: %w", b.Name(), err)
		}
		return nil
	}
	return fmt.Errorf("no writable backend available")
}

// Delete removes a secret from the named backend, or from every
// writable backend holding it when backendName is empty.
func (r *Resolver) Delete(ctx context.Context, key string, backendName string) error {
	if err := r.ensure(); err != nil {
		return err
	}

	if backendName != "" {
		b, err := r.named(backendName)
		if err != nil {
			return err
		}
		if err := b.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete secret from %s: %w", backendName, err)
		}
		return nil
	}

	deleted := false
	for _, b := range r.backends {
		if !writable(b) {
			continue
		}
		if err := b.Delete(ctx, key); err != nil {
			if errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrReadOnlyBackend) {
				continue
			}
			return fmt.Errorf("failed to delete secret from %s: %w", b.Name(), err)
		}
		deleted = true
	}

	if !deleted {
		return fmt.Errorf("%w: %q", ErrSecretNotFound, key)
	}
	return nil
}

// List merges the keys of every backend. A key held by several backends
// is attributed to the highest-priority one; a backend that fails to
// list hides only its own keys.
func (r *Resolver) List(ctx context.Context) ([]Metadata, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}

	seen := make(map[string]Metadata)
	for _, b := range r.backends {
		keys, err := b.List(ctx)
		if err != nil {
			continue
		}
		for _, key := range keys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = Metadata{
				Key:      key,
				Backend:  b.Name(),
				ReadOnly: !writable(b),
			}
		}
	}

	result := make([]Metadata, 0, len(seen))
	for _, meta := range seen {
		result = append(result, meta)
	}
	return result, nil
}

// Backends returns the usable backends in priority order.
func (r *Resolver) Backends() []Backend {
	return r.backends
}
