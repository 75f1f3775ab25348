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
	"testing"
)

// fakeBackend is an in-memory backend for resolver tests.
type fakeBackend struct {
	name      string
	priority  int
	available bool
	readOnly  bool
	secrets   map[string]string
}

func newFakeBackend(name string, priority int) *fakeBackend {
	return &fakeBackend{
		name:      name,
		priority:  priority,
		available: true,
		secrets:   make(map[string]string),
	}
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.secrets[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (f *fakeBackend) Set(ctx context.Context, key string, value string) error {
	if f.readOnly {
		return ErrReadOnlyBackend
	}
	f.secrets[key] = value
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	if f.readOnly {
		return ErrReadOnlyBackend
	}
	if _, ok := f.secrets[key]; !ok {
		return ErrSecretNotFound
	}
	delete(f.secrets, key)
	return nil
}

func (f *fakeBackend) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(f.secrets))
	for k := range f.secrets {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *fakeBackend) Available() bool { return f.available }
func (f *fakeBackend) Priority() int   { return f.priority }
func (f *fakeBackend) ReadOnly() bool  { return f.readOnly }

func TestResolver_PriorityOrder(t *testing.T) {
	high := newFakeBackend("high", 100)
	low := newFakeBackend("low", 25)
	high.secrets["key1"] = "from-high"
	low.secrets["key1"] = "from-low"

	// Construction order should not matter.
	resolver := NewResolver(low, high)

	value, err := resolver.Get(context.Background(), "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "from-high" {
		t.Errorf("expected 'from-high', got %q", value)
	}
}

func TestResolver_FallThrough(t *testing.T) {
	high := newFakeBackend("high", 100)
	low := newFakeBackend("low", 25)
	low.secrets["key1"] = "from-low"

	resolver := NewResolver(high, low)

	value, err := resolver.Get(context.Background(), "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "from-low" {
		t.Errorf("expected 'from-low', got %q", value)
	}
}

func TestResolver_NotFound(t *testing.T) {
	resolver := NewResolver(newFakeBackend("a", 100), newFakeBackend("b", 25))

	_, err := resolver.Get(context.Background(), "missing")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestResolver_FiltersUnavailable(t *testing.T) {
	unavailable := newFakeBackend("unavailable", 100)
	unavailable.available = false
	unavailable.secrets["key1"] = "hidden"

	resolver := NewResolver(unavailable)

	if len(resolver.Backends()) != 0 {
		t.Errorf("expected 0 backends, got %d", len(resolver.Backends()))
	}

	_, err := resolver.Get(context.Background(), "key1")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestResolver_SetSkipsReadOnly(t *testing.T) {
	readonly := newFakeBackend("readonly", 100)
	readonly.readOnly = true
	writable := newFakeBackend("writable", 50)

	resolver := NewResolver(readonly, writable)
	ctx := context.Background()

	if err := resolver.Set(ctx, "key1", "value1", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok := readonly.secrets["key1"]; ok {
		t.Error("secret should not have been written to read-only backend")
	}
	if got := writable.secrets["key1"]; got != "value1" {
		t.Errorf("expected 'value1' in writable backend, got %q", got)
	}
}

func TestResolver_SetNamedBackend(t *testing.T) {
	first := newFakeBackend("first", 100)
	second := newFakeBackend("second", 50)

	resolver := NewResolver(first, second)
	ctx := context.Background()

	if err := resolver.Set(ctx, "key1", "value1", "second"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := first.secrets["key1"]; ok {
		t.Error("secret should not have been written to first backend")
	}
	if got := second.secrets["key1"]; got != "value1" {
		t.Errorf("expected 'value1' in second backend, got %q", got)
	}

	if err := resolver.Set(ctx, "key1", "value1", "nonexistent"); err == nil {
		t.Error("expected error for unknown backend name")
	}
}

func TestResolver_SetNoWritableBackend(t *testing.T) {
	readonly := newFakeBackend("readonly", 100)
	readonly.readOnly = true

	resolver := NewResolver(readonly)

	if err := resolver.Set(context.Background(), "key1", "value1", ""); err == nil {
		t.Error("expected error when no writable backend exists")
	}
}

func TestResolver_Delete(t *testing.T) {
	first := newFakeBackend("first", 100)
	second := newFakeBackend("second", 50)
	first.secrets["key1"] = "v1"
	second.secrets["key1"] = "v2"

	resolver := NewResolver(first, second)
	ctx := context.Background()

	t.Run("named backend only", func(t *testing.T) {
		if err := resolver.Delete(ctx, "key1", "second"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, ok := first.secrets["key1"]; !ok {
			t.Error("first backend should still hold the secret")
		}
		if _, ok := second.secrets["key1"]; ok {
			t.Error("second backend should no longer hold the secret")
		}
	})

	t.Run("all writable backends", func(t *testing.T) {
		second.secrets["key1"] = "v2"
		if err := resolver.Delete(ctx, "key1", ""); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if len(first.secrets) != 0 || len(second.secrets) != 0 {
			t.Error("expected secret removed from all backends")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if err := resolver.Delete(ctx, "missing", ""); !errors.Is(err, ErrSecretNotFound) {
			t.Errorf("expected ErrSecretNotFound, got %v", err)
		}
	})
}

func TestResolver_List(t *testing.T) {
	high := newFakeBackend("high", 100)
	high.readOnly = true
	low := newFakeBackend("low", 25)
	high.secrets["shared"] = "a"
	low.secrets["shared"] = "b"
	low.secrets["only-low"] = "c"

	resolver := NewResolver(high, low)

	metas, err := resolver.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(metas), metas)
	}

	byKey := make(map[string]Metadata)
	for _, m := range metas {
		byKey[m.Key] = m
	}

	shared, ok := byKey["shared"]
	if !ok {
		t.Fatal("expected 'shared' in list")
	}
	if shared.Backend != "high" {
		t.Errorf("expected 'shared' attributed to high-priority backend, got %q", shared.Backend)
	}
	if !shared.ReadOnly {
		t.Error("expected 'shared' to be marked read-only")
	}

	if onlyLow, ok := byKey["only-low"]; !ok || onlyLow.Backend != "low" {
		t.Errorf("expected 'only-low' from low backend, got %+v", onlyLow)
	}
}
