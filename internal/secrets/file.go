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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	// FileBackendPriority ranks the file store below env and keychain.
	FileBackendPriority = 25

	// argon2id parameters for deriving the AES key from the master key.
	argon2Time        = 3
	argon2Memory      = 64 * 1024 // KB
	argon2Parallelism = 4
	argon2KeyLength   = 32 // AES-256

	saltSize     = 16
	gcmNonceSize = 12
)

// FileBackend stores secrets in a single AES-256-GCM encrypted file.
// The master key comes from the constructor argument, the
// BATON_MASTER_KEY environment variable, or <config>/baton/master.key,
// in that order.
type FileBackend struct {
	path      string
	masterKey []byte
	mu        sync.RWMutex
	available bool
}

// envelope is the on-disk layout: a fresh argon2 salt and GCM nonce per
// write, plus the sealed secrets JSON.
type envelope struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// NewFileBackend creates an encrypted file backend at path, defaulting
// to <config>/baton/secrets.enc when path is empty. When no master key
// can be resolved the backend is returned unavailable rather than as an
// error so the resolver chain can skip it.
func NewFileBackend(path string, masterKey string) (*FileBackend, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "baton", "secrets.enc")
	}

	key, err := resolveMasterKey(masterKey)
	if err != nil {
		return &FileBackend{path: path}, nil
	}

	backend := &FileBackend{
		path:      path,
		masterKey: key,
		available: true,
	}
	if err := backend.ensureParentDir(); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	return backend, nil
}

// Name returns the backend identifier.
func (f *FileBackend) Name() string {
	return "file"
}

// Available reports whether a master key was resolved at construction.
func (f *FileBackend) Available() bool {
	return f.available
}

// Priority returns the backend priority.
func (f *FileBackend) Priority() int {
	return FileBackendPriority
}

// Get retrieves a secret from the encrypted store.
func (f *FileBackend) Get(ctx context.Context, key string) (string, error) {
	if err := f.guard(); err != nil {
		return "", err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	store, err := f.readStore()
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", fmt.Errorf("failed to load secrets: %w", err)
	}

	value, ok := store[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return value, nil
}

// Set stores a secret, creating the store file on first write.
func (f *FileBackend) Set(ctx context.Context, key string, value string) error {
	if err := f.guard(); err != nil {
		return err
	}
	return f.update(func(store map[string]string) error {
		store[key] = value
		return nil
	})
}

// Delete removes a secret from the encrypted store.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if err := f.guard(); err != nil {
		return err
	}
	return f.update(func(store map[string]string) error {
		if _, ok := store[key]; !ok {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		delete(store, key)
		return nil
	})
}

// List returns all secret keys in the store.
func (f *FileBackend) List(ctx context.Context) ([]string, error) {
	if err := f.guard(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	store, err := f.readStore()
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	keys := make([]string, 0, len(store))
	for k := range store {
		keys = append(keys, k)
	}
	return keys, nil
}

// guard rejects calls when no master key was resolved at construction.
func (f *FileBackend) guard() error {
	if f.available {
		return nil
	}
	return fmt.Errorf("%w: master key not available", ErrBackendUnavailable)
}

// update applies fn to the decrypted store and writes the result back.
// A missing store file starts as an empty map; an error from fn aborts
// without writing.
func (f *FileBackend) update(fn func(map[string]string) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := f.readStore()
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
		store = make(map[string]string)
	}

	if err := fn(store); err != nil {
		return err
	}

	if err := f.writeStore(store); err != nil {
		return fmt.Errorf("failed to save secrets: %w", err)
	}
	return nil
}

// readStore decrypts the store file. A missing file surfaces as the
// raw os.IsNotExist error so callers can distinguish it.
func (f *FileBackend) readStore() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	plaintext, err := f.open(raw)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(plaintext)

	var store map[string]string
	if err := json.Unmarshal(plaintext, &store); err != nil {
		return nil, fmt.Errorf("invalid decrypted data format: %w", err)
	}
	return store, nil
}

// writeStore seals the store and replaces the file atomically.
func (f *FileBackend) writeStore(store map[string]string) error {
	plaintext, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}
	defer zeroBytes(plaintext)

	raw, err := f.seal(plaintext)
	if err != nil {
		return err
	}

	// Temp file plus rename so a crash cannot truncate the store.
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	if err := verifyFilePermissions(f.path); err != nil {
		return fmt.Errorf("file permission verification failed: %w", err)
	}
	return nil
}

// open authenticates and decrypts a stored envelope.
func (f *FileBackend) open(raw []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid encrypted data format: %w", err)
	}
	if len(env.Nonce) != gcmNonceSize {
		return nil, fmt.Errorf("invalid encrypted data format: nonce length %d", len(env.Nonce))
	}

	key := f.deriveKey(env.Salt)
	defer zeroBytes(key)

	gcm, err := gcmFor(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, env.Nonce, env.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong master key or corrupted data): %w", err)
	}
	return plaintext, nil
}

// seal encrypts plaintext under a fresh salt and nonce.
func (f *FileBackend) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := f.deriveKey(salt)
	defer zeroBytes(key)

	gcm, err := gcmFor(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	raw, err := json.Marshal(envelope{
		Salt:  salt,
		Nonce: nonce,
		Data:  gcm.Seal(nil, nonce, plaintext, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal encrypted data: %w", err)
	}
	return raw, nil
}

// deriveKey stretches the master key with argon2id. The parameters are
// fixed; changing them would orphan existing stores.
func (f *FileBackend) deriveKey(salt []byte) []byte {
	return argon2.IDKey(f.masterKey, salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
}

func gcmFor(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// ensureParentDir creates the store's parent directory, private to the
// current user.
func (f *FileBackend) ensureParentDir() error {
	dir := filepath.Dir(f.path)
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("parent path exists but is not a directory: %s", dir)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// resolveMasterKey tries the explicit key, then BATON_MASTER_KEY, then
// the master.key file next to the config.
func resolveMasterKey(providedKey string) ([]byte, error) {
	if providedKey != "" {
		return []byte(providedKey), nil
	}
	if envKey := os.Getenv("BATON_MASTER_KEY"); envKey != "" {
		return []byte(envKey), nil
	}
	if key := masterKeyFromFile(); key != nil {
		return key, nil
	}
	return nil, errors.New("master key not available (set BATON_MASTER_KEY or create ~/.config/baton/master.key)")
}

// masterKeyFromFile reads <config>/baton/master.key, refusing key files
// with loose permissions.
func masterKeyFromFile() []byte {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	keyPath := filepath.Join(configDir, "baton", "master.key")
	if err := verifyFilePermissions(keyPath); err != nil {
		return nil
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil
	}
	return key
}

// verifyFilePermissions rejects symlinks and any group or world access.
func verifyFilePermissions(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.New("file is a symlink (not allowed for security)")
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("file permissions too open (got %o, want 0600)", perm)
	}
	return nil
}

// zeroBytes clears key material after use.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
