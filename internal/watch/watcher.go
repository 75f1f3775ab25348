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

// Package watch delivers debounced change notifications for a set of
// files. Rapid event bursts, such as an editor writing and renaming on
// save, coalesce into a single batch so a consumer reruns once per
// logical change.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period required before a batch is
// delivered.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Paths are the files to watch. More can be added with Add.
	Paths []string

	// Debounce is the quiet period before pending changes are delivered.
	// Zero uses DefaultDebounce.
	Debounce time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Watcher reports batches of changed files over Changes. The parent
// directories are watched rather than the files themselves: editors
// replace files on save, and a watch on the old inode would go quiet
// after the first change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	logger    *slog.Logger
	changes   chan []string

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
	dirty map[string]bool
	timer *time.Timer

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a watcher for the configured paths. The paths do not have
// to exist yet; creation counts as a change.
func New(cfg Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		debounce:  debounce,
		logger:    logger,
		changes:   make(chan []string, 1),
		files:     make(map[string]bool),
		dirs:      make(map[string]bool),
		dirty:     make(map[string]bool),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	for _, path := range cfg.Paths {
		if err := w.Add(path); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	go w.eventLoop()
	return w, nil
}

// Add starts watching another file.
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	dir := filepath.Dir(absPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[absPath] {
		return nil
	}
	if !w.dirs[dir] {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[absPath] = true
	w.logger.Debug("watching file", "path", absPath)
	return nil
}

// Changes returns the channel of debounced change batches. Each batch
// is a sorted list of absolute paths.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.handleEvent(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// handleEvent marks a watched file dirty and resets the debounce timer.
// Events for unwatched siblings in the same directory are dropped.
func (w *Watcher) handleEvent(name string) {
	path := filepath.Clean(name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[path] {
		return
	}

	w.dirty[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.logger.Debug("file changed", "path", path)
}

// flush delivers the dirty set. If the consumer has not drained the
// previous batch yet, the set stays dirty and delivery is retried after
// another debounce interval.
func (w *Watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopCh:
		return
	default:
	}

	if len(w.dirty) == 0 {
		return
	}
	batch := make([]string, 0, len(w.dirty))
	for path := range w.dirty {
		batch = append(batch, path)
	}
	sort.Strings(batch)

	select {
	case w.changes <- batch:
		w.dirty = make(map[string]bool)
		w.timer = nil
	default:
		w.timer = time.AfterFunc(w.debounce, w.flush)
	}
}
