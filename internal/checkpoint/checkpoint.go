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

// Package checkpoint persists pipeline run state for crash recovery
// and resume. One JSON file per run, written after every completed step.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Checkpoint is a saved point in a pipeline run. State carries the
// serialized variable scopes; Results carries completed step outputs in
// their stored encoding (agent steps keep their result wrapper).
type Checkpoint struct {
	RunID     string         `json:"run_id"`
	Pipeline  string         `json:"pipeline"`
	StepID    string         `json:"step_id"`
	StepIndex int            `json:"step_index"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	State     map[string]any `json:"state"`
	Results   map[string]any `json:"results,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Manager stores and retrieves run checkpoints.
type Manager struct {
	mu      sync.RWMutex
	dir     string
	enabled bool
}

// NewManager creates a checkpoint manager writing to dir.
// An empty dir disables checkpointing; all operations become no-ops.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{
		dir:     dir,
		enabled: dir != "",
	}

	if m.enabled {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	return m, nil
}

// Save writes a checkpoint for a run, replacing any previous one.
// The write is atomic so an interrupted save never corrupts the
// checkpoint being replaced.
func (m *Manager) Save(ctx context.Context, cp *Checkpoint) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp.CreatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := m.path(cp.RunID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	return nil
}

// Load reads the checkpoint for a run. Returns nil without error when no
// checkpoint exists or checkpointing is disabled.
func (m *Manager) Load(ctx context.Context, runID string) (*Checkpoint, error) {
	if !m.enabled {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &cp, nil
}

// Delete removes a run's checkpoint. Called when a run completes.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	return nil
}

// ListInterrupted returns run IDs that still have checkpoints, newest
// first. A checkpoint outliving its run means the run was interrupted.
func (m *Manager) ListInterrupted(ctx context.Context) ([]string, error) {
	if !m.enabled {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	type stamped struct {
		runID string
		mod   time.Time
	}

	var found []stamped
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{
			runID: strings.TrimSuffix(entry.Name(), ".json"),
			mod:   info.ModTime(),
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].mod.After(found[j].mod)
	})

	runIDs := make([]string, len(found))
	for i, f := range found {
		runIDs[i] = f.runID
	}

	return runIDs, nil
}

// Latest returns the most recently saved checkpoint, or nil when none
// exist. Used by resume without an explicit run ID.
func (m *Manager) Latest(ctx context.Context) (*Checkpoint, error) {
	runIDs, err := m.ListInterrupted(ctx)
	if err != nil {
		return nil, err
	}
	if len(runIDs) == 0 {
		return nil, nil
	}
	return m.Load(ctx, runIDs[0])
}

// Enabled reports whether checkpointing is active.
func (m *Manager) Enabled() bool {
	return m.enabled
}

func (m *Manager) path(runID string) string {
	return filepath.Join(m.dir, runID+".json")
}
