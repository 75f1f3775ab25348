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

package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tombee/baton/internal/commands/shared"
	historystore "github.com/tombee/baton/internal/history"
)

// setupHistory points the config at a temp data directory and returns
// the history database path.
func setupHistory(t *testing.T, extraConfig string) string {
	t.Helper()
	dataDir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf("data_dir: %s\n%s", dataDir, extraConfig)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	shared.SetConfigPathForTest(configPath)
	t.Cleanup(func() { shared.SetConfigPathForTest("") })
	return filepath.Join(dataDir, "history.db")
}

func seedRun(t *testing.T, path string, run historystore.Run, finish historystore.Status) {
	t.Helper()
	store, err := historystore.Open(path)
	if err != nil {
		t.Fatalf("failed to open history store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.RecordStart(ctx, &run); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}
	if finish != "" && finish != historystore.StatusRunning {
		var runErr error
		if finish == historystore.StatusFailed {
			runErr = errors.New("step exploded")
		}
		if err := store.RecordFinish(ctx, run.ID, finish, runErr); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}
	}
}

func seedStep(t *testing.T, path string, step historystore.Step) {
	t.Helper()
	store, err := historystore.Open(path)
	if err != nil {
		t.Fatalf("failed to open history store: %v", err)
	}
	defer store.Close()

	if err := store.RecordStep(context.Background(), &step); err != nil {
		t.Fatalf("failed to record step: %v", err)
	}
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryList(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{ID: "run-ok", Pipeline: "alpha"}, historystore.StatusCompleted)
	seedRun(t, path, historystore.Run{ID: "run-bad", Pipeline: "beta"}, historystore.StatusFailed)

	output, err := runCommand(t, "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	for _, want := range []string{"run-ok", "run-bad", "alpha", "beta", "completed", "failed"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestHistoryListFilterStatus(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{ID: "run-ok", Pipeline: "alpha"}, historystore.StatusCompleted)
	seedRun(t, path, historystore.Run{ID: "run-bad", Pipeline: "alpha"}, historystore.StatusFailed)

	output, err := runCommand(t, "list", "--status", "failed")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if !strings.Contains(output, "run-bad") {
		t.Errorf("expected failed run in output, got:\n%s", output)
	}
	if strings.Contains(output, "run-ok") {
		t.Errorf("expected completed run to be filtered out, got:\n%s", output)
	}
}

func TestHistoryListFilterPipeline(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{ID: "run-a", Pipeline: "alpha"}, historystore.StatusCompleted)
	seedRun(t, path, historystore.Run{ID: "run-b", Pipeline: "beta"}, historystore.StatusCompleted)

	output, err := runCommand(t, "list", "--pipeline", "beta")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if !strings.Contains(output, "run-b") || strings.Contains(output, "run-a") {
		t.Errorf("expected only beta runs, got:\n%s", output)
	}
}

func TestHistoryListNoMatches(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{ID: "run-a", Pipeline: "alpha"}, historystore.StatusCompleted)

	output, err := runCommand(t, "list", "--pipeline", "nope")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if !strings.Contains(output, "No runs recorded.") {
		t.Errorf("expected empty message, got %q", output)
	}
}

func TestHistoryListNoDatabase(t *testing.T) {
	setupHistory(t, "")

	_, err := runCommand(t, "list")
	if err == nil {
		t.Fatal("expected error without history database")
	}
	if !strings.Contains(err.Error(), "no run history") {
		t.Errorf("expected no-history error, got %v", err)
	}
}

func TestHistoryShow(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{
		ID:       "run-full",
		Pipeline: "release-notes",
		Provider: "claude",
		Inputs:   map[string]any{"tag": "v1.2.0"},
	}, historystore.StatusCompleted)
	seedStep(t, path, historystore.Step{
		RunID:     "run-full",
		Name:      "collect",
		Index:     0,
		Status:    historystore.StatusCompleted,
		Duration:  2 * time.Second,
		TokensIn:  100,
		TokensOut: 50,
	})
	seedStep(t, path, historystore.Step{
		RunID:    "run-full",
		Name:     "summarize",
		Index:    1,
		Status:   historystore.StatusFailed,
		Error:    "provider timeout",
		Duration: 5 * time.Second,
	})

	output, err := runCommand(t, "show", "run-full")
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	for _, want := range []string{
		"run-full",
		"release-notes",
		"claude",
		"tag = v1.2.0",
		"collect",
		"summarize",
		"provider timeout",
		"Token usage: 100 in / 50 out",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestHistoryShowMissing(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{ID: "run-a", Pipeline: "alpha"}, historystore.StatusCompleted)

	_, err := runCommand(t, "show", "run-nope")
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestHistoryPrune(t *testing.T) {
	path := setupHistory(t, "")
	seedRun(t, path, historystore.Run{
		ID:        "run-old",
		Pipeline:  "alpha",
		StartedAt: time.Now().Add(-48 * time.Hour),
	}, historystore.StatusCompleted)
	seedRun(t, path, historystore.Run{ID: "run-new", Pipeline: "alpha"}, historystore.StatusCompleted)

	output, err := runCommand(t, "prune", "--older-than", "24h")
	if err != nil {
		t.Fatalf("history prune failed: %v", err)
	}
	if !strings.Contains(output, "Deleted 1 run(s)") {
		t.Errorf("expected prune count, got %q", output)
	}

	listOut, err := runCommand(t, "list")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	if strings.Contains(listOut, "run-old") || !strings.Contains(listOut, "run-new") {
		t.Errorf("expected only run-new to survive, got:\n%s", listOut)
	}
}

func TestHistoryPruneUsesRetentionDefault(t *testing.T) {
	path := setupHistory(t, "history:\n  retention_days: 1\n")
	seedRun(t, path, historystore.Run{
		ID:        "run-ancient",
		Pipeline:  "alpha",
		StartedAt: time.Now().Add(-72 * time.Hour),
	}, historystore.StatusCompleted)

	output, err := runCommand(t, "prune")
	if err != nil {
		t.Fatalf("history prune failed: %v", err)
	}
	if !strings.Contains(output, "Deleted 1 run(s)") {
		t.Errorf("expected retention-based prune, got %q", output)
	}
}

func TestHistoryPruneKeepForever(t *testing.T) {
	setupHistory(t, "history:\n  retention_days: 0\n")

	_, err := runCommand(t, "prune")
	if err == nil {
		t.Fatal("expected error when retention is keep-forever")
	}
	if !strings.Contains(err.Error(), "--older-than") {
		t.Errorf("expected flag hint in error, got %v", err)
	}
}

func TestRenderStatus(t *testing.T) {
	// Styles degrade to plain text without a terminal; the status word
	// must always be present.
	for _, status := range []historystore.Status{
		historystore.StatusCompleted,
		historystore.StatusFailed,
		historystore.StatusRunning,
		historystore.StatusCanceled,
	} {
		if got := renderStatus(status); !strings.Contains(got, string(status)) {
			t.Errorf("renderStatus(%s) = %q, missing status word", status, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{250 * time.Millisecond, "250ms"},
		{2500 * time.Millisecond, "2.5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
