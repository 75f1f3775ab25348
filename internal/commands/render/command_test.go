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

package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/baton/internal/checkpoint"
)

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

func writeCheckpoint(t *testing.T, cp checkpoint.Checkpoint) string {
	t.Helper()
	data, err := json.Marshal(cp)
	if err != nil {
		t.Fatalf("failed to marshal checkpoint: %v", err)
	}
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write checkpoint: %v", err)
	}
	return path
}

func TestRenderLiteralTemplate(t *testing.T) {
	output, err := runCommand(t, "total: {{add(1, 2)}}")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if output != "total: 3\n" {
		t.Errorf("expected %q, got %q", "total: 3\n", output)
	}
}

func TestRenderWithState(t *testing.T) {
	path := writeCheckpoint(t, checkpoint.Checkpoint{
		RunID:    "run-test",
		Pipeline: "demo",
		State: map[string]any{
			"global": map[string]any{"name": "world"},
		},
		Inputs:  map[string]any{"topic": "go"},
		Results: map[string]any{"fetch": map[string]any{"result": "data"}},
	})

	output, err := runCommand(t, "{{name}} {{inputs.topic}} {{steps.fetch.result}}", "--state", path)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if output != "world go data\n" {
		t.Errorf("expected %q, got %q", "world go data\n", output)
	}
}

func TestRenderContextFormsNeedState(t *testing.T) {
	// Without --state there is no execution context, so context
	// reference forms stay as literal markers.
	output, err := runCommand(t, "{{inputs.topic}}")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if output != "{{inputs.topic}}\n" {
		t.Errorf("expected unresolved marker, got %q", output)
	}
}

func TestRenderTemplateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("value is {{multiply(2, 3)}}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	output, err := runCommand(t, path)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if output != "value is 6\n" {
		t.Errorf("expected %q, got %q", "value is 6\n", output)
	}
}

func TestRenderInvalidStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := runCommand(t, "{{name}}", "--state", path)
	if err == nil {
		t.Fatal("expected error for malformed checkpoint")
	}
	if !strings.Contains(err.Error(), "invalid checkpoint file") {
		t.Errorf("expected checkpoint error, got %v", err)
	}
}

func TestRenderMissingStateFile(t *testing.T) {
	_, err := runCommand(t, "{{name}}", "--state", filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing state file")
	}
	if !strings.Contains(err.Error(), "failed to read state file") {
		t.Errorf("expected read error, got %v", err)
	}
}

func TestLoadTemplate(t *testing.T) {
	// A path that exists reads the file; anything else is literal.
	path := filepath.Join(t.TempDir(), "t.txt")
	if err := os.WriteFile(path, []byte("from file"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := loadTemplate(path)
	if err != nil {
		t.Fatalf("loadTemplate failed: %v", err)
	}
	if got != "from file" {
		t.Errorf("expected file contents, got %q", got)
	}

	got, err = loadTemplate("hello {{x}}")
	if err != nil {
		t.Fatalf("loadTemplate failed: %v", err)
	}
	if got != "hello {{x}}" {
		t.Errorf("expected literal template, got %q", got)
	}
}
