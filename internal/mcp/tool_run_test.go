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

package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/baton/pkg/llm"
	"github.com/tombee/baton/pkg/llm/providers"
	"github.com/tombee/baton/pkg/pipeline"
)

func newTestServer(t *testing.T, mock *providers.MockProvider) *Server {
	t.Helper()

	reg := llm.NewRegistry()
	if err := reg.Register(mock); err != nil {
		t.Fatalf("failed to register mock provider: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := pipeline.NewExecutor(reg).WithLogger(logger)

	srv, err := NewServer(Config{Executor: exec})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return srv
}

func parsePipeline(t *testing.T, doc string) *pipeline.Definition {
	t.Helper()
	def, err := pipeline.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("failed to parse pipeline: %v", err)
	}
	return def
}

func TestBuildExecutionPlan(t *testing.T) {
	def := parsePipeline(t, `
name: plan-test
steps:
  - id: fetch
    type: agent
    prompt: "fetch"
  - id: gate
    type: condition
    condition: "steps.fetch.result == 'ok'"
    then: [happy]
    else: [sad]
  - id: happy
    type: agent
    prompt: "happy"
  - id: sad
    type: agent
    prompt: "sad"
  - id: each
    type: loop
    items: [1, 2]
    steps:
      - id: inner
        type: agent
        prompt: "inner"
  - id: maybe
    type: agent
    prompt: "maybe"
    condition: "vars.flag"
`)

	plan := buildExecutionPlan(def)

	wantOrder := []string{"fetch", "gate", "happy", "sad", "each", "inner", "maybe"}
	if len(plan) != len(wantOrder) {
		t.Fatalf("plan has %d entries, want %d: %+v", len(plan), len(wantOrder), plan)
	}

	wantStatus := map[string]string{
		"fetch": "pending",
		"gate":  "pending",
		"happy": "conditional",
		"sad":   "conditional",
		"each":  "pending",
		"inner": "pending",
		"maybe": "conditional",
	}
	for i, entry := range plan {
		if entry.StepID != wantOrder[i] {
			t.Errorf("plan[%d].StepID = %q, want %q", i, entry.StepID, wantOrder[i])
		}
		if want := wantStatus[entry.StepID]; entry.Status != want {
			t.Errorf("plan entry %s status = %q, want %q", entry.StepID, entry.Status, want)
		}
	}
}

func TestExecutePipeline_Success(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider())

	doc := `
name: greeter
inputs:
  - name: name
    type: string
steps:
  - id: greet
    type: agent
    prompt: "Hi {{inputs.name}}"
outputs:
  - name: greeting
    value: "{{steps.greet.result}}"
`
	path := filepath.Join(t.TempDir(), "greeter.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write pipeline: %v", err)
	}
	def := parsePipeline(t, doc)

	result := srv.executePipeline(context.Background(), def, path, map[string]interface{}{"name": "go"})

	if !result.Success {
		t.Fatalf("expected success, got error: %+v", result.Error)
	}
	if result.Mode != "executed" {
		t.Errorf("result.Mode = %q, want %q", result.Mode, "executed")
	}
	if got := result.Outputs["greeting"]; got != "[mock] Hi go" {
		t.Errorf("outputs.greeting = %v, want %q", got, "[mock] Hi go")
	}
}

func TestExecutePipeline_StepFailure(t *testing.T) {
	mock := providers.NewMockProvider()
	mock.Err = fmt.Errorf("provider exploded")
	srv := newTestServer(t, mock)

	def := parsePipeline(t, `
name: doomed
steps:
  - id: greet
    type: agent
    prompt: "Hi"
`)

	result := srv.executePipeline(context.Background(), def, "doomed.yaml", nil)

	if result.Success {
		t.Fatal("expected failure, got success")
	}
	if result.Error == nil {
		t.Fatal("expected an error payload")
	}
	if result.Error.StepID != "greet" {
		t.Errorf("error.StepID = %q, want %q", result.Error.StepID, "greet")
	}
	if !strings.Contains(result.Error.Message, "provider exploded") {
		t.Errorf("error.Message = %q, want it to mention the cause", result.Error.Message)
	}
}

func TestExecutePipeline_MissingRequiredInput(t *testing.T) {
	srv := newTestServer(t, providers.NewMockProvider())

	def := parsePipeline(t, `
name: needs-input
inputs:
  - name: topic
    type: string
steps:
  - id: write
    type: agent
    prompt: "{{inputs.topic}}"
`)

	result := srv.executePipeline(context.Background(), def, "needs-input.yaml", nil)

	if result.Success {
		t.Fatal("expected failure, got success")
	}
	if result.Error == nil {
		t.Fatal("expected an error payload")
	}
	if !strings.Contains(result.Error.Message, "required input missing") {
		t.Errorf("error.Message = %q, want missing-input error", result.Error.Message)
	}
	if result.Error.StepID != "" {
		t.Errorf("error.StepID = %q, want empty for pre-step failures", result.Error.StepID)
	}
}
