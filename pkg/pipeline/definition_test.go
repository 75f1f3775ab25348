package pipeline

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/tombee/baton/pkg/errors"
)

func TestParse_Minimal(t *testing.T) {
	def, err := Parse([]byte(`
name: research
steps:
  - type: agent
    prompt: "Summarize {{inputs.topic}}"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Name != "research" {
		t.Errorf("expected name %q, got %q", "research", def.Name)
	}
	if def.Version != "1.0" {
		t.Errorf("expected default version 1.0, got %q", def.Version)
	}
	if len(def.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(def.Steps))
	}

	step := def.Steps[0]
	if step.ID != "step_1" {
		t.Errorf("expected generated ID step_1, got %q", step.ID)
	}
	if step.Timeout != DefaultAgentStepTimeout {
		t.Errorf("expected agent timeout %d, got %d", DefaultAgentStepTimeout, step.Timeout)
	}
	if step.Model != "balanced" {
		t.Errorf("expected default model balanced, got %q", step.Model)
	}
	if step.OnError != ErrorModeFail {
		t.Errorf("expected default on_error fail, got %q", step.OnError)
	}
}

func TestParse_AutoIDsSkipExplicit(t *testing.T) {
	def, err := Parse([]byte(`
name: test
steps:
  - type: set
    vars: {a: 1}
  - id: step_2
    type: set
    vars: {b: 2}
  - type: set
    vars: {c: 3}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"step_1", "step_2", "step_3"}
	for i, id := range want {
		if def.Steps[i].ID != id {
			t.Errorf("step %d: expected ID %q, got %q", i, id, def.Steps[i].ID)
		}
	}
}

func TestParse_AutoIDsCoverNestedSteps(t *testing.T) {
	def, err := Parse([]byte(`
name: test
steps:
  - type: loop
    items: "{{inputs.files}}"
    steps:
      - type: set
        vars: {current: "{{item}}"}
  - type: set
    vars: {done: true}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Steps[0].ID != "step_1" {
		t.Errorf("expected loop ID step_1, got %q", def.Steps[0].ID)
	}
	if def.Steps[0].Steps[0].ID != "step_2" {
		t.Errorf("expected child ID step_2, got %q", def.Steps[0].Steps[0].ID)
	}
	if def.Steps[1].ID != "step_3" {
		t.Errorf("expected trailing ID step_3, got %q", def.Steps[1].ID)
	}
}

func TestParse_DuplicateIDsAcrossNesting(t *testing.T) {
	_, err := Parse([]byte(`
name: test
steps:
  - id: work
    type: set
    vars: {a: 1}
  - type: parallel
    steps:
      - id: work
        type: set
        vars: {b: 2}
`))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate step ID: work") {
		t.Errorf("expected duplicate ID error, got %q", err.Error())
	}
}

func TestParse_ConditionBranchReferences(t *testing.T) {
	t.Run("valid references", func(t *testing.T) {
		_, err := Parse([]byte(`
name: test
steps:
  - id: gate
    type: condition
    condition: 'inputs.mode == "fast"'
    then: [fast]
    else: [slow]
  - id: fast
    type: set
    vars: {mode: fast}
  - id: slow
    type: set
    vars: {mode: slow}
`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := Parse([]byte(`
name: test
steps:
  - id: gate
    type: condition
    condition: 'inputs.mode == "fast"'
    then: [missing]
`))
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "unknown step: missing") {
			t.Errorf("expected unknown reference error, got %q", err.Error())
		}
	})
}

func TestParse_StepValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing pipeline name",
			yaml:    "steps:\n  - type: set\n    vars: {a: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			yaml:    "name: test\n",
			wantErr: "at least one step",
		},
		{
			name:    "unknown step type",
			yaml:    "name: test\nsteps:\n  - type: teleport\n",
			wantErr: "invalid step type: teleport",
		},
		{
			name:    "agent without prompt",
			yaml:    "name: test\nsteps:\n  - type: agent\n",
			wantErr: "prompt is required",
		},
		{
			name:    "transform without query",
			yaml:    "name: test\nsteps:\n  - type: transform\n",
			wantErr: "query is required",
		},
		{
			name:    "set without vars",
			yaml:    "name: test\nsteps:\n  - type: set\n",
			wantErr: "vars is required",
		},
		{
			name:    "set with invalid scope",
			yaml:    "name: test\nsteps:\n  - type: set\n    scope: galaxy\n    vars: {a: 1}\n",
			wantErr: "invalid scope: galaxy",
		},
		{
			name:    "loop without children",
			yaml:    "name: test\nsteps:\n  - type: loop\n    items: [1, 2]\n",
			wantErr: "loop step requires nested steps",
		},
		{
			name:    "loop without items or until",
			yaml:    "name: test\nsteps:\n  - type: loop\n    steps:\n      - type: set\n        vars: {a: 1}\n",
			wantErr: "requires items, an until expression",
		},
		{
			name:    "until loop without max_iterations",
			yaml:    "name: test\nsteps:\n  - type: loop\n    until: 'vars.done == true'\n    steps:\n      - type: set\n        vars: {a: 1}\n",
			wantErr: "max_iterations is required",
		},
		{
			name:    "nested loop",
			yaml:    "name: test\nsteps:\n  - type: loop\n    items: [1]\n    steps:\n      - type: loop\n        items: [2]\n        steps:\n          - type: set\n            vars: {a: 1}\n",
			wantErr: "nested loops are not supported",
		},
		{
			name:    "parallel without children",
			yaml:    "name: test\nsteps:\n  - type: parallel\n",
			wantErr: "parallel step requires nested steps",
		},
		{
			name:    "pipeline with absolute path",
			yaml:    "name: test\nsteps:\n  - type: pipeline\n    pipeline: /etc/other.yaml\n",
			wantErr: "must be relative",
		},
		{
			name:    "pipeline escaping its directory",
			yaml:    "name: test\nsteps:\n  - type: pipeline\n    pipeline: ../secrets.yaml\n",
			wantErr: "must not traverse",
		},
		{
			name:    "condition without branches",
			yaml:    "name: test\nsteps:\n  - type: condition\n    condition: 'true == true'\n",
			wantErr: "requires a then or else",
		},
		{
			name:    "invalid condition expression",
			yaml:    "name: test\nsteps:\n  - type: set\n    vars: {a: 1}\n    condition: 'inputs.mode =='\n",
			wantErr: "invalid condition expression",
		},
		{
			name:    "invalid until expression",
			yaml:    "name: test\nsteps:\n  - type: loop\n    max_iterations: 3\n    until: 'vars.x >'\n    steps:\n      - type: set\n        vars: {a: 1}\n",
			wantErr: "invalid until expression",
		},
		{
			name:    "invalid on_error mode",
			yaml:    "name: test\nsteps:\n  - type: set\n    vars: {a: 1}\n    on_error: explode\n",
			wantErr: "invalid on_error mode",
		},
		{
			name:    "retry without attempts",
			yaml:    "name: test\nsteps:\n  - type: set\n    vars: {a: 1}\n    on_error: retry\n    retry:\n      max_attempts: 0\n",
			wantErr: "max_attempts must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestApplyDefaults_RetryAndTimeouts(t *testing.T) {
	def, err := Parse([]byte(`
name: test
steps:
  - type: agent
    prompt: "go"
    on_error: retry
  - type: loop
    items: [1, 2]
    steps:
      - type: transform
        query: ".a"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agent := def.Steps[0]
	if agent.Retry == nil {
		t.Fatal("expected default retry configuration")
	}
	if agent.Retry.MaxAttempts != DefaultRetryMaxAttempts {
		t.Errorf("expected max_attempts %d, got %d", DefaultRetryMaxAttempts, agent.Retry.MaxAttempts)
	}
	if agent.Retry.BackoffBase != DefaultRetryBackoffBase {
		t.Errorf("expected backoff_base %d, got %d", DefaultRetryBackoffBase, agent.Retry.BackoffBase)
	}
	if agent.Retry.BackoffMultiplier != DefaultRetryBackoffMultiplier {
		t.Errorf("expected backoff_multiplier %v, got %v", DefaultRetryBackoffMultiplier, agent.Retry.BackoffMultiplier)
	}

	loop := def.Steps[1]
	if loop.Timeout != 0 {
		t.Errorf("expected container step to keep zero timeout, got %d", loop.Timeout)
	}
	if loop.Steps[0].Timeout != DefaultStepTimeout {
		t.Errorf("expected child timeout %d, got %d", DefaultStepTimeout, loop.Steps[0].Timeout)
	}
}

func TestApplyDefaults_SetScope(t *testing.T) {
	def, err := Parse([]byte(`
name: test
steps:
  - type: set
    vars: {a: 1}
  - type: set
    scope: global
    vars: {b: 2}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Steps[0].Scope != "session" {
		t.Errorf("expected default scope session, got %q", def.Steps[0].Scope)
	}
	if def.Steps[1].Scope != "global" {
		t.Errorf("expected explicit scope global, got %q", def.Steps[1].Scope)
	}
}

func TestResolveInputs(t *testing.T) {
	def, err := Parse([]byte(`
name: test
inputs:
  - name: topic
    type: string
  - name: depth
    type: number
    default: 3
  - name: mode
    type: string
    default: quick
    enum: [quick, thorough]
  - name: tag
    type: string
    default: "v1"
    pattern: "^v[0-9]+$"
steps:
  - type: set
    vars: {a: 1}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("defaults applied", func(t *testing.T) {
		resolved, err := def.ResolveInputs(map[string]interface{}{"topic": "go"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resolved["topic"] != "go" {
			t.Errorf("expected topic go, got %v", resolved["topic"])
		}
		if resolved["depth"] != 3 {
			t.Errorf("expected default depth 3, got %v", resolved["depth"])
		}
		if resolved["mode"] != "quick" {
			t.Errorf("expected default mode quick, got %v", resolved["mode"])
		}
	})

	t.Run("required missing", func(t *testing.T) {
		_, err := def.ResolveInputs(nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		var verr *errors.ValidationError
		if !stderrors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %T", err)
		}
		if verr.Field != "topic" {
			t.Errorf("expected field topic, got %q", verr.Field)
		}
	})

	t.Run("unknown input", func(t *testing.T) {
		_, err := def.ResolveInputs(map[string]interface{}{"topic": "go", "bogus": 1})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "unknown input: bogus") {
			t.Errorf("expected unknown input error, got %q", err.Error())
		}
	})

	t.Run("enum violation", func(t *testing.T) {
		_, err := def.ResolveInputs(map[string]interface{}{"topic": "go", "mode": "lazy"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "must be one of") {
			t.Errorf("expected enum error, got %q", err.Error())
		}
	})

	t.Run("pattern violation", func(t *testing.T) {
		_, err := def.ResolveInputs(map[string]interface{}{"topic": "go", "tag": "release-1"})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "must match pattern") {
			t.Errorf("expected pattern error, got %q", err.Error())
		}
	})

	t.Run("number accepts int and float", func(t *testing.T) {
		if _, err := def.ResolveInputs(map[string]interface{}{"topic": "go", "depth": 5}); err != nil {
			t.Errorf("int rejected: %v", err)
		}
		if _, err := def.ResolveInputs(map[string]interface{}{"topic": "go", "depth": 2.5}); err != nil {
			t.Errorf("float rejected: %v", err)
		}
		if _, err := def.ResolveInputs(map[string]interface{}{"topic": "go", "depth": "deep"}); err == nil {
			t.Error("expected error for string depth, got nil")
		}
	})

	t.Run("wrong string type", func(t *testing.T) {
		_, err := def.ResolveInputs(map[string]interface{}{"topic": 42})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "must be a string") {
			t.Errorf("expected type error, got %q", err.Error())
		}
	})
}

func TestMissingInputs(t *testing.T) {
	def, err := Parse([]byte(`
name: test
inputs:
  - name: first
    type: string
  - name: second
    type: string
    default: x
  - name: third
    type: string
steps:
  - type: set
    vars: {a: 1}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missing := def.MissingInputs(map[string]interface{}{"first": "here"})
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing input, got %d", len(missing))
	}
	if missing[0].Name != "third" {
		t.Errorf("expected third, got %q", missing[0].Name)
	}

	missing = def.MissingInputs(nil)
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing inputs, got %d", len(missing))
	}
	if missing[0].Name != "first" || missing[1].Name != "third" {
		t.Errorf("expected declaration order [first third], got [%s %s]", missing[0].Name, missing[1].Name)
	}
}

func TestInputDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   InputDefinition
		wantErr string
	}{
		{
			name:    "missing type",
			input:   InputDefinition{Name: "x"},
			wantErr: "input type is required",
		},
		{
			name:    "unknown type",
			input:   InputDefinition{Name: "x", Type: "decimal"},
			wantErr: "invalid input type",
		},
		{
			name:    "pattern on number",
			input:   InputDefinition{Name: "x", Type: "number", Pattern: "^a$"},
			wantErr: "pattern can only be used with string",
		},
		{
			name:    "enum on number",
			input:   InputDefinition{Name: "x", Type: "number", Enum: []string{"a"}},
			wantErr: "enum can only be used with string",
		},
		{
			name:    "bad regex",
			input:   InputDefinition{Name: "x", Type: "string", Pattern: "["},
			wantErr: "invalid pattern regex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
