package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/llm/providers"
)

func writePipeline(t *testing.T, dir, name, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write pipeline file: %v", err)
	}
}

func TestPipelineStep_RunsChild(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "child.yaml", `
name: child
inputs:
  - name: text
    type: string
steps:
  - id: shout
    type: transform
    query: '. + "!"'
    inputs:
      data: "{{inputs.text}}"
outputs:
  - name: loud
    value: "{{steps.shout}}"
  - name: region
    value: "{{global_vars.region}}"
`)

	e := newTestExecutor(t)
	def := mustParse(t, `
name: parent
vars:
  region: eu
inputs:
  - name: word
    type: string
steps:
  - id: call
    type: pipeline
    pipeline: child.yaml
    inputs:
      text: "{{inputs.word}}"
outputs:
  - name: result
    value: "{{steps.call.loud}}"
  - name: region
    value: "{{steps.call.region}}"
`)

	res, err := e.Run(context.Background(), def, map[string]interface{}{"word": "hello"}, RunOptions{BaseDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Outputs["result"] != "hello!" {
		t.Errorf("expected child output hello!, got %v", res.Outputs["result"])
	}
	if res.Outputs["region"] != "eu" {
		t.Errorf("expected globals threaded into the child, got %v", res.Outputs["region"])
	}
	out, ok := outcomeByID(res, "call")
	if !ok || out.Status != StepStatusSuccess {
		t.Errorf("expected pipeline step success, got %+v", out)
	}
}

func TestPipelineStep_UnresolvedReferencesCrossAsLiterals(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "child.yaml", `
name: child
inputs:
  - name: text
    type: string
steps:
  - id: shout
    type: transform
    query: '. + "!"'
    inputs:
      data: "{{inputs.text}}"
outputs:
  - name: loud
    value: "{{steps.shout}}"
`)

	e := newTestExecutor(t)
	def := mustParse(t, `
name: parent
steps:
  - id: call
    type: pipeline
    pipeline: child.yaml
    inputs:
      text: "{{steps.missing.result}}"
outputs:
  - name: result
    value: "{{steps.call.loud}}"
`)

	res, err := e.Run(context.Background(), def, nil, RunOptions{BaseDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The parent cannot resolve the reference, so the child receives the
	// expression text verbatim as a plain value.
	if res.Outputs["result"] != "{{steps.missing.result}}!" {
		t.Errorf("expected preserved expression to flow through, got %v", res.Outputs["result"])
	}
}

func TestPipelineStep_DepthLimit(t *testing.T) {
	dir := t.TempDir()
	doc := `
name: recursive
steps:
  - id: again
    type: pipeline
    pipeline: self.yaml
`
	writePipeline(t, dir, "self.yaml", doc)

	e := newTestExecutor(t).WithLimits(Limits{MaxDepth: 2})
	def := mustParse(t, doc)

	_, err := e.Run(context.Background(), def, nil, RunOptions{BaseDir: dir})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "depth limit") {
		t.Errorf("expected depth limit error, got %q", err.Error())
	}
}

func TestPipelineStep_MissingFile(t *testing.T) {
	e := newTestExecutor(t)
	def := mustParse(t, `
name: parent
steps:
  - id: call
    type: pipeline
    pipeline: nope.yaml
`)

	_, err := e.Run(context.Background(), def, nil, RunOptions{BaseDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var nferr *errors.NotFoundError
	if !stderrors.As(err, &nferr) {
		t.Fatalf("expected NotFoundError, got %T", err)
	}
	if nferr.Resource != "pipeline" {
		t.Errorf("expected pipeline resource, got %q", nferr.Resource)
	}
}

func TestPipelineStep_ChildUsageRollsUp(t *testing.T) {
	dir := t.TempDir()
	writePipeline(t, dir, "child.yaml", `
name: child
steps:
  - id: ask
    type: agent
    prompt: "hi"
outputs:
  - name: text
    value: "{{steps.ask.result}}"
`)

	mock := providers.NewMockProvider()
	e := newTestExecutor(t, mock)
	def := mustParse(t, `
name: parent
steps:
  - id: call
    type: pipeline
    pipeline: child.yaml
outputs:
  - name: text
    value: "{{steps.call.text}}"
`)

	res, err := e.Run(context.Background(), def, nil, RunOptions{BaseDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Outputs["text"] != "[mock] hi" {
		t.Errorf("expected child agent output, got %v", res.Outputs["text"])
	}
	if res.Usage.OutputTokens == 0 {
		t.Error("expected child token usage rolled up into the parent")
	}
	if _, ok := res.UsageByProvider["mock"]; !ok {
		t.Errorf("expected per-provider usage for mock, got %v", res.UsageByProvider)
	}
}
