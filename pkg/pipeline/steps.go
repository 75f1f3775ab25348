package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tombee/baton/pkg/llm"
	"github.com/tombee/baton/pkg/state"
)

// executeAgent resolves the prompt, calls the provider, and records the
// response under the result wrapper so later steps address it as
// steps.<id>.result.
func (e *Executor) executeAgent(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	prov, err := e.selectProvider(rs, step)
	if err != nil {
		return state.Null(), err
	}

	ec := rs.execContext()
	prompt := state.InterpolateWithContext(step.Prompt, rs.st, ec)
	system := state.InterpolateWithContext(step.System, rs.st, ec)

	if strings.Contains(prompt, "{{") {
		e.logger.Warn("prompt contains unresolved expressions",
			"step", step.ID,
		)
		e.metrics.RecordInterpolationMiss(ctx, rs.def.Name, step.ID)
	}

	req := &llm.Request{
		Model:       step.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   step.MaxTokens,
		Temperature: step.Temperature,
	}

	started := time.Now()
	resp, err := prov.Complete(ctx, req)
	latency := time.Since(started)

	if err != nil {
		e.metrics.RecordProviderRequest(ctx, prov.Name(), step.Model, "error", 0, 0, latency)
		return state.Null(), err
	}

	e.metrics.RecordProviderRequest(ctx, prov.Name(), resp.Model, "success",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, latency)
	rs.usage.Record(prov.Name(), resp.Usage)

	return state.Map(map[string]state.Value{
		"result": state.String(resp.Text),
		"model":  state.String(resp.Model),
		"usage": state.Map(map[string]state.Value{
			"input_tokens":  state.Int(int64(resp.Usage.InputTokens)),
			"output_tokens": state.Int(int64(resp.Usage.OutputTokens)),
		}),
	}), nil
}

// selectProvider picks the provider for an agent step: the run-level
// override wins, then the step's own provider, then the registry default.
func (e *Executor) selectProvider(rs *run, step *StepDefinition) (llm.Provider, error) {
	name := rs.opts.Provider
	if name == "" {
		name = step.Provider
	}
	if name == "" {
		return e.registry.GetDefault()
	}
	return e.registry.Get(name)
}

// executeTransform resolves the step's inputs, then runs the jq query
// over them. The query input is the value under the "data" key when the
// step declares one, otherwise the whole resolved input map.
func (e *Executor) executeTransform(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	ec := rs.execContext()
	resolved := make(map[string]state.Value, len(step.Inputs))
	for name, raw := range step.Inputs {
		resolved[name] = state.ResolveData(state.FromAny(raw), rs.st, ec)
	}

	var input any
	if data, ok := resolved["data"]; ok && len(resolved) == 1 {
		input = data.ToAny()
	} else {
		input = valuesToAny(resolved)
	}

	out, err := e.jq.Execute(ctx, step.Query, input)
	if err != nil {
		return state.Null(), fmt.Errorf("transform query failed: %w", err)
	}

	return state.FromAny(out), nil
}

// executeSet resolves each variable value and writes the batch into the
// step's scope. The step records the resolved assignments so later steps
// can reference them through the step result as well.
func (e *Executor) executeSet(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	ec := rs.execContext()
	resolved := make(map[string]state.Value, len(step.Vars))
	for name, raw := range step.Vars {
		resolved[name] = state.ResolveData(state.FromAny(raw), rs.st, ec)
	}

	scope := state.Scope(step.Scope)
	rs.st = rs.st.SetVariables(resolved, scope)

	e.logger.Debug("variables set",
		"step", step.ID,
		"scope", step.Scope,
		"count", len(resolved),
	)

	return state.Map(resolved), nil
}

// executeCondition evaluates the expression and gates the branch steps:
// steps on the not-taken branch are marked skipped, steps on the taken
// branch are re-enabled in case an earlier condition disabled them.
func (e *Executor) executeCondition(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	met, err := e.eval.Evaluate(step.Condition, rs.exprEnv())
	if err != nil {
		return state.Null(), err
	}

	branch := "else"
	enabled, disabled := step.Else, step.Then
	if met {
		branch = "then"
		enabled, disabled = step.Then, step.Else
	}
	for _, id := range disabled {
		rs.skip[id] = true
	}
	for _, id := range enabled {
		delete(rs.skip, id)
	}

	e.logger.Debug("condition evaluated",
		"step", step.ID,
		"result", met,
		"branch", branch,
	)

	return state.Map(map[string]state.Value{
		"result": state.Bool(met),
		"branch": state.String(branch),
	}), nil
}
