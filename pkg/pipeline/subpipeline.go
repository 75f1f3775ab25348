package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/state"
)

// executePipeline loads and runs a child pipeline. The parent resolves
// the declared inputs with its own context before handing them over, so
// references to parent steps and inputs cross the boundary as values;
// expressions the parent cannot resolve are preserved verbatim for the
// child to resolve against its own state.
func (e *Executor) executePipeline(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	if rs.depth+1 > e.limits.MaxDepth {
		return state.Null(), &errors.ValidationError{
			Field:       "pipeline",
			Message:     fmt.Sprintf("pipeline nesting exceeds the depth limit of %d", e.limits.MaxDepth),
			SuggestText: "flatten the pipeline or raise the depth limit",
		}
	}

	path := filepath.Join(rs.baseDir, filepath.FromSlash(step.Pipeline))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state.Null(), &errors.NotFoundError{Resource: "pipeline", ID: step.Pipeline}
		}
		return state.Null(), fmt.Errorf("failed to read pipeline %s: %w", step.Pipeline, err)
	}

	child, err := Parse(data)
	if err != nil {
		return state.Null(), fmt.Errorf("invalid pipeline %s: %w", step.Pipeline, err)
	}

	ec := rs.execContext()
	childInputs := make(map[string]interface{}, len(step.Inputs))
	for name, raw := range step.Inputs {
		childInputs[name] = state.ResolveData(state.FromAny(raw), rs.st, ec).ToAny()
	}

	childOpts := RunOptions{
		RunID:      rs.runID + ":" + step.ID,
		Provider:   rs.opts.Provider,
		BaseDir:    filepath.Dir(path),
		GlobalVars: valuesToAny(rs.st.ScopeVars(state.ScopeGlobal)),
	}

	e.logger.Info("running child pipeline",
		"step", step.ID,
		"pipeline", child.Name,
		"path", step.Pipeline,
		"depth", rs.depth+1,
	)

	res, err := e.execute(ctx, child, childInputs, childOpts, rs.depth+1)
	if res != nil {
		for prov, usage := range res.UsageByProvider {
			rs.usage.Record(prov, usage)
		}
		for _, w := range res.Warnings {
			rs.warnings = append(rs.warnings, fmt.Sprintf("%s: %s", step.ID, w))
		}
	}
	if err != nil {
		return state.Null(), err
	}

	return state.FromAny(res.Outputs), nil
}
