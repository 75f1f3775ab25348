package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	batonerrors "github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/state"
)

// Loop termination reasons recorded under terminated_by.
const (
	loopTerminatedByCondition     = "condition"
	loopTerminatedByItems         = "items"
	loopTerminatedByMaxIterations = "max_iterations"
)

// executeLoop runs the child steps repeatedly, rebinding the loop scope
// each iteration. With items the loop walks the list; an until
// expression is checked after each iteration, so the body always runs
// at least once when the bound allows it.
func (e *Executor) executeLoop(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	ec := rs.execContext()

	var items []state.Value
	hasItems := step.Items != nil
	if hasItems {
		resolved := state.ResolveData(state.FromAny(step.Items), rs.st, ec)
		list, ok := resolved.AsList()
		if !ok {
			return state.Null(), &batonerrors.ValidationError{
				Field:       "items",
				Message:     fmt.Sprintf("items must resolve to a list, got %s", resolved.Kind()),
				SuggestText: "reference a list-valued input or step result",
			}
		}
		items = list
	}

	bound := step.MaxIterations
	reason := loopTerminatedByMaxIterations
	if hasItems {
		bound = len(items)
		reason = loopTerminatedByItems
		if step.MaxIterations > 0 && step.MaxIterations < bound {
			bound = step.MaxIterations
			reason = loopTerminatedByMaxIterations
		}
	}
	if bound > e.limits.MaxLoopIterations {
		e.logger.Warn("loop bound exceeds the iteration limit, capping",
			"step", step.ID,
			"bound", bound,
			"limit", e.limits.MaxLoopIterations,
		)
		bound = e.limits.MaxLoopIterations
		reason = loopTerminatedByMaxIterations
	}

	// The loop scope must not outlive the loop, whichever way it exits.
	defer func() {
		rs.st = rs.st.ClearScope(state.ScopeLoop)
	}()

	iterations := 0
	for i := 0; i < bound; i++ {
		if err := ctx.Err(); err != nil {
			return state.Null(), err
		}

		bindings := map[string]state.Value{
			"index":     state.Int(int64(i)),
			"iteration": state.Int(int64(i + 1)),
			"first":     state.Bool(i == 0),
			"last":      state.Bool(i == bound-1),
		}
		if hasItems {
			bindings["item"] = items[i]
		}
		rs.st = rs.st.ClearScope(state.ScopeLoop)
		rs.st = rs.st.SetVariables(bindings, state.ScopeLoop)
		iterations = i + 1

		for j := range step.Steps {
			child := &step.Steps[j]
			if err := e.runStep(ctx, rs, child); err != nil {
				if step.OnError == ErrorModeContinue {
					e.logger.Warn("loop iteration failed, continuing",
						"step", step.ID,
						"iteration", i+1,
						"error", err,
					)
					break
				}
				return state.Null(), fmt.Errorf("iteration %d: %w", i+1, err)
			}
		}

		if step.Until != "" {
			met, err := e.eval.Evaluate(step.Until, rs.exprEnv())
			if err != nil {
				e.logger.Warn("until evaluation failed, treating as not met",
					"step", step.ID,
					"until", step.Until,
					"error", err,
				)
				met = false
			}
			if met {
				reason = loopTerminatedByCondition
				break
			}
		}
	}

	return state.Map(map[string]state.Value{
		"iterations":    state.Int(int64(iterations)),
		"terminated_by": state.String(reason),
	}), nil
}

// executeParallel runs each child step as a branch on its own copy of
// the run. Branches share the immutable state value from the fork;
// afterwards only step results are merged back, never state changes.
func (e *Executor) executeParallel(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	children := step.Steps

	// Keys present at the fork stay owned by the parent; a branch only
	// contributes results it produced itself.
	atFork := make(map[string]bool, len(rs.results))
	for k := range rs.results {
		atFork[k] = true
	}

	failFast := step.OnError != ErrorModeContinue
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, e.limits.MaxParallel)
	branches := make([]*run, len(children))
	branchErrs := make([]error, len(children))

	var wg sync.WaitGroup
	for i := range children {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-cctx.Done():
				branchErrs[i] = cctx.Err()
				return
			}
			defer func() { <-sem }()

			brs := rs.branch()
			branches[i] = brs
			if err := e.runStep(cctx, brs, &children[i]); err != nil {
				branchErrs[i] = err
				if failFast {
					cancel()
				}
			}
		}(i)
	}
	wg.Wait()

	// Merge in declaration order so outcomes and results are
	// deterministic regardless of which branch finished first.
	for i := range children {
		brs := branches[i]
		if brs == nil {
			continue
		}
		rs.outcomes = append(rs.outcomes, brs.outcomes...)
		rs.warnings = append(rs.warnings, brs.warnings...)
		for k, v := range brs.results {
			if !atFork[k] {
				rs.results[k] = v
			}
		}
	}

	if err := firstBranchError(branchErrs); err != nil {
		return state.Null(), err
	}

	out := make(map[string]state.Value, len(children))
	for i := range children {
		if v, ok := rs.results[children[i].ID]; ok {
			out[children[i].ID] = v
		}
	}
	return state.Map(out), nil
}

// firstBranchError picks the error to surface for a parallel step. A
// real failure beats a cancellation, since fail-fast cancels the
// remaining branches and their context errors would mask the cause.
func firstBranchError(errs []error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			if canceled == nil {
				canceled = err
			}
			continue
		}
		return err
	}
	return canceled
}
