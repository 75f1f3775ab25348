package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tombee/baton/internal/checkpoint"
	"github.com/tombee/baton/internal/history"
	"github.com/tombee/baton/internal/jq"
	"github.com/tombee/baton/internal/log"
	"github.com/tombee/baton/internal/telemetry"
	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/llm"
	"github.com/tombee/baton/pkg/state"
)

// StepStatus is the terminal status of an executed step.
type StepStatus string

const (
	// StepStatusSuccess indicates the step completed.
	StepStatusSuccess StepStatus = "success"
	// StepStatusFailed indicates the step failed after all attempts.
	StepStatusFailed StepStatus = "failed"
	// StepStatusSkipped indicates a condition kept the step from running.
	StepStatusSkipped StepStatus = "skipped"
)

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	// RunStatusCompleted indicates every step finished or was skipped.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the run stopped on a step failure.
	RunStatusFailed RunStatus = "failed"
)

// StepOutcome summarizes one step execution within a run.
type StepOutcome struct {
	// ID is the step identifier.
	ID string

	// Type is the step type.
	Type StepType

	// Status is the terminal step status.
	Status StepStatus

	// Attempts is how many times the step executed (>1 under retry).
	Attempts int

	// Error is the failure message for failed steps.
	Error string

	// Duration is the wall time spent on the step.
	Duration time.Duration

	// TokensIn and TokensOut carry agent step token usage.
	TokensIn  int
	TokensOut int
}

// Result is the outcome of a pipeline run.
type Result struct {
	// RunID identifies the run in history and checkpoints.
	RunID string

	// Pipeline is the definition name.
	Pipeline string

	// Status is the terminal run status.
	Status RunStatus

	// Outputs holds the resolved output values.
	Outputs map[string]interface{}

	// Steps lists the outcome of each step executed in this run.
	Steps []StepOutcome

	// State is the final variable state, useful for rendering and debugging.
	State state.State

	// Usage aggregates token usage across all provider calls.
	Usage llm.TokenUsage

	// UsageByProvider breaks token usage down per provider.
	UsageByProvider map[string]llm.TokenUsage

	// Warnings lists non-fatal problems, such as unresolved outputs.
	Warnings []string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is the total run wall time.
	Duration time.Duration
}

// Limits bounds run resource usage.
type Limits struct {
	// MaxParallel caps concurrent branches in parallel steps.
	MaxParallel int

	// MaxLoopIterations hard-caps loop iterations regardless of the
	// step's own bound.
	MaxLoopIterations int

	// MaxDepth caps pipeline step nesting.
	MaxDepth int

	// RunTimeout bounds a whole top-level run. Zero means no bound.
	RunTimeout time.Duration
}

// DefaultLimits returns the standard run limits.
func DefaultLimits() Limits {
	return Limits{
		MaxParallel:       4,
		MaxLoopIterations: 100,
		MaxDepth:          5,
		RunTimeout:        30 * time.Minute,
	}
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// RunID names the run. Empty assigns a new UUID.
	RunID string

	// Provider overrides provider selection for every agent step.
	Provider string

	// Resume continues the checkpointed run identified by RunID,
	// skipping steps the checkpoint records as completed. With an empty
	// RunID the most recent checkpoint is resumed.
	Resume bool

	// BaseDir is the directory child pipeline paths resolve against.
	BaseDir string

	// GlobalVars seeds the global scope before vars are applied. Used
	// by parent runs to thread globals into child pipelines.
	GlobalVars map[string]interface{}
}

// Executor runs pipeline definitions. One Executor serves many runs;
// all per-run data lives on the run, so concurrent Run calls are safe.
type Executor struct {
	registry    *llm.Registry
	logger      *slog.Logger
	stepLog     *log.StepMiddleware
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
	checkpoints *checkpoint.Manager
	history     *history.Store
	jq          *jq.Executor
	eval        *Evaluator
	limits      Limits
}

// NewExecutor creates an executor backed by the given provider registry.
func NewExecutor(registry *llm.Registry) *Executor {
	logger := slog.Default()
	return &Executor{
		registry: registry,
		logger:   logger,
		stepLog:  log.NewStepMiddleware(logger),
		tracer:   noop.NewTracerProvider().Tracer("pipeline"),
		jq:       jq.NewExecutor(jq.DefaultTimeout, jq.DefaultMaxInputSize),
		eval:     NewEvaluator(),
		limits:   DefaultLimits(),
	}
}

// WithLogger sets the executor's logger.
func (e *Executor) WithLogger(logger *slog.Logger) *Executor {
	e.logger = logger
	e.stepLog = log.NewStepMiddleware(logger)
	return e
}

// WithMetrics sets the metrics recorder. Nil is accepted and disables
// metric recording.
func (e *Executor) WithMetrics(m *telemetry.Metrics) *Executor {
	e.metrics = m
	return e
}

// WithTracer sets the tracer used for run and step spans.
func (e *Executor) WithTracer(t trace.Tracer) *Executor {
	if t != nil {
		e.tracer = t
	}
	return e
}

// WithCheckpoints enables checkpoint persistence.
func (e *Executor) WithCheckpoints(m *checkpoint.Manager) *Executor {
	e.checkpoints = m
	return e
}

// WithHistory enables run history recording.
func (e *Executor) WithHistory(s *history.Store) *Executor {
	e.history = s
	return e
}

// WithLimits replaces the default run limits.
func (e *Executor) WithLimits(l Limits) *Executor {
	if l.MaxParallel <= 0 {
		l.MaxParallel = DefaultLimits().MaxParallel
	}
	if l.MaxLoopIterations <= 0 {
		l.MaxLoopIterations = DefaultLimits().MaxLoopIterations
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultLimits().MaxDepth
	}
	e.limits = l
	return e
}

// run carries the mutable state of one run. Parallel branches get their
// own copy via branch(), so a run value is only ever touched by one
// goroutine.
type run struct {
	def       *Definition
	opts      RunOptions
	runID     string
	baseDir   string
	depth     int
	stepIndex int

	st        state.State
	inputs    map[string]state.Value
	inputsAny map[string]interface{}
	results   map[string]state.Value
	skip      map[string]bool
	outcomes  []StepOutcome
	usage     *llm.UsageTracker
	warnings  []string
	startedAt time.Time
}

// execContext builds the cross-boundary reference context for template
// resolution from the run's current results, inputs, and globals.
func (rs *run) execContext() *state.ExecContext {
	return &state.ExecContext{
		Results:    rs.results,
		Inputs:     rs.inputs,
		GlobalVars: rs.st.ScopeVars(state.ScopeGlobal),
	}
}

// exprEnv builds the environment condition and until expressions run in.
func (rs *run) exprEnv() map[string]interface{} {
	return map[string]interface{}{
		"inputs": valuesToAny(rs.inputs),
		"steps":  valuesToAny(rs.results),
		"vars":   valuesToAny(rs.st.All()),
	}
}

// branch clones the run for a parallel branch: the immutable state value
// is shared as-is, results and the skip set are copied, and outcomes
// start empty so the parent can merge them back in branch order. The
// usage tracker is shared; it is safe for concurrent use.
func (rs *run) branch() *run {
	results := make(map[string]state.Value, len(rs.results))
	for k, v := range rs.results {
		results[k] = v
	}
	skip := make(map[string]bool, len(rs.skip))
	for k, v := range rs.skip {
		skip[k] = v
	}
	clone := *rs
	clone.results = results
	clone.skip = skip
	clone.outcomes = nil
	clone.warnings = nil
	return &clone
}

// Run executes a pipeline definition to completion. The returned Result
// is non-nil even on error, carrying the outcomes of the steps that did
// run.
func (e *Executor) Run(ctx context.Context, def *Definition, inputs map[string]interface{}, opts RunOptions) (*Result, error) {
	return e.execute(ctx, def, inputs, opts, 0)
}

func (e *Executor) execute(ctx context.Context, def *Definition, inputs map[string]interface{}, opts RunOptions, depth int) (*Result, error) {
	rs := &run{
		def:       def,
		opts:      opts,
		runID:     opts.RunID,
		baseDir:   opts.BaseDir,
		depth:     depth,
		results:   make(map[string]state.Value),
		skip:      make(map[string]bool),
		usage:     llm.NewUsageTracker(),
		st:        state.New(),
		startedAt: time.Now(),
	}
	if rs.runID == "" {
		rs.runID = uuid.NewString()
	}

	resumeIndex := -1
	if opts.Resume && depth == 0 {
		idx, err := e.loadCheckpoint(ctx, rs, inputs)
		if err != nil {
			return nil, err
		}
		resumeIndex = idx
	}

	if rs.inputsAny == nil {
		resolved, err := def.ResolveInputs(inputs)
		if err != nil {
			return nil, err
		}
		rs.inputsAny = resolved
	}
	rs.inputs = state.FromAnyMap(rs.inputsAny)

	// Globals threaded in by a parent run bind before the document's
	// own vars, so a child document can shadow them.
	if resumeIndex < 0 {
		if len(opts.GlobalVars) > 0 {
			rs.st = rs.st.SetVariables(state.FromAnyMap(opts.GlobalVars), state.ScopeGlobal)
		}
		if len(def.Vars) > 0 {
			rs.st = rs.st.SetVariables(state.FromAnyMap(def.Vars), state.ScopeGlobal)
		}
	}

	if depth == 0 && e.limits.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.limits.RunTimeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.name", def.Name),
		attribute.String("run.id", rs.runID),
	))
	defer span.End()

	logger := log.WithRunContext(e.logger, rs.runID, def.Name)
	logger.Info("run started",
		"steps", len(def.Steps),
		"resumed", resumeIndex >= 0,
	)

	if depth == 0 {
		e.recordRunStart(ctx, rs)
	}

	var runErr error
	for i := range def.Steps {
		step := &def.Steps[i]
		if i <= resumeIndex {
			logger.Debug("skipping completed step", "step", step.ID, "index", i)
			continue
		}
		rs.stepIndex = i

		if err := e.runStep(ctx, rs, step); err != nil {
			runErr = &errors.StepError{Pipeline: def.Name, Step: step.ID, Cause: err}
			break
		}

		if depth == 0 {
			e.saveCheckpoint(ctx, rs, step.ID, i)
		}
	}

	result := e.finishRun(ctx, rs, span, logger, runErr)
	return result, runErr
}

// runStep executes one step: condition gates, retry, dispatch, and
// recording. Returns an error only when the failure should stop the
// caller's sequence; OnError continue swallows the error here.
func (e *Executor) runStep(ctx context.Context, rs *run, step *StepDefinition) error {
	if rs.skip[step.ID] {
		e.logger.Debug("step skipped by condition branch", "step", step.ID)
		rs.outcomes = append(rs.outcomes, StepOutcome{ID: step.ID, Type: step.Type, Status: StepStatusSkipped})
		return nil
	}

	if step.Condition != "" && step.Type != StepTypeCondition {
		shouldRun, err := e.eval.Evaluate(step.Condition, rs.exprEnv())
		if err != nil {
			return fmt.Errorf("evaluate condition: %w", err)
		}
		if !shouldRun {
			e.logger.Debug("step skipped, condition false",
				"step", step.ID,
				"condition", step.Condition,
			)
			rs.outcomes = append(rs.outcomes, StepOutcome{ID: step.ID, Type: step.Type, Status: StepStatusSkipped})
			return nil
		}
	}

	ev := &log.StepEvent{
		RunID:    rs.runID,
		Pipeline: rs.def.Name,
		Step:     step.ID,
		Type:     string(step.Type),
	}

	started := time.Now()
	var value state.Value
	var attempts int
	err := e.stepLog.Handler(ev, func() error {
		var execErr error
		value, attempts, execErr = e.executeWithRetry(ctx, rs, step)
		return execErr
	})
	duration := time.Since(started)

	outcome := StepOutcome{
		ID:       step.ID,
		Type:     step.Type,
		Status:   StepStatusSuccess,
		Attempts: attempts,
		Duration: duration,
	}

	if err != nil {
		outcome.Status = StepStatusFailed
		outcome.Error = err.Error()
		rs.outcomes = append(rs.outcomes, outcome)
		e.metrics.RecordStep(ctx, rs.def.Name, step.ID, string(StepStatusFailed), duration)
		e.recordStep(ctx, rs, step, &outcome)

		if step.OnError == ErrorModeContinue {
			e.logger.Warn("step failed, continuing",
				"step", step.ID,
				"error", err,
			)
			return nil
		}
		return err
	}

	rs.results[step.ID] = value
	rs.st = rs.st.SetStepInfo(step.ID, rs.stepIndex)

	outcome.TokensIn, outcome.TokensOut = tokensFromResult(value)
	rs.outcomes = append(rs.outcomes, outcome)
	e.metrics.RecordStep(ctx, rs.def.Name, step.ID, string(StepStatusSuccess), duration)
	e.recordStep(ctx, rs, step, &outcome)

	return nil
}

// executeWithRetry dispatches a step, re-executing per the retry
// configuration when OnError is retry. Attempts reports how many
// executions happened.
func (e *Executor) executeWithRetry(ctx context.Context, rs *run, step *StepDefinition) (state.Value, int, error) {
	maxAttempts := 1
	backoff := time.Duration(DefaultRetryBackoffBase) * time.Second
	multiplier := DefaultRetryBackoffMultiplier
	if step.OnError == ErrorModeRetry && step.Retry != nil {
		maxAttempts = step.Retry.MaxAttempts
		if step.Retry.BackoffBase > 0 {
			backoff = time.Duration(step.Retry.BackoffBase) * time.Second
		}
		if step.Retry.BackoffMultiplier >= 1.0 {
			multiplier = step.Retry.BackoffMultiplier
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := e.executeStep(ctx, rs, step)
		if err == nil {
			return value, attempt, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		e.logger.Warn("step attempt failed, retrying",
			"step", step.ID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return state.Null(), attempt, ctx.Err()
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * multiplier)
		}
	}

	if maxAttempts > 1 {
		return state.Null(), maxAttempts, fmt.Errorf("step failed after %d attempts: %w", maxAttempts, lastErr)
	}
	return state.Null(), 1, lastErr
}

// executeStep applies the step timeout and dispatches on type, wrapping
// the execution in a span.
func (e *Executor) executeStep(ctx context.Context, rs *run, step *StepDefinition) (state.Value, error) {
	timeout := time.Duration(step.Timeout) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "pipeline.step", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.type", string(step.Type)),
	))
	defer span.End()

	var value state.Value
	var err error
	switch step.Type {
	case StepTypeAgent:
		value, err = e.executeAgent(ctx, rs, step)
	case StepTypeTransform:
		value, err = e.executeTransform(ctx, rs, step)
	case StepTypeSet:
		value, err = e.executeSet(ctx, rs, step)
	case StepTypeCondition:
		value, err = e.executeCondition(ctx, rs, step)
	case StepTypeLoop:
		value, err = e.executeLoop(ctx, rs, step)
	case StepTypeParallel:
		value, err = e.executeParallel(ctx, rs, step)
	case StepTypePipeline:
		value, err = e.executePipeline(ctx, rs, step)
	default:
		err = &errors.ValidationError{
			Field:       "type",
			Message:     fmt.Sprintf("unsupported step type: %s", step.Type),
			SuggestText: "use one of: agent, transform, set, loop, parallel, pipeline, condition",
		}
	}

	if err != nil {
		if timeout > 0 && ctx.Err() == context.DeadlineExceeded {
			err = &errors.TimeoutError{
				Operation: fmt.Sprintf("step %s", step.ID),
				Duration:  timeout,
				Cause:     err,
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state.Null(), err
	}

	span.SetStatus(codes.Ok, "")
	return value, nil
}

// finishRun resolves outputs, closes out recording, and assembles the
// Result. Called for both completed and failed runs.
func (e *Executor) finishRun(ctx context.Context, rs *run, span trace.Span, logger *slog.Logger, runErr error) *Result {
	status := RunStatusCompleted
	if runErr != nil {
		status = RunStatusFailed
	}

	outputs := make(map[string]interface{}, len(rs.def.Outputs))
	if runErr == nil {
		ec := rs.execContext()
		for _, out := range rs.def.Outputs {
			v := state.Resolve(out.Value, rs.st, ec)
			if text, ok := v.AsString(); ok && strings.Contains(text, "{{") {
				rs.warnings = append(rs.warnings, fmt.Sprintf("output %s contains unresolved expressions", out.Name))
				e.metrics.RecordInterpolationMiss(ctx, rs.def.Name, "output:"+out.Name)
			}
			outputs[out.Name] = v.ToAny()
		}
	}

	duration := time.Since(rs.startedAt)

	if rs.depth == 0 {
		if runErr == nil && e.checkpoints != nil {
			if err := e.checkpoints.Delete(ctx, rs.runID); err != nil {
				logger.Warn("failed to delete checkpoint", "error", err)
			}
		}
		e.recordRunFinish(ctx, rs, status, runErr)
		e.metrics.RecordRunComplete(ctx, rs.runID, rs.def.Name, string(status), duration)
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Error("run failed", "error", runErr, "duration_ms", duration.Milliseconds())
	} else {
		span.SetStatus(codes.Ok, "")
		logger.Info("run completed",
			"steps", len(rs.outcomes),
			"tokens_in", rs.usage.Total().InputTokens,
			"tokens_out", rs.usage.Total().OutputTokens,
			"duration_ms", duration.Milliseconds(),
		)
	}

	return &Result{
		RunID:           rs.runID,
		Pipeline:        rs.def.Name,
		Status:          status,
		Outputs:         outputs,
		Steps:           rs.outcomes,
		State:           rs.st,
		Usage:           rs.usage.Total(),
		UsageByProvider: rs.usage.ByProvider(),
		Warnings:        rs.warnings,
		StartedAt:       rs.startedAt,
		Duration:        duration,
	}
}

// loadCheckpoint restores run state for a resume. Returns the index of
// the last completed top-level step.
func (e *Executor) loadCheckpoint(ctx context.Context, rs *run, provided map[string]interface{}) (int, error) {
	if e.checkpoints == nil {
		return -1, &errors.ConfigError{
			Key:    "checkpoints",
			Reason: "resume requested but checkpointing is not configured",
		}
	}

	var cp *checkpoint.Checkpoint
	var err error
	if rs.opts.RunID == "" {
		cp, err = e.checkpoints.Latest(ctx)
	} else {
		cp, err = e.checkpoints.Load(ctx, rs.opts.RunID)
	}
	if err != nil {
		return -1, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		id := rs.opts.RunID
		if id == "" {
			id = "latest"
		}
		return -1, &errors.NotFoundError{Resource: "checkpoint", ID: id}
	}
	if cp.Pipeline != rs.def.Name {
		return -1, &errors.ValidationError{
			Field:       "pipeline",
			Message:     fmt.Sprintf("checkpoint belongs to pipeline %q, not %q", cp.Pipeline, rs.def.Name),
			SuggestText: "resume with the pipeline file the run was started from",
		}
	}

	rs.runID = cp.RunID
	rs.st = state.Deserialize(cp.State)
	rs.results = state.FromAnyMap(cp.Results)

	// Inputs passed on resume go through the normal resolution path so
	// they are validated; otherwise the checkpointed ones are reused.
	if len(provided) == 0 {
		rs.inputsAny = cp.Inputs
	}

	e.logger.Info("resuming run",
		"run_id", cp.RunID,
		"pipeline", cp.Pipeline,
		"completed_through", cp.StepID,
	)

	return cp.StepIndex, nil
}

// saveCheckpoint persists run progress after a completed top-level step.
// Checkpoint failures are logged, never fatal.
func (e *Executor) saveCheckpoint(ctx context.Context, rs *run, stepID string, index int) {
	if e.checkpoints == nil {
		return
	}

	cp := &checkpoint.Checkpoint{
		RunID:     rs.runID,
		Pipeline:  rs.def.Name,
		StepID:    stepID,
		StepIndex: index,
		Inputs:    rs.inputsAny,
		State:     rs.st.Serialize(),
		Results:   valuesToAny(rs.results),
	}
	if err := e.checkpoints.Save(ctx, cp); err != nil {
		e.logger.Warn("failed to save checkpoint",
			"run_id", rs.runID,
			"step", stepID,
			"error", err,
		)
	}
}

func (e *Executor) recordRunStart(ctx context.Context, rs *run) {
	e.metrics.RecordRunStart(ctx, rs.runID)
	if e.history == nil {
		return
	}
	err := e.history.RecordStart(ctx, &history.Run{
		ID:        rs.runID,
		Pipeline:  rs.def.Name,
		Status:    history.StatusRunning,
		Provider:  rs.opts.Provider,
		Inputs:    rs.inputsAny,
		StartedAt: rs.startedAt,
	})
	if err != nil {
		e.logger.Warn("failed to record run start", "error", err)
	}
}

func (e *Executor) recordRunFinish(ctx context.Context, rs *run, status RunStatus, runErr error) {
	if e.history == nil {
		return
	}
	hs := history.StatusCompleted
	if status == RunStatusFailed {
		hs = history.StatusFailed
		if ctx.Err() != nil {
			hs = history.StatusCanceled
		}
	}
	if err := e.history.RecordFinish(ctx, rs.runID, hs, runErr); err != nil {
		e.logger.Warn("failed to record run finish", "error", err)
	}
}

func (e *Executor) recordStep(ctx context.Context, rs *run, step *StepDefinition, outcome *StepOutcome) {
	if e.history == nil || rs.depth > 0 {
		return
	}
	hs := history.StatusCompleted
	if outcome.Status == StepStatusFailed {
		hs = history.StatusFailed
	}
	rec := &history.Step{
		RunID:     rs.runID,
		Name:      step.ID,
		Index:     rs.stepIndex,
		Status:    hs,
		Error:     outcome.Error,
		TokensIn:  outcome.TokensIn,
		TokensOut: outcome.TokensOut,
		StartedAt: time.Now().Add(-outcome.Duration),
		Duration:  outcome.Duration,
	}
	if v, ok := rs.results[step.ID]; ok {
		rec.Output = v.ToAny()
	}
	if err := e.history.RecordStep(ctx, rec); err != nil {
		e.logger.Warn("failed to record step", "step", step.ID, "error", err)
	}
}

// tokensFromResult extracts token counts from an agent step's recorded
// result. Non-agent results yield zeros.
func tokensFromResult(v state.Value) (in, out int) {
	if usage, ok := v.Lookup([]string{"usage"}); ok {
		if n, ok := usage.Lookup([]string{"input_tokens"}); ok {
			if i, ok := n.AsInt(); ok {
				in = int(i)
			}
		}
		if n, ok := usage.Lookup([]string{"output_tokens"}); ok {
			if i, ok := n.AsInt(); ok {
				out = int(i)
			}
		}
	}
	return in, out
}

// valuesToAny converts a Value map to its plain structural form.
func valuesToAny(m map[string]state.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.ToAny()
	}
	return out
}
