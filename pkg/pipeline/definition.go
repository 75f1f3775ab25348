// Package pipeline defines YAML pipeline documents and executes them.
//
// A pipeline is a named sequence of steps operating over the scoped
// variable store in pkg/state. Step prompts and inputs carry {{...}}
// template expressions that are resolved against run state just before
// each step executes; values a step cannot resolve degrade to literal
// text instead of failing the run. The version field is optional and
// defaults to "1.0", so a minimal document needs only a name and steps.
package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/state"
)

// Definition is a parsed pipeline document.
type Definition struct {
	// Name identifies the pipeline in logs, history, and checkpoints.
	Name string `yaml:"name" json:"name"`

	// Description is human-readable context for listings.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Version tracks the document schema version (optional, defaults to "1.0").
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Inputs declares the run parameters. Inputs without a default are required.
	Inputs []InputDefinition `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Vars seeds the global variable scope before the first step runs.
	Vars map[string]interface{} `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Steps are the executable units, run in order.
	Steps []StepDefinition `yaml:"steps" json:"steps"`

	// Outputs define the values returned when the run completes.
	Outputs []OutputDefinition `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// InputDefinition describes one pipeline input parameter.
type InputDefinition struct {
	// Name is the input identifier, referenced as {{inputs.name}}.
	Name string `yaml:"name" json:"name"`

	// Type is the expected data type (string, number, boolean, object, array).
	Type string `yaml:"type" json:"type"`

	// Default is the fallback when the input is not provided.
	// Inputs without a default are required.
	Default interface{} `yaml:"default,omitempty" json:"default,omitempty"`

	// Description explains what this input is for.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Enum restricts a string input to a fixed set of values.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`

	// Pattern is a regex a string input must match.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Required reports whether the input must be provided by the caller.
func (i *InputDefinition) Required() bool {
	return i.Default == nil
}

// StepDefinition is a single step in a pipeline.
//
// Agent steps carry inline prompt configuration: Provider and Model select
// the LLM (Model accepts a tier name or a concrete model ID), System and
// Prompt are templates resolved against run state. The other step types
// use the fields called out in their validation rules below.
type StepDefinition struct {
	// ID uniquely identifies the step within the whole document.
	// Generated as step_N when omitted.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// Name is a human-readable label (optional).
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Type selects the step behavior (agent, transform, set, loop,
	// parallel, pipeline, condition).
	Type StepType `yaml:"type" json:"type"`

	// hasExplicitID tracks whether the ID came from the document,
	// so auto-generation can skip it.
	hasExplicitID bool

	// Provider names the activated LLM provider for agent steps.
	// Empty uses the registry default.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`

	// Model is the model tier (fast, balanced, strategic) or a concrete
	// model name for agent steps. Defaults to balanced.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// System is the system prompt template for agent steps.
	System string `yaml:"system,omitempty" json:"system,omitempty"`

	// Prompt is the user prompt template for agent steps (required).
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// MaxTokens caps the completion length for agent steps.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Temperature sets sampling temperature for agent steps.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// Inputs maps names to values, resolved against run state before
	// dispatch. Transform steps read their data from here; pipeline
	// steps pass it to the child run.
	Inputs map[string]interface{} `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Query is the jq program for transform steps.
	Query string `yaml:"query,omitempty" json:"query,omitempty"`

	// Vars are the assignments for set steps.
	Vars map[string]interface{} `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Scope is the target scope for set steps (global, session, loop).
	// Defaults to session.
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`

	// Condition gates execution. On a condition step it is the branching
	// expression; on any other step a false result skips the step.
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// Then and Else name the steps enabled by a condition step's result.
	// Steps on the branch not taken are skipped when reached.
	Then []string `yaml:"then,omitempty" json:"then,omitempty"`
	Else []string `yaml:"else,omitempty" json:"else,omitempty"`

	// Items is the collection a loop step iterates over: a template
	// resolving to a list, or an inline list.
	Items interface{} `yaml:"items,omitempty" json:"items,omitempty"`

	// Until is the loop termination expression, checked after each
	// iteration (do-while).
	Until string `yaml:"until,omitempty" json:"until,omitempty"`

	// MaxIterations bounds a loop. Required for until-only loops.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`

	// Steps are the children of loop and parallel steps.
	Steps []StepDefinition `yaml:"steps,omitempty" json:"steps,omitempty"`

	// Pipeline is the path to a child pipeline file, relative to the
	// parent document.
	Pipeline string `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`

	// Timeout bounds the step in seconds. Zero applies the type default.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Retry configures re-execution when OnError is retry.
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty"`

	// OnError selects failure handling: fail (default), continue, retry.
	OnError ErrorMode `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// StepType names a step behavior.
type StepType string

const (
	// StepTypeAgent calls an LLM provider with a rendered prompt.
	StepTypeAgent StepType = "agent"

	// StepTypeTransform runs a jq program over resolved inputs.
	StepTypeTransform StepType = "transform"

	// StepTypeSet binds variables into a state scope.
	StepTypeSet StepType = "set"

	// StepTypeLoop repeats child steps over items and/or until a
	// condition holds.
	StepTypeLoop StepType = "loop"

	// StepTypeParallel runs child steps concurrently and merges their
	// results.
	StepTypeParallel StepType = "parallel"

	// StepTypePipeline runs another pipeline file as a child run.
	StepTypePipeline StepType = "pipeline"

	// StepTypeCondition evaluates an expression and gates later steps.
	StepTypeCondition StepType = "condition"
)

var validStepTypes = map[StepType]bool{
	StepTypeAgent:     true,
	StepTypeTransform: true,
	StepTypeSet:       true,
	StepTypeLoop:      true,
	StepTypeParallel:  true,
	StepTypePipeline:  true,
	StepTypeCondition: true,
}

// ErrorMode selects how a step failure is handled.
type ErrorMode string

const (
	// ErrorModeFail stops the run on step failure.
	ErrorModeFail ErrorMode = "fail"

	// ErrorModeContinue records the failure and moves on.
	ErrorModeContinue ErrorMode = "continue"

	// ErrorModeRetry re-executes the step per its retry configuration.
	ErrorModeRetry ErrorMode = "retry"
)

// Default step timeouts in seconds, applied when a step does not set one.
// Loop, parallel, and pipeline steps get no default of their own; they
// inherit the run deadline and bound their children instead.
const (
	// DefaultAgentStepTimeout is generous because provider calls for
	// large prompts routinely take minutes.
	DefaultAgentStepTimeout = 600

	// DefaultStepTimeout covers transform, set, and condition steps.
	DefaultStepTimeout = 120
)

// Default retry configuration, applied when on_error is retry and no
// retry block is given.
const (
	DefaultRetryMaxAttempts       = 2
	DefaultRetryBackoffBase       = 1
	DefaultRetryBackoffMultiplier = 2.0
)

// RetryConfig configures step re-execution.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// BackoffBase is the first retry delay in seconds.
	BackoffBase int `yaml:"backoff_base,omitempty" json:"backoff_base,omitempty"`

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64 `yaml:"backoff_multiplier,omitempty" json:"backoff_multiplier,omitempty"`
}

// Validate checks the retry configuration.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if r.BackoffBase < 0 {
		return fmt.Errorf("backoff_base must not be negative")
	}
	if r.BackoffMultiplier != 0 && r.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff_multiplier must be at least 1.0")
	}
	return nil
}

// OutputDefinition describes one value returned by a completed run.
type OutputDefinition struct {
	// Name is the output identifier.
	Name string `yaml:"name" json:"name"`

	// Value is a template resolved against final run state, type
	// preserved when it is a single expression.
	Value string `yaml:"value" json:"value"`

	// Description explains what this output represents.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Validate checks the output definition.
func (o *OutputDefinition) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("output name is required")
	}
	if o.Value == "" {
		return fmt.Errorf("output value expression is required")
	}
	return nil
}

// UnmarshalYAML decodes a step while remembering whether its ID was
// written in the document, which auto-generation depends on.
func (s *StepDefinition) UnmarshalYAML(node *yaml.Node) error {
	type plainStep StepDefinition
	if err := node.Decode((*plainStep)(s)); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "id" {
			s.hasExplicitID = true
			break
		}
	}
	return nil
}

// Parse parses a pipeline definition from YAML bytes. Missing step IDs
// are generated and defaults applied before validation, so the returned
// definition is ready to execute.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline definition: %w", err)
	}

	def.autoGenerateStepIDs()
	def.ApplyDefaults()

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	return &def, nil
}

// ApplyDefaults fills in the version, step timeouts, retry settings, and
// per-type field defaults.
func (d *Definition) ApplyDefaults() {
	if d.Version == "" {
		d.Version = "1.0"
	}
	for i := range d.Steps {
		applyStepDefaults(&d.Steps[i])
	}
}

func applyStepDefaults(step *StepDefinition) {
	if step.Timeout == 0 {
		switch step.Type {
		case StepTypeLoop, StepTypeParallel, StepTypePipeline:
			// Container steps inherit the run deadline; their children
			// carry their own timeouts.
		case StepTypeAgent:
			step.Timeout = DefaultAgentStepTimeout
		default:
			step.Timeout = DefaultStepTimeout
		}
	}

	if step.OnError == "" {
		step.OnError = ErrorModeFail
	}

	if step.OnError == ErrorModeRetry && step.Retry == nil {
		step.Retry = &RetryConfig{
			MaxAttempts:       DefaultRetryMaxAttempts,
			BackoffBase:       DefaultRetryBackoffBase,
			BackoffMultiplier: DefaultRetryBackoffMultiplier,
		}
	}

	if step.Type == StepTypeAgent && step.Model == "" {
		step.Model = "balanced"
	}

	if step.Type == StepTypeSet && step.Scope == "" {
		step.Scope = string(state.ScopeSession)
	}

	for i := range step.Steps {
		applyStepDefaults(&step.Steps[i])
	}
}

// autoGenerateStepIDs assigns step_N IDs to steps without an explicit
// one. Explicit IDs anywhere in the document are collected first so a
// generated ID never collides with one written later.
func (d *Definition) autoGenerateStepIDs() {
	taken := make(map[string]bool)
	walkSteps(d.Steps, func(step *StepDefinition) {
		if step.hasExplicitID {
			taken[step.ID] = true
		}
	})

	n := 0
	walkSteps(d.Steps, func(step *StepDefinition) {
		if step.hasExplicitID {
			return
		}
		n++
		candidate := fmt.Sprintf("step_%d", n)
		for taken[candidate] {
			n++
			candidate = fmt.Sprintf("step_%d", n)
		}
		step.ID = candidate
		taken[candidate] = true
	})
}

// walkSteps visits every step in document order, children after their
// parent.
func walkSteps(steps []StepDefinition, visit func(*StepDefinition)) {
	for i := range steps {
		visit(&steps[i])
		walkSteps(steps[i].Steps, visit)
	}
}

// Validate checks the whole definition: document fields, per-step rules,
// ID uniqueness across the step tree, and branch references.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return &errors.ValidationError{
			Field:       "name",
			Message:     "pipeline name is required",
			SuggestText: "add a descriptive name to the pipeline",
		}
	}

	if len(d.Steps) == 0 {
		return &errors.ValidationError{
			Field:       "steps",
			Message:     "pipeline must have at least one step",
			SuggestText: "add at least one step to the pipeline definition",
		}
	}

	// Step results share one namespace regardless of nesting, so IDs
	// must be unique across the whole tree.
	ids := make(map[string]bool)
	var dup string
	walkSteps(d.Steps, func(step *StepDefinition) {
		if dup != "" {
			return
		}
		if ids[step.ID] {
			dup = step.ID
			return
		}
		ids[step.ID] = true
	})
	if dup != "" {
		return &errors.ValidationError{
			Field:       "id",
			Message:     fmt.Sprintf("duplicate step ID: %s", dup),
			SuggestText: "ensure each step has a unique ID",
		}
	}

	for i := range d.Steps {
		step := &d.Steps[i]
		if err := step.Validate(); err != nil {
			return fmt.Errorf("invalid step %s: %w", step.ID, err)
		}
		if step.Type == StepTypeCondition {
			for _, ref := range append(append([]string{}, step.Then...), step.Else...) {
				if !ids[ref] {
					return &errors.ValidationError{
						Field:       "then/else",
						Message:     fmt.Sprintf("condition step %s references unknown step: %s", step.ID, ref),
						SuggestText: "branch lists must name step IDs defined in this pipeline",
					}
				}
			}
		}
	}

	for i := range d.Inputs {
		if err := d.Inputs[i].Validate(); err != nil {
			return fmt.Errorf("invalid input %s: %w", d.Inputs[i].Name, err)
		}
	}

	for i := range d.Outputs {
		if err := d.Outputs[i].Validate(); err != nil {
			return fmt.Errorf("invalid output %s: %w", d.Outputs[i].Name, err)
		}
	}

	return nil
}

// Validate checks the input definition.
func (i *InputDefinition) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("input name is required")
	}

	if i.Type == "" {
		return fmt.Errorf("input type is required")
	}

	validTypes := map[string]bool{
		"string":  true,
		"number":  true,
		"boolean": true,
		"object":  true,
		"array":   true,
	}
	if !validTypes[i.Type] {
		return fmt.Errorf("invalid input type: %s (must be string, number, boolean, object, or array)", i.Type)
	}

	if i.Pattern != "" {
		if i.Type != "string" {
			return fmt.Errorf("pattern can only be used with string type inputs")
		}
		if _, err := regexp.Compile(i.Pattern); err != nil {
			return fmt.Errorf("invalid pattern regex: %w", err)
		}
	}

	if len(i.Enum) > 0 && i.Type != "string" {
		return fmt.Errorf("enum can only be used with string type inputs")
	}

	return nil
}

// Validate checks a single step definition, recursing into children.
func (s *StepDefinition) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("step ID is required")
	}

	if s.Type == "" {
		return fmt.Errorf("step type is required")
	}
	if !validStepTypes[s.Type] {
		return fmt.Errorf("invalid step type: %s (must be agent, transform, set, loop, parallel, pipeline, or condition)", s.Type)
	}

	switch s.Type {
	case StepTypeAgent:
		if s.Prompt == "" {
			return fmt.Errorf("prompt is required for agent steps")
		}

	case StepTypeTransform:
		if s.Query == "" {
			return fmt.Errorf("query is required for transform steps")
		}

	case StepTypeSet:
		if len(s.Vars) == 0 {
			return fmt.Errorf("vars is required for set steps")
		}
		if s.Scope != "" && !state.ValidScope(state.Scope(s.Scope)) {
			return fmt.Errorf("invalid scope: %s (must be global, session, or loop)", s.Scope)
		}

	case StepTypeLoop:
		if err := s.validateLoop(); err != nil {
			return err
		}

	case StepTypeParallel:
		if len(s.Steps) == 0 {
			return fmt.Errorf("parallel step requires nested steps")
		}

	case StepTypePipeline:
		if err := validatePipelinePath(s.Pipeline); err != nil {
			return err
		}

	case StepTypeCondition:
		if s.Condition == "" {
			return fmt.Errorf("condition expression is required for condition steps")
		}
		if len(s.Then) == 0 && len(s.Else) == 0 {
			return fmt.Errorf("condition step requires a then or else branch")
		}
	}

	// Expressions are compiled once here so syntax errors surface at
	// load time instead of mid-run.
	if s.Condition != "" {
		if err := CheckExpression(s.Condition); err != nil {
			return fmt.Errorf("invalid condition expression: %w", err)
		}
	}
	if s.Until != "" {
		if err := CheckExpression(s.Until); err != nil {
			return fmt.Errorf("invalid until expression: %w", err)
		}
	}

	if s.Retry != nil {
		if err := s.Retry.Validate(); err != nil {
			return fmt.Errorf("invalid retry configuration: %w", err)
		}
	}

	if s.OnError != "" && s.OnError != ErrorModeFail && s.OnError != ErrorModeContinue && s.OnError != ErrorModeRetry {
		return fmt.Errorf("invalid on_error mode: %s (must be fail, continue, or retry)", s.OnError)
	}

	for i := range s.Steps {
		if err := s.Steps[i].Validate(); err != nil {
			return fmt.Errorf("nested step %s: %w", s.Steps[i].ID, err)
		}
	}

	return nil
}

func (s *StepDefinition) validateLoop() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("loop step requires nested steps")
	}
	if s.Items == nil && s.Until == "" {
		return fmt.Errorf("loop step requires items, an until expression, or both")
	}
	if s.Items == nil && s.MaxIterations < 1 {
		return fmt.Errorf("max_iterations is required for until-only loops")
	}
	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}

	// A single loop scope backs item/index bindings, so a loop anywhere
	// inside another loop would clobber the outer bindings.
	var nested string
	walkSteps(s.Steps, func(child *StepDefinition) {
		if nested == "" && child.Type == StepTypeLoop {
			nested = child.ID
		}
	})
	if nested != "" {
		return fmt.Errorf("nested loops are not supported (step %s)", nested)
	}

	return nil
}

// validatePipelinePath rejects child pipeline references that escape the
// parent document's directory.
func validatePipelinePath(path string) error {
	if path == "" {
		return fmt.Errorf("pipeline step requires a pipeline file path")
	}
	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("pipeline path must be relative, got absolute path: %s", path)
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return fmt.Errorf("pipeline path must not traverse outside the pipeline directory: %s", path)
		}
	}
	return nil
}
