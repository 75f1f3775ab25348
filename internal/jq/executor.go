// Package jq provides jq expression execution for transform steps.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single expression run (1 second).
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize is the maximum input size for transforms (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Executor evaluates jq expressions with timeout and input size limits.
// Compiled programs are cached: loops re-run the same transform on every
// iteration, so compilation cost is paid once per expression.
type Executor struct {
	timeout      time.Duration
	maxInputSize int64

	mu       sync.RWMutex
	programs map[string]*gojq.Code
}

// NewExecutor creates a jq executor. Zero values select the defaults.
func NewExecutor(timeout time.Duration, maxInputSize int64) *Executor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}

	return &Executor{
		timeout:      timeout,
		maxInputSize: maxInputSize,
		programs:     make(map[string]*gojq.Code),
	}
}

// Execute runs a jq expression against the given data.
// An empty expression returns the data unchanged. A program yielding a
// single value returns that value; multiple values come back as a list.
func (e *Executor) Execute(ctx context.Context, expression string, data any) (any, error) {
	if expression == "" {
		return data, nil
	}

	input, err := e.normalize(data)
	if err != nil {
		return nil, err
	}

	code, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var results []any
	iter := code.RunWithContext(execCtx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if execCtx.Err() != nil {
				return nil, fmt.Errorf("jq execution timed out after %v", e.timeout)
			}
			return nil, fmt.Errorf("jq execution failed: %w", err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Validate compiles a jq expression without running it.
// Used during pipeline validation to surface syntax errors before a run starts.
func (e *Executor) Validate(expression string) error {
	if expression == "" {
		return nil
	}

	_, err := e.compile(expression)
	return err
}

// compile parses and compiles an expression, consulting the cache first.
func (e *Executor) compile(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}

	code, err = gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}

	e.mu.Lock()
	e.programs[expression] = code
	e.mu.Unlock()

	return code, nil
}

// normalize round-trips data through JSON, enforcing the size limit and
// converting to the plain types gojq accepts (map[string]any, []any,
// float64, string, bool, nil).
func (e *Executor) normalize(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transform input: %w", err)
	}

	if int64(len(raw)) > e.maxInputSize {
		return nil, fmt.Errorf("transform input size (%d bytes) exceeds maximum (%d bytes)",
			len(raw), e.maxInputSize)
	}

	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize transform input: %w", err)
	}

	return normalized, nil
}
