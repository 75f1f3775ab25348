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

package log

import (
	"log/slog"
	"time"
)

// StepEvent identifies a step execution for logging purposes.
type StepEvent struct {
	// RunID is the pipeline run this step belongs to.
	RunID string

	// Pipeline is the name of the pipeline being executed.
	Pipeline string

	// Step is the name of the step.
	Step string

	// Type is the step type (e.g., "agent", "transform", "loop").
	Type string

	// Metadata contains additional step metadata.
	Metadata map[string]interface{}
}

// StepResult captures the outcome of a step execution for logging purposes.
type StepResult struct {
	// Success indicates whether the step completed without error.
	Success bool

	// Error is the error message if the step failed.
	Error string

	// DurationMs is the duration of the step in milliseconds.
	DurationMs int64
}

// LogStepStart logs the start of a step execution.
func LogStepStart(logger *slog.Logger, ev *StepEvent) {
	attrs := []any{
		EventKey, "step_start",
		StepKey, ev.Step,
		"type", ev.Type,
	}

	if ev.RunID != "" {
		attrs = append(attrs, RunIDKey, ev.RunID)
	}

	if ev.Pipeline != "" {
		attrs = append(attrs, PipelineKey, ev.Pipeline)
	}

	for k, v := range ev.Metadata {
		attrs = append(attrs, k, v)
	}

	logger.Info("step started", attrs...)
}

// LogStepEnd logs the completion of a step execution.
// Failures log at error level, successes at info.
func LogStepEnd(logger *slog.Logger, ev *StepEvent, res *StepResult) {
	attrs := []any{
		EventKey, "step_end",
		StepKey, ev.Step,
		"type", ev.Type,
		"success", res.Success,
		DurationKey, res.DurationMs,
	}

	if ev.RunID != "" {
		attrs = append(attrs, RunIDKey, ev.RunID)
	}

	if ev.Pipeline != "" {
		attrs = append(attrs, PipelineKey, ev.Pipeline)
	}

	if res.Error != "" {
		attrs = append(attrs, "error", res.Error)
	}

	level := slog.LevelInfo
	message := "step completed"

	if !res.Success {
		level = slog.LevelError
		message = "step failed"
	}

	logger.Log(nil, level, message, attrs...)
}

// StepMiddleware wraps step execution with start/end logging.
type StepMiddleware struct {
	logger *slog.Logger
}

// NewStepMiddleware creates a new step logging middleware.
func NewStepMiddleware(logger *slog.Logger) *StepMiddleware {
	return &StepMiddleware{
		logger: logger,
	}
}

// Handler wraps a function that executes a step.
// It logs the start and completion automatically, including duration.
func (m *StepMiddleware) Handler(ev *StepEvent, handler func() error) error {
	start := time.Now()

	LogStepStart(m.logger, ev)

	err := handler()

	res := &StepResult{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		res.Error = err.Error()
	}

	LogStepEnd(m.logger, ev, res)

	return err
}
