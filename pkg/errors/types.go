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

package errors

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports invalid pipeline definitions, malformed data,
// or constraint violations in user input.
type ValidationError struct {
	Field       string // input field that failed, optional
	Message     string
	SuggestText string // actionable fix, shown via Suggestion
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// IsUserVisible implements UserVisibleError. Validation failures are
// the user's own input, so they are always shown.
func (e *ValidationError) IsUserVisible() bool {
	return true
}

// UserMessage implements UserVisibleError.
func (e *ValidationError) UserMessage() string {
	return e.Error()
}

// Suggestion implements UserVisibleError.
func (e *ValidationError) Suggestion() string {
	return e.SuggestText
}

// NotFoundError reports a missing resource such as a pipeline,
// checkpoint, or run.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ProviderError reports a failure from an LLM provider. StatusCode
// drives retry classification; RequestID correlates the failure with
// provider-side logs.
type ProviderError struct {
	Provider    string
	Code        int // provider-specific error code
	StatusCode  int // HTTP status, when applicable
	Message     string
	SuggestText string
	RequestID   string
	Cause       error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider %s error", e.Provider)
	if e.Code > 0 {
		fmt.Fprintf(&b, " (%d)", e.Code)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " [HTTP %d]", e.StatusCode)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request-id: %s)", e.RequestID)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError. Provider failures are
// always surfaced; the user has to fix credentials or wait out an
// outage either way.
func (e *ProviderError) IsUserVisible() bool {
	return true
}

// UserMessage implements UserVisibleError.
func (e *ProviderError) UserMessage() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Suggestion implements UserVisibleError.
func (e *ProviderError) Suggestion() string {
	return e.SuggestText
}

// StepError attaches pipeline and step identity to errors surfacing
// from step execution, so callers can report where a run stopped.
type StepError struct {
	Pipeline string
	Step     string
	Cause    error
}

func (e *StepError) Error() string {
	if e.Pipeline != "" {
		return fmt.Sprintf("pipeline %s: step %s: %v", e.Pipeline, e.Step, e.Cause)
	}
	return fmt.Sprintf("step %s: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// ConfigError reports configuration file problems, missing settings,
// or invalid values.
type ConfigError struct {
	Key    string // configuration key at fault, optional
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError reports an operation that exceeded its configured
// timeout.
type TimeoutError struct {
	Operation string // what timed out, e.g. "provider request"
	Duration  time.Duration
	Cause     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
