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

package shared

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/tombee/baton/pkg/errors"
)

func TestExitError_Error(t *testing.T) {
	withCause := NewExecutionError("run failed", errors.New("step exploded"))
	if got := withCause.Error(); got != "run failed: step exploded" {
		t.Errorf("Error() = %q, want message with cause", got)
	}

	withoutCause := NewInvalidPipelineError("bad pipeline", nil)
	if got := withoutCause.Error(); got != "bad pipeline" {
		t.Errorf("Error() = %q, want bare message", got)
	}
}

func TestExitError_Codes(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want int
	}{
		{"execution", NewExecutionError("x", nil), ExitExecutionFailed},
		{"invalid pipeline", NewInvalidPipelineError("x", nil), ExitInvalidPipeline},
		{"missing input", NewMissingInputError("x", nil), ExitMissingInput},
		{"provider", NewProviderError("x", nil), ExitProviderError},
		{"missing input non-interactive", NewMissingInputNonInteractiveError("x", nil), ExitMissingInputNonInteractive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.want {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	exitErr := NewExecutionError("execution failed", innerErr)

	unwrapped := errors.Unwrap(exitErr)
	if unwrapped != innerErr {
		t.Errorf("expected unwrapped error to be innerErr, got %v", unwrapped)
	}
}

func TestPrintUserVisibleSuggestion_ValidationError(t *testing.T) {
	// Verify ValidationError satisfies the interface the suggestion
	// printer looks for.
	verr := &pkgerrors.ValidationError{
		Field:       "steps",
		Message:     "pipeline must have at least one step",
		SuggestText: "add at least one step to the pipeline definition",
	}

	var userErr pkgerrors.UserVisibleError = verr
	if !userErr.IsUserVisible() {
		t.Error("expected ValidationError to be user visible")
	}
	if userErr.Suggestion() != "add at least one step to the pipeline definition" {
		t.Errorf("Suggestion() = %q", userErr.Suggestion())
	}
}

func TestPrintUserVisibleSuggestion_WrappedError(t *testing.T) {
	// The suggestion printer walks the chain, so a provider error
	// wrapped by an ExitError must still be reachable.
	provErr := &pkgerrors.ProviderError{
		Provider:    "claude",
		StatusCode:  429,
		Message:     "rate limited",
		SuggestText: "Wait a moment and retry, or lower requests_per_minute",
	}
	wrapped := fmt.Errorf("agent step failed: %w", provErr)
	exitErr := NewProviderError("provider call failed", wrapped)

	var userErr pkgerrors.UserVisibleError
	if !errors.As(exitErr, &userErr) {
		t.Fatal("expected to unwrap UserVisibleError from ExitError chain")
	}
	if userErr.Suggestion() != provErr.SuggestText {
		t.Errorf("Suggestion() = %q, want the provider suggestion", userErr.Suggestion())
	}
}

func TestPrintUserVisibleSuggestion_NonUserVisibleError(t *testing.T) {
	regularErr := errors.New("some internal error")

	var userErr pkgerrors.UserVisibleError
	if errors.As(regularErr, &userErr) {
		t.Error("regular error should not implement UserVisibleError")
	}
}
