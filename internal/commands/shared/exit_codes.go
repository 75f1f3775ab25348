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
	"os"

	pkgerrors "github.com/tombee/baton/pkg/errors"
)

// Process exit codes. Scripts branch on these, so the values are part
// of the CLI contract.
const (
	ExitSuccess                    = 0
	ExitExecutionFailed            = 1
	ExitInvalidPipeline            = 2
	ExitMissingInput               = 3
	ExitProviderError              = 4
	ExitMissingInputNonInteractive = 70 // EX_SOFTWARE from sysexits.h
)

// ExitError pairs an error message with the process exit code it
// should produce.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError wraps a pipeline execution failure.
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitExecutionFailed, Message: msg, Cause: cause}
}

// NewInvalidPipelineError wraps a pipeline parse or validation failure.
func NewInvalidPipelineError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidPipeline, Message: msg, Cause: cause}
}

// NewMissingInputError wraps a missing required input.
func NewMissingInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitMissingInput, Message: msg, Cause: cause}
}

// NewProviderError wraps a provider configuration or call failure.
func NewProviderError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitProviderError, Message: msg, Cause: cause}
}

// NewMissingInputNonInteractiveError wraps inputs that could not be
// prompted for because no terminal is attached.
func NewMissingInputNonInteractiveError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitMissingInputNonInteractive, Message: msg, Cause: cause}
}

// HandleExitError prints err and exits with the code carried in its
// chain, or ExitExecutionFailed when no ExitError is present. Output
// honors --json. A nil err is a no-op so commands can call this
// unconditionally.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	code := ExitExecutionFailed
	jsonCode := ErrorCodeExecutionFailed
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
		jsonCode = MapExitErrorToCode(exitErr)
	}
	suggestion := findSuggestion(err)

	if GetJSON() {
		EmitJSONError("", []JSONError{{
			Code:       jsonCode,
			Message:    err.Error(),
			Suggestion: suggestion,
		}})
		os.Exit(code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", suggestion)
	}
	os.Exit(code)
}

// findSuggestion walks the error chain for a user-visible suggestion.
func findSuggestion(err error) string {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok && userErr.IsUserVisible() {
			return userErr.Suggestion()
		}
		err = errors.Unwrap(err)
	}
	return ""
}
