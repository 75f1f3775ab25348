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

package validate

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/baton/internal/commands/shared"
	batonerrors "github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/pipeline"
)

// fileResult is the validation outcome for one pipeline file.
type fileResult struct {
	Path    string             `json:"path"`
	Valid   bool               `json:"valid"`
	Name    string             `json:"name,omitempty"`
	Steps   int                `json:"steps,omitempty"`
	Inputs  []string           `json:"inputs,omitempty"`
	Outputs []string           `json:"outputs,omitempty"`
	Errors  []shared.JSONError `json:"errors,omitempty"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline>...",
		Short: "Validate pipeline YAML syntax and structure",
		Long: `Validate checks that pipeline files have valid YAML syntax, declare
every required field, and reference only steps and inputs that exist.
Validation does not require provider configuration.

Arguments may be files or glob patterns, including ** for recursive
matching:

  baton validate pipeline.yaml
  baton validate 'pipelines/**/*.yaml'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, patterns []string) error {
	paths, err := expandPatterns(patterns)
	if err != nil {
		return shared.NewInvalidPipelineError(err.Error(), nil)
	}
	if len(paths) == 0 {
		return shared.NewInvalidPipelineError("no pipeline files match the given patterns", nil)
	}

	results := make([]fileResult, 0, len(paths))
	failed := 0
	for _, path := range paths {
		result := validateFile(path)
		if !result.Valid {
			failed++
		}
		results = append(results, result)
	}

	if shared.GetJSON() {
		type validateResponse struct {
			shared.JSONResponse
			Files []fileResult `json:"files"`
		}
		resp := validateResponse{
			JSONResponse: shared.NewJSONResponse("validate", failed == 0),
			Files: results,
		}
		if err := shared.EmitJSON(resp); err != nil {
			return err
		}
	} else {
		printResults(cmd, results)
	}

	if failed > 0 {
		return &shared.ExitError{
			Code:    shared.ExitInvalidPipeline,
			Message: fmt.Sprintf("%d of %d files failed validation", failed, len(results)),
		}
	}
	return nil
}

// expandPatterns resolves file paths and glob patterns into a sorted,
// de-duplicated file list. A literal path that exists skips glob
// matching so odd filenames still validate.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
			if !seen[pattern] {
				seen[pattern] = true
				paths = append(paths, pattern)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %v", pattern, err)
		}
		for _, match := range matches {
			if info, err := os.Stat(match); err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// validateFile runs the full validation pass over one file: raw YAML
// syntax first, then the pipeline's own structural rules.
func validateFile(path string) fileResult {
	result := fileResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, shared.JSONError{
			Code:       shared.ErrorCodeFileNotFound,
			Message:    fmt.Sprintf("failed to read file: %v", err),
			Suggestion: "Check that the file path is correct and the file exists",
		})
		return result
	}

	// Surface YAML syntax problems with a location before structural
	// validation, which assumes a well-formed document.
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		jsonErr := shared.JSONError{
			Code:       shared.ErrorCodeInvalidYAML,
			Message:    fmt.Sprintf("YAML syntax error: %v", err),
			Suggestion: "Check YAML syntax and indentation",
		}
		if line := yamlErrorLine(err); line > 0 {
			jsonErr.Location = &shared.JSONLocation{Line: line}
		}
		result.Errors = append(result.Errors, jsonErr)
		return result
	}

	def, err := pipeline.Parse(data)
	if err != nil {
		result.Errors = append(result.Errors, structuralError(err))
		return result
	}

	result.Valid = true
	result.Name = def.Name
	result.Steps = len(def.Steps)
	for _, input := range def.Inputs {
		result.Inputs = append(result.Inputs, input.Name)
	}
	for _, output := range def.Outputs {
		result.Outputs = append(result.Outputs, output.Name)
	}
	return result
}

// structuralError maps a pipeline validation failure onto a coded
// error, keeping the suggestion when the error carries one.
func structuralError(err error) shared.JSONError {
	jsonErr := shared.JSONError{
		Code:    shared.ErrorCodeSchemaViolation,
		Message: err.Error(),
	}

	var valErr *batonerrors.ValidationError
	if !errors.As(err, &valErr) {
		return jsonErr
	}

	jsonErr.Suggestion = valErr.SuggestText
	if valErr.Field == "" {
		return jsonErr
	}
	switch {
	case strings.HasPrefix(valErr.Field, "inputs"):
		jsonErr.Code = shared.ErrorCodeMissingField
	case strings.Contains(valErr.Message, "unknown step"),
		strings.Contains(valErr.Message, "reference"):
		jsonErr.Code = shared.ErrorCodeInvalidReference
	}
	return jsonErr
}

// yamlErrorLine extracts a line number from a yaml.v3 error message.
// Messages follow the form "yaml: line N: ...".
func yamlErrorLine(err error) int {
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		return line
	}
	return 0
}

func printResults(cmd *cobra.Command, results []fileResult) {
	for _, result := range results {
		if result.Valid {
			cmd.Println(shared.RenderOK(fmt.Sprintf("%s (%s, %d steps)", result.Path, result.Name, result.Steps)))
			continue
		}

		cmd.Println(shared.RenderError(result.Path))
		for _, ve := range result.Errors {
			if ve.Location != nil && ve.Location.Line > 0 {
				cmd.Printf("  line %d: %s\n", ve.Location.Line, ve.Message)
			} else {
				cmd.Printf("  %s\n", ve.Message)
			}
			if ve.Suggestion != "" {
				cmd.Printf("  Suggestion: %s\n", ve.Suggestion)
			}
		}
	}
}
