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

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/tombee/baton/pkg/pipeline"
)

// maxYAMLSize caps pipeline content at 10MB to prevent memory exhaustion.
const maxYAMLSize = 10 * 1024 * 1024

// ValidationResult is the JSON payload returned by baton_validate.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// handleValidate implements the baton_validate tool.
func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	pipelineYAML, err := request.RequireString("pipeline_yaml")
	if err != nil {
		return errorResponse("Missing required parameter: pipeline_yaml"), nil
	}

	if len(pipelineYAML) > maxYAMLSize {
		return errorResponse(fmt.Sprintf("Pipeline YAML exceeds maximum size of %d bytes", maxYAMLSize)), nil
	}

	result := validatePipelineYAML([]byte(pipelineYAML))

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode validation result: %v", err)), nil
	}

	return textResponse(string(resultJSON)), nil
}

// validatePipelineYAML checks syntax first so syntax errors carry line
// information, then runs the full semantic validation in pkg/pipeline.
func validatePipelineYAML(data []byte) ValidationResult {
	result := ValidationResult{Valid: true}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		line, col := extractYAMLErrorLocation(err)
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Line:       line,
			Column:     col,
			Message:    fmt.Sprintf("YAML syntax error: %v", err),
			Suggestion: "Check YAML indentation and quoting near the reported location",
		})
		return result
	}

	def, err := pipeline.Parse(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Message:    err.Error(),
			Suggestion: "Check that all step references resolve correctly and required fields are present",
		})
		return result
	}

	result.Warnings = append(result.Warnings, checkBestPractices(def)...)
	return result
}

// extractYAMLErrorLocation pulls line and column out of a YAML parse
// error when the library exposes them.
func extractYAMLErrorLocation(err error) (line, col int) {
	if typeErr, ok := err.(*yaml.TypeError); ok {
		if len(typeErr.Errors) > 0 {
			var l int
			if _, parseErr := fmt.Sscanf(typeErr.Errors[0], "line %d:", &l); parseErr == nil {
				return l, 0
			}
		}
	}
	return 0, 0
}

// checkBestPractices flags issues that are legal but worth a warning.
func checkBestPractices(def *pipeline.Definition) []ValidationError {
	var warnings []ValidationError

	if def.Description == "" {
		warnings = append(warnings, ValidationError{
			Message:    "Pipeline lacks a description",
			Suggestion: "Add a description field to document the pipeline's purpose",
		})
	}

	if len(def.Steps) > 20 {
		warnings = append(warnings, ValidationError{
			Message:    fmt.Sprintf("Pipeline has %d steps, which may be complex to maintain", len(def.Steps)),
			Suggestion: "Consider splitting large pipelines into sub-pipelines run with a pipeline step",
		})
	}

	for _, input := range def.Inputs {
		if input.Required() && input.Description == "" {
			warnings = append(warnings, ValidationError{
				Message:    fmt.Sprintf("Required input %q has no description", input.Name),
				Suggestion: "Describe required inputs so callers know what to provide",
			})
		}
	}

	return warnings
}
