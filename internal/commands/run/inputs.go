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

package run

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tombee/baton/internal/cli/prompt"
	"github.com/tombee/baton/pkg/pipeline"
)

// parseInputs parses input arguments in key=value format and optionally
// merges with file inputs. Command-line values win over file values.
func parseInputs(inputArgs []string, inputFile string) (map[string]interface{}, error) {
	var inputs map[string]interface{}
	if inputFile != "" {
		var err error
		inputs, err = loadInputFile(inputFile)
		if err != nil {
			return nil, err
		}
	} else {
		inputs = make(map[string]interface{})
	}

	for _, arg := range inputArgs {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid input format %q (expected key=value)", arg)
		}
		inputs[parts[0]] = parts[1]
	}

	return inputs, nil
}

// loadInputFile loads inputs from a JSON file or stdin
func loadInputFile(path string) (map[string]interface{}, error) {
	var data []byte
	var err error

	if path == "-" {
		// Check if stdin has data (not a terminal)
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return nil, fmt.Errorf("--input-file - requires input on stdin (pipe or redirect)")
		}
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
	}

	var inputs map[string]interface{}
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON input: %w", err)
	}

	return inputs, nil
}

// coerceInputs converts string values from --input flags to the types
// the pipeline declares. File and prompt inputs are already typed, so
// only string values are touched. Values that do not parse are left
// as-is for input validation to report.
func coerceInputs(def *pipeline.Definition, inputs map[string]interface{}) map[string]interface{} {
	declared := make(map[string]*pipeline.InputDefinition, len(def.Inputs))
	for i := range def.Inputs {
		declared[def.Inputs[i].Name] = &def.Inputs[i]
	}

	coerced := make(map[string]interface{}, len(inputs))
	for name, value := range inputs {
		str, isString := value.(string)
		decl, isDeclared := declared[name]
		if !isString || !isDeclared {
			coerced[name] = value
			continue
		}

		switch decl.Type {
		case "number":
			if num, err := prompt.ValidateNumber(str); err == nil {
				coerced[name] = num
				continue
			}
		case "boolean":
			if b, err := prompt.ValidateBool(str); err == nil {
				coerced[name] = b
				continue
			}
		case "array":
			if arr, err := prompt.ValidateArray(str); err == nil {
				coerced[name] = arr
				continue
			}
		case "object":
			if obj, err := prompt.ValidateObject(str); err == nil {
				coerced[name] = obj
				continue
			}
		}
		coerced[name] = value
	}

	return coerced
}

// parseGlobalVars parses --set arguments in key=value format. Values
// that parse as JSON are typed; everything else stays a string, so
// --set limit=3 binds a number and --set name=draft binds a string.
func parseGlobalVars(setArgs []string) (map[string]interface{}, error) {
	if len(setArgs) == 0 {
		return nil, nil
	}

	vars := make(map[string]interface{}, len(setArgs))
	for _, arg := range setArgs {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid variable format %q (expected key=value)", arg)
		}

		var typed interface{}
		if err := json.Unmarshal([]byte(parts[1]), &typed); err == nil {
			vars[parts[0]] = typed
		} else {
			vars[parts[0]] = parts[1]
		}
	}

	return vars, nil
}

// collectMissingInputs prompts for the given inputs interactively.
func collectMissingInputs(ctx context.Context, missing []pipeline.InputDefinition, quiet bool) (map[string]interface{}, error) {
	if !quiet {
		fmt.Fprintf(os.Stderr, "\nMissing required inputs. Please provide:\n\n")
	}

	prompter := prompt.NewSurveyPrompter(true)
	collector := prompt.NewInputCollector(prompter)

	return collector.CollectInputs(ctx, prompt.ConfigsFor(missing))
}

// formatMissingInputsError creates a structured error message for missing inputs.
func formatMissingInputsError(missing []pipeline.InputDefinition) string {
	var sb strings.Builder
	sb.WriteString("Missing required inputs:\n")
	for _, input := range missing {
		typ := input.Type
		if typ == "" {
			typ = "string"
		}
		sb.WriteString(fmt.Sprintf("  - %s (%s): %s\n", input.Name, typ, input.Description))
		if len(input.Enum) > 0 {
			sb.WriteString(fmt.Sprintf("    Valid values: %s\n", strings.Join(input.Enum, ", ")))
		}
	}
	sb.WriteString("\nRun with --help-inputs to see all pipeline inputs.")
	return sb.String()
}

// showPipelineInputs displays all pipeline inputs in a user-friendly format.
func showPipelineInputs(def *pipeline.Definition) {
	if len(def.Inputs) == 0 {
		fmt.Println("This pipeline has no defined inputs.")
		return
	}

	fmt.Println("Pipeline Inputs:")
	fmt.Println()
	for _, input := range def.Inputs {
		required := "required"
		if !input.Required() {
			required = "optional"
		}
		typ := input.Type
		if typ == "" {
			typ = "string"
		}

		fmt.Printf("  %s (%s, %s)\n", input.Name, typ, required)
		if input.Description != "" {
			fmt.Printf("    %s\n", input.Description)
		}
		if input.Default != nil {
			fmt.Printf("    Default: %v\n", input.Default)
		}
		if len(input.Enum) > 0 {
			fmt.Printf("    Valid values: %s\n", strings.Join(input.Enum, ", "))
		}
		fmt.Println()
	}
}
