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

package prompt

import "github.com/tombee/baton/pkg/pipeline"

// InputType is the prompt flavor chosen for a pipeline input.
type InputType string

const (
	InputTypeString  InputType = "string"
	InputTypeNumber  InputType = "number"
	InputTypeBoolean InputType = "boolean"
	InputTypeArray   InputType = "array"
	InputTypeObject  InputType = "object"
	InputTypeEnum    InputType = "enum"
)

// Prompting limits.
const (
	// MaxRetries bounds validation attempts per input.
	MaxRetries = 3
	// MaxInputSize bounds a single answer, in bytes.
	MaxInputSize = 65536
	// MaxNestedDepth bounds object nesting.
	MaxNestedDepth = 10
)

// PromptConfig describes one input to collect.
type PromptConfig struct {
	Name        string
	Description string
	Type        InputType
	Default     interface{}
	Options     []string // enum choices
}

// ConfigFor maps a pipeline input declaration to a prompt configuration.
// A declared enum always prompts as a selection regardless of the input's
// base type.
func ConfigFor(input pipeline.InputDefinition) PromptConfig {
	cfg := PromptConfig{
		Name:        input.Name,
		Description: input.Description,
		Default:     input.Default,
		Options:     input.Enum,
	}

	switch {
	case len(input.Enum) > 0:
		cfg.Type = InputTypeEnum
	case input.Type == "":
		// Untyped inputs prompt as strings.
		cfg.Type = InputTypeString
	default:
		cfg.Type = InputType(input.Type)
	}
	return cfg
}

// ConfigsFor maps a list of input declarations, preserving order.
func ConfigsFor(inputs []pipeline.InputDefinition) []PromptConfig {
	configs := make([]PromptConfig, 0, len(inputs))
	for _, input := range inputs {
		configs = append(configs, ConfigFor(input))
	}
	return configs
}

// ValidationError reports why an answer was rejected.
type ValidationError struct {
	InputName string
	InputType string
	Reason    string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
