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

// Package prompt collects pipeline inputs interactively. Prompts are
// type-aware, validate answers with bounded retries, and degrade to an
// error in non-interactive environments so CI runs fail fast instead
// of hanging.
package prompt

import (
	"context"
	"fmt"
)

// Prompter is the terminal side of input collection. SurveyPrompter is
// the production implementation; MockPrompter scripts answers in tests.
type Prompter interface {
	PromptString(ctx context.Context, name, desc string, def string) (string, error)
	PromptNumber(ctx context.Context, name, desc string, def float64) (float64, error)
	PromptBool(ctx context.Context, name, desc string, def bool) (bool, error)
	PromptEnum(ctx context.Context, name, desc string, options []string, def string) (string, error)
	PromptArray(ctx context.Context, name, desc string) ([]interface{}, error)
	PromptObject(ctx context.Context, name, desc string) (map[string]interface{}, error)
	IsInteractive() bool
}

// InputCollector walks a list of input declarations and prompts for
// each in order.
type InputCollector struct {
	prompter Prompter
	current  int
	total    int
}

// NewInputCollector creates a collector over the given prompter.
func NewInputCollector(p Prompter) *InputCollector {
	return &InputCollector{prompter: p}
}

// FormatProgressPrefix renders the position within the current prompt
// session, e.g. "[Input 2 of 5] ". Empty outside a session.
func (ic *InputCollector) FormatProgressPrefix() string {
	if ic.total == 0 {
		return ""
	}
	return fmt.Sprintf("[Input %d of %d] ", ic.current, ic.total)
}

// CollectInput prompts for one input, retrying validation failures up
// to MaxRetries times.
func (ic *InputCollector) CollectInput(ctx context.Context, config PromptConfig) (interface{}, error) {
	switch config.Type {
	case InputTypeString, InputTypeNumber, InputTypeBoolean,
		InputTypeEnum, InputTypeArray, InputTypeObject:
	default:
		return nil, fmt.Errorf("unsupported input type: %s", config.Type)
	}

	var lastErr error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		value, err := ic.promptOnce(ctx, config)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt < MaxRetries {
			// The feedback never echoes the rejected input.
			fmt.Printf("Error: %s must be a %s (received invalid value)\n", config.Name, config.Type)
		}
	}

	return nil, fmt.Errorf("failed to collect input %s after %d attempts: %w", config.Name, MaxRetries, lastErr)
}

// promptOnce dispatches a single prompt by declared type.
func (ic *InputCollector) promptOnce(ctx context.Context, config PromptConfig) (interface{}, error) {
	switch config.Type {
	case InputTypeString:
		return ic.prompter.PromptString(ctx, config.Name, config.Description, stringDefault(config.Default))
	case InputTypeNumber:
		return ic.prompter.PromptNumber(ctx, config.Name, config.Description, numberDefault(config.Default))
	case InputTypeBoolean:
		return ic.prompter.PromptBool(ctx, config.Name, config.Description, boolDefault(config.Default))
	case InputTypeEnum:
		return ic.prompter.PromptEnum(ctx, config.Name, config.Description, config.Options, stringDefault(config.Default))
	case InputTypeArray:
		return ic.prompter.PromptArray(ctx, config.Name, config.Description)
	case InputTypeObject:
		return ic.prompter.PromptObject(ctx, config.Name, config.Description)
	}
	return nil, fmt.Errorf("unsupported input type: %s", config.Type)
}

// CollectInputs prompts for each input in declaration order. The first
// input that cannot be collected aborts the session.
func (ic *InputCollector) CollectInputs(ctx context.Context, configs []PromptConfig) (map[string]interface{}, error) {
	results := make(map[string]interface{}, len(configs))
	ic.total = len(configs)

	for i, config := range configs {
		ic.current = i + 1

		value, err := ic.CollectInput(ctx, config)
		if err != nil {
			return nil, err
		}
		results[config.Name] = value
	}

	return results, nil
}

// stringDefault renders a declared default for string and enum prompts.
func stringDefault(def interface{}) string {
	if def == nil {
		return ""
	}
	return fmt.Sprintf("%v", def)
}

func numberDefault(def interface{}) float64 {
	if n, ok := def.(float64); ok {
		return n
	}
	return 0
}

func boolDefault(def interface{}) bool {
	if b, ok := def.(bool); ok {
		return b
	}
	return false
}
