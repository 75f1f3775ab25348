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

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
)

var errNotInteractive = errors.New("cannot prompt in non-interactive mode")

// SurveyPrompter implements Prompter with terminal prompts from the
// survey library. Free-form answers are validated before they are
// accepted so the user can correct a typo in place.
type SurveyPrompter struct {
	interactive bool
}

// NewSurveyPrompter creates a survey-based prompter.
func NewSurveyPrompter(interactive bool) *SurveyPrompter {
	return &SurveyPrompter{interactive: interactive}
}

// IsInteractive reports whether prompts can be displayed.
func (sp *SurveyPrompter) IsInteractive() bool {
	return sp.interactive
}

// askText runs a single-line input prompt, rejecting answers that fail
// check until the user enters an acceptable one.
func (sp *SurveyPrompter) askText(message, def string, check func(string) error) (string, error) {
	if !sp.interactive {
		return "", errNotInteractive
	}

	validator := survey.WithValidator(func(ans interface{}) error {
		if s, ok := ans.(string); ok {
			return check(s)
		}
		return nil
	})

	var answer string
	err := survey.AskOne(&survey.Input{Message: message, Default: def}, &answer, validator)
	return answer, err
}

// PromptString collects a string input.
func (sp *SurveyPrompter) PromptString(ctx context.Context, name, desc string, def string) (string, error) {
	return sp.askText(label(name, desc), def, ValidateString)
}

// PromptNumber collects a numeric input.
func (sp *SurveyPrompter) PromptNumber(ctx context.Context, name, desc string, def float64) (float64, error) {
	defStr := ""
	if def != 0 {
		defStr = strconv.FormatFloat(def, 'f', -1, 64)
	}

	answer, err := sp.askText(label(name, desc), defStr, func(s string) error {
		_, err := ValidateNumber(s)
		return err
	})
	if err != nil {
		return 0, err
	}
	return ValidateNumber(answer)
}

// PromptBool collects a yes/no answer.
func (sp *SurveyPrompter) PromptBool(ctx context.Context, name, desc string, def bool) (bool, error) {
	if !sp.interactive {
		return false, errNotInteractive
	}

	var answer bool
	err := survey.AskOne(&survey.Confirm{Message: label(name, desc), Default: def}, &answer)
	return answer, err
}

// PromptEnum presents the options as a selection list.
func (sp *SurveyPrompter) PromptEnum(ctx context.Context, name, desc string, options []string, def string) (string, error) {
	if !sp.interactive {
		return "", errNotInteractive
	}
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided for enum input")
	}

	var answer string
	err := survey.AskOne(&survey.Select{Message: label(name, desc), Options: options, Default: def}, &answer)
	return answer, err
}

// PromptArray collects an array as comma-separated values or JSON.
func (sp *SurveyPrompter) PromptArray(ctx context.Context, name, desc string) ([]interface{}, error) {
	answer, err := sp.askText(label(name, desc)+" (comma-separated or JSON array)", "", func(s string) error {
		_, err := ValidateArray(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ValidateArray(answer)
}

// PromptObject collects a JSON object.
func (sp *SurveyPrompter) PromptObject(ctx context.Context, name, desc string) (map[string]interface{}, error) {
	answer, err := sp.askText(label(name, desc)+" (JSON object)", "", func(s string) error {
		_, err := ValidateObject(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ValidateObject(answer)
}

// label builds the prompt message shown for an input.
func label(name, desc string) string {
	return fmt.Sprintf("%s: %s", name, desc)
}
