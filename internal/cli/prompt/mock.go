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
	"fmt"
)

// MockPrompter implements Prompter with scripted responses for testing.
// It allows tests to simulate user input without requiring interactive terminals.
type MockPrompter struct {
	responses    []interface{}
	currentIndex int
	interactive  bool
	callLog      []string
}

// NewMockPrompter creates a new mock prompter with pre-scripted responses.
func NewMockPrompter(interactive bool, responses ...interface{}) *MockPrompter {
	return &MockPrompter{
		responses:   responses,
		interactive: interactive,
		callLog:     make([]string, 0),
	}
}

// CallLog returns the prompts issued so far, in order.
func (mp *MockPrompter) CallLog() []string {
	return mp.callLog
}

func (mp *MockPrompter) next() (interface{}, bool) {
	if mp.currentIndex >= len(mp.responses) {
		return nil, false
	}
	resp := mp.responses[mp.currentIndex]
	mp.currentIndex++
	return resp, true
}

// PromptString returns the next scripted string response.
func (mp *MockPrompter) PromptString(ctx context.Context, name, desc string, def string) (string, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("PromptString(%s)", name))

	resp, ok := mp.next()
	if !ok {
		return def, nil
	}
	if str, ok := resp.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("mock response is not a string")
}

// PromptNumber returns the next scripted numeric response.
func (mp *MockPrompter) PromptNumber(ctx context.Context, name, desc string, def float64) (float64, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("PromptNumber(%s)", name))

	resp, ok := mp.next()
	if !ok {
		return def, nil
	}
	switch num := resp.(type) {
	case float64:
		return num, nil
	case int:
		return float64(num), nil
	}
	return 0, fmt.Errorf("mock response is not a number")
}

// PromptBool returns the next scripted boolean response.
func (mp *MockPrompter) PromptBool(ctx context.Context, name, desc string, def bool) (bool, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("PromptBool(%s)", name))

	resp, ok := mp.next()
	if !ok {
		return def, nil
	}
	if b, ok := resp.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("mock response is not a boolean")
}

// PromptEnum returns the next scripted selection.
func (mp *MockPrompter) PromptEnum(ctx context.Context, name, desc string, options []string, def string) (string, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("PromptEnum(%s)", name))

	resp, ok := mp.next()
	if !ok {
		return def, nil
	}
	str, ok := resp.(string)
	if !ok {
		return "", fmt.Errorf("mock response is not a string")
	}
	return ValidateEnum(str, options)
}

// PromptArray returns the next scripted array response.
func (mp *MockPrompter) PromptArray(ctx context.Context, name, desc string) ([]interface{}, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("PromptArray(%s)", name))

	resp, ok := mp.next()
	if !ok {
		return []interface{}{}, nil
	}
	switch v := resp.(type) {
	case []interface{}:
		return v, nil
	case string:
		return ValidateArray(v)
	}
	return nil, fmt.Errorf("mock response is not an array")
}

// PromptObject returns the next scripted object response.
func (mp *MockPrompter) PromptObject(ctx context.Context, name, desc string) (map[string]interface{}, error) {
	mp.callLog = append(mp.callLog, fmt.Sprintf("PromptObject(%s)", name))

	resp, ok := mp.next()
	if !ok {
		return map[string]interface{}{}, nil
	}
	switch v := resp.(type) {
	case map[string]interface{}:
		return v, nil
	case string:
		return ValidateObject(v)
	}
	return nil, fmt.Errorf("mock response is not an object")
}

// IsInteractive reports the scripted interactivity.
func (mp *MockPrompter) IsInteractive() bool {
	return mp.interactive
}
