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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ValidateString rejects oversized input and input carrying control
// characters other than tab and line breaks.
func ValidateString(input string) error {
	if len(input) > MaxInputSize {
		return fmt.Errorf("input exceeds maximum size of %d bytes", MaxInputSize)
	}

	for i, r := range input {
		if r == 0 {
			return fmt.Errorf("input contains null byte at position %d", i)
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("input contains invalid control character at position %d", i)
		}
	}
	return nil
}

// ValidateNumber parses a numeric input.
func ValidateNumber(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("input is empty")
	}

	num, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, fmt.Errorf("input must be a number")
	}
	return num, nil
}

// ValidateBool parses a boolean input. Accepts y/yes/true/1 and
// n/no/false/0, case-insensitive.
func ValidateBool(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("input must be y/yes/true/1 or n/no/false/0")
}

// ValidateEnum resolves a selection against the option list, as either
// a 1-indexed number or a case-insensitive option name.
func ValidateEnum(input string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options available")
	}

	trimmed := strings.TrimSpace(input)
	if idx, err := strconv.Atoi(trimmed); err == nil {
		if idx < 1 || idx > len(options) {
			return "", fmt.Errorf("selection must be between 1 and %d", len(options))
		}
		return options[idx-1], nil
	}

	for _, opt := range options {
		if strings.EqualFold(trimmed, opt) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("input must be a valid option or number between 1 and %d", len(options))
}

// ValidateArray parses an array input: a JSON array when the input
// starts with '[', otherwise comma-separated values. Empty input is an
// empty array.
func ValidateArray(input string) ([]interface{}, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return []interface{}{}, nil
	}

	if strings.HasPrefix(input, "[") {
		var arr []interface{}
		if err := json.Unmarshal([]byte(input), &arr); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return arr, nil
	}

	return splitList(input), nil
}

// splitList splits comma-separated values, honoring backslash escapes
// and dropping empty elements.
func splitList(input string) []interface{} {
	out := make([]interface{}, 0)
	var cur strings.Builder

	flush := func() {
		if v := strings.TrimSpace(cur.String()); v != "" {
			out = append(out, v)
		}
		cur.Reset()
	}

	escaped := false
	for _, r := range input {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return out
}

// ValidateObject parses a JSON object and bounds its nesting depth.
func ValidateObject(input string) (map[string]interface{}, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("input is empty")
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(input), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}

	if nestingDepth(obj) > MaxNestedDepth {
		return nil, fmt.Errorf("object nesting exceeds maximum depth of %d", MaxNestedDepth)
	}
	return obj, nil
}

// nestingDepth measures how deeply maps and arrays nest inside v. A
// scalar is depth zero.
func nestingDepth(v interface{}) int {
	deepest := 0
	switch val := v.(type) {
	case map[string]interface{}:
		for _, nested := range val {
			if d := nestingDepth(nested) + 1; d > deepest {
				deepest = d
			}
		}
	case []interface{}:
		for _, nested := range val {
			if d := nestingDepth(nested) + 1; d > deepest {
				deepest = d
			}
		}
	}
	return deepest
}
