package pipeline

import (
	"fmt"
	"regexp"

	"github.com/tombee/baton/pkg/errors"
)

// ResolveInputs merges provided values with declared defaults and checks
// them against the input definitions. Providing a value for an
// undeclared input is an error, as is omitting a required one.
func (d *Definition) ResolveInputs(provided map[string]interface{}) (map[string]interface{}, error) {
	declared := make(map[string]*InputDefinition, len(d.Inputs))
	for i := range d.Inputs {
		declared[d.Inputs[i].Name] = &d.Inputs[i]
	}

	for name := range provided {
		if _, ok := declared[name]; !ok {
			return nil, &errors.ValidationError{
				Field:       name,
				Message:     fmt.Sprintf("unknown input: %s", name),
				SuggestText: "declare the input in the pipeline's inputs section",
			}
		}
	}

	resolved := make(map[string]interface{}, len(d.Inputs))
	for i := range d.Inputs {
		input := &d.Inputs[i]
		value, ok := provided[input.Name]
		if !ok {
			if input.Required() {
				return nil, &errors.ValidationError{
					Field:       input.Name,
					Message:     fmt.Sprintf("required input missing: %s", input.Name),
					SuggestText: fmt.Sprintf("pass --input %s=<value> or add a default", input.Name),
				}
			}
			value = input.Default
		}

		if err := checkInputValue(input, value); err != nil {
			return nil, err
		}
		resolved[input.Name] = value
	}

	return resolved, nil
}

// MissingInputs returns the required inputs absent from provided, in
// declaration order. The CLI prompts for these when run interactively.
func (d *Definition) MissingInputs(provided map[string]interface{}) []InputDefinition {
	var missing []InputDefinition
	for _, input := range d.Inputs {
		if !input.Required() {
			continue
		}
		if _, ok := provided[input.Name]; !ok {
			missing = append(missing, input)
		}
	}
	return missing
}

// checkInputValue verifies a value against its declaration. Numeric types
// are accepted loosely because YAML and JSON decoders disagree on int
// versus float64.
func checkInputValue(input *InputDefinition, value interface{}) error {
	if value == nil {
		return nil
	}

	fail := func(msg string) error {
		return &errors.ValidationError{
			Field:       input.Name,
			Message:     msg,
			SuggestText: fmt.Sprintf("input %s is declared as %s", input.Name, input.Type),
		}
	}

	switch input.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fail(fmt.Sprintf("input %s must be a string, got %T", input.Name, value))
		}
		if len(input.Enum) > 0 {
			found := false
			for _, allowed := range input.Enum {
				if s == allowed {
					found = true
					break
				}
			}
			if !found {
				return fail(fmt.Sprintf("input %s must be one of %v, got %q", input.Name, input.Enum, s))
			}
		}
		if input.Pattern != "" {
			re, err := regexp.Compile(input.Pattern)
			if err != nil {
				return fail(fmt.Sprintf("input %s has invalid pattern: %v", input.Name, err))
			}
			if !re.MatchString(s) {
				return fail(fmt.Sprintf("input %s must match pattern %s, got %q", input.Name, input.Pattern, s))
			}
		}

	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return fail(fmt.Sprintf("input %s must be a number, got %T", input.Name, value))
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return fail(fmt.Sprintf("input %s must be a boolean, got %T", input.Name, value))
		}

	case "array":
		if _, ok := value.([]interface{}); !ok {
			return fail(fmt.Sprintf("input %s must be an array, got %T", input.Name, value))
		}

	case "object":
		if _, ok := value.(map[string]interface{}); !ok {
			return fail(fmt.Sprintf("input %s must be an object, got %T", input.Name, value))
		}
	}

	return nil
}
