package state

import (
	"testing"
)

func TestArithmetic_Evaluation(t *testing.T) {
	s := New().SetVariables(map[string]Value{
		"count": Int(5),
		"bonus": Int(3),
		"rate":  Float(1.5),
		"stats": Map(map[string]Value{"total": Int(40)}),
	}, ScopeGlobal)

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"literals", "{{2 + 3}}", "5"},
		{"variable plus literal", "{{count + 1}}", "6"},
		{"two variables", "{{count + bonus}}", "8"},
		{"state path", "{{state.count * 2}}", "10"},
		{"dotted path", "{{stats.total / 4}}", "10"},
		{"float math", "{{count * rate}}", "7.5"},
		{"precedence", "{{2 + 3 * 4}}", "14"},
		{"integral division", "{{6 / 2}}", "3"},
		{"fractional division", "{{7 / 2}}", "3.5"},
		{"unary minus", "{{-count}}", "-5"},
		{"subtract negative", "{{2 - -3}}", "5"},
		{"spacing ignored", "{{  count  *  2  }}", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.expr, s); got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestArithmetic_MissingOperandDefaultsToZero(t *testing.T) {
	s := New()
	if got := Interpolate("{{missing + 1}}", s); got != "1" {
		t.Errorf("expected unresolved identifier to default to 0, got %q", got)
	}
	if got := Interpolate("{{a - b}}", s); got != "0" {
		t.Errorf("expected 0 - 0, got %q", got)
	}
}

func TestArithmetic_NonNumericVariableDefaultsToZero(t *testing.T) {
	s := New().SetVariables(map[string]Value{
		"label": String("abc"),
		"nums":  String("12"),
	}, ScopeGlobal)

	if got := Interpolate("{{label + 1}}", s); got != "1" {
		t.Errorf("expected non-numeric variable to count as 0, got %q", got)
	}
	// Numeric strings coerce.
	if got := Interpolate("{{nums + 1}}", s); got != "13" {
		t.Errorf("expected numeric string coercion, got %q", got)
	}
}

func TestArithmetic_ParseFailureDegradesToSubstitutedText(t *testing.T) {
	s := New().SetVariables(map[string]Value{"count": Int(5)}, ScopeGlobal)

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"dangling operator", "{{count +}}", "5 +"},
		{"doubled operator", "{{2 + * 3}}", "2 + * 3"},
		{"division by zero", "{{count / 0}}", "5 / 0"},
		{"stray parenthesis", "{{(2 + 3) * 4}}", "(2 + 3) * 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.expr, s); got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestSubstituteNumbers(t *testing.T) {
	s := New().SetVariables(map[string]Value{
		"count": Int(5),
		"rate":  Float(0.25),
	}, ScopeGlobal)

	tests := []struct {
		in   string
		want string
	}{
		{"count + 1", "5 + 1"},
		{"state.count * 2", "5 * 2"},
		{"rate * 100", "0.25 * 100"},
		{"missing / 2", "0 / 2"},
		{"2 + 3", "2 + 3"},
	}
	for _, tt := range tests {
		if got := substituteNumbers(tt.in, s); got != tt.want {
			t.Errorf("substituteNumbers(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
