package state

import (
	"testing"
)

func TestSerialize_RoundTrip(t *testing.T) {
	s := New().
		SetVariables(map[string]Value{"project": String("baton")}, ScopeGlobal).
		SetVariables(map[string]Value{"count": Int(5), "rate": Float(1.5)}, ScopeSession).
		SetVariables(map[string]Value{"item": List(Int(1), Int(2))}, ScopeLoop).
		SetStepInfo("analyze", 3)

	restored := Deserialize(s.Serialize())
	if !restored.Equal(s) {
		t.Errorf("round trip mismatch:\n  original: %v\n  restored: %v", s.Serialize(), restored.Serialize())
	}
}

func TestSerialize_Shape(t *testing.T) {
	s := New().
		SetVariables(map[string]Value{"name": String("test")}, ScopeGlobal).
		SetStepInfo("step-1", 2)

	data := s.Serialize()

	global, ok := data[keyGlobal].(map[string]any)
	if !ok {
		t.Fatalf("expected %q to be a map, got %T", keyGlobal, data[keyGlobal])
	}
	if global["name"] != "test" {
		t.Errorf("expected global name %q, got %v", "test", global["name"])
	}
	if data[keyCurrentStep] != "step-1" {
		t.Errorf("expected current step %q, got %v", "step-1", data[keyCurrentStep])
	}
	if data[keyStepIndex] != 2 {
		t.Errorf("expected step index 2, got %v", data[keyStepIndex])
	}
}

func TestDeserialize_MissingKeysDefault(t *testing.T) {
	s := Deserialize(map[string]any{
		"global": map[string]any{"name": "test"},
	})

	if got, ok := s.Get("name"); !ok || got.Text() != "test" {
		t.Errorf("expected global name restored, got %v (ok=%v)", got.ToAny(), ok)
	}
	if len(s.ScopeVars(ScopeSession)) != 0 || len(s.ScopeVars(ScopeLoop)) != 0 {
		t.Error("expected missing scopes to default to empty")
	}
	if s.CurrentStep() != "" || s.StepIndex() != 0 {
		t.Errorf("expected zero step cursor, got %q/%d", s.CurrentStep(), s.StepIndex())
	}
}

func TestDeserialize_NonMapInput(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"nil", nil},
		{"string", "not a map"},
		{"list", []any{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Deserialize(tt.in)
			if !s.Equal(New()) {
				t.Errorf("expected fresh state for %T input", tt.in)
			}
		})
	}
}

func TestDeserialize_NumericIndexForms(t *testing.T) {
	// JSON decoding yields float64 for numbers; checkpoint restore must
	// still recover the integer cursor.
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 4, 4},
		{"int64", int64(4), 4},
		{"float64", float64(4), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Deserialize(map[string]any{
				keyCurrentStep: "s",
				keyStepIndex:   tt.in,
			})
			if s.StepIndex() != tt.want {
				t.Errorf("step index = %d, want %d", s.StepIndex(), tt.want)
			}
		})
	}
}

func TestDeserialize_MapAnyAnyScopes(t *testing.T) {
	// YAML decoding can produce map[any]any at nested levels.
	s := Deserialize(map[string]any{
		"session": map[any]any{
			"opts": map[any]any{"depth": 3},
		},
	})

	v, ok := s.Get("opts")
	if !ok {
		t.Fatal("expected session variable restored")
	}
	depth, ok := v.Lookup([]string{"depth"})
	if !ok || !depth.Equal(Int(3)) {
		t.Errorf("expected nested depth 3, got %v (ok=%v)", depth.ToAny(), ok)
	}
}
