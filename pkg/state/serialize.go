package state

import "fmt"

// Serialization keys. The shape is stable: checkpoints written by older
// builds must keep loading, so missing keys default instead of failing.
const (
	keyGlobal      = "global"
	keySession     = "session"
	keyLoop        = "loop"
	keyCurrentStep = "current_step"
	keyStepIndex   = "step_index"
)

// Serialize converts the State to a plain, JSON-compatible structural map
// for checkpointing.
func (s State) Serialize() map[string]any {
	return map[string]any{
		keyGlobal:      scopeToAny(s.global),
		keySession:     scopeToAny(s.session),
		keyLoop:        scopeToAny(s.loop),
		keyCurrentStep: s.current,
		keyStepIndex:   s.index,
	}
}

// Deserialize reconstructs a State from checkpoint data. Missing scopes
// default to empty, a missing step index to zero, and data that is not a
// map at all yields a fresh empty State rather than an error.
func Deserialize(data any) State {
	m, ok := anyToMap(data)
	if !ok {
		return New()
	}
	s := State{
		global:  scopeFromAny(m[keyGlobal]),
		session: scopeFromAny(m[keySession]),
		loop:    scopeFromAny(m[keyLoop]),
	}
	if name, ok := m[keyCurrentStep].(string); ok {
		s.current = name
	}
	switch idx := m[keyStepIndex].(type) {
	case int:
		s.index = idx
	case int64:
		s.index = int(idx)
	case float64:
		s.index = int(idx)
	}
	return s
}

func scopeToAny(m map[string]Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.ToAny()
	}
	return out
}

func scopeFromAny(v any) map[string]Value {
	m, ok := anyToMap(v)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]Value, len(m))
	for k, item := range m {
		out[k] = FromAny(item)
	}
	return out
}

// anyToMap accepts the map shapes different decoders produce.
func anyToMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprintf("%v", k)] = item
		}
		return out, true
	default:
		return nil, false
	}
}
