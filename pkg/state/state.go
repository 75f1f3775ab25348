package state

// Scope names one of the three variable lifetimes.
type Scope string

const (
	// ScopeGlobal holds long-lived, pipeline-wide variables.
	ScopeGlobal Scope = "global"

	// ScopeSession holds medium-lived variables, typically scoped to a
	// conversation or provider session.
	ScopeSession Scope = "session"

	// ScopeLoop holds short-lived variables rebound on every loop
	// iteration.
	ScopeLoop Scope = "loop"
)

// ValidScope reports whether s names a known scope.
func ValidScope(s Scope) bool {
	return s == ScopeGlobal || s == ScopeSession || s == ScopeLoop
}

// State is the scoped variable store threaded through a pipeline run.
// Lookup precedence is loop > session > global: a name bound in an inner
// scope shadows the same name further out.
//
// State is an immutable value. Every mutator returns a fresh State and
// never modifies the receiver, so callers can keep old snapshots, hand
// copies to parallel branches, or serialize one mid-run without
// coordination. The zero State is empty and ready to use.
type State struct {
	global  map[string]Value
	session map[string]Value
	loop    map[string]Value
	current string
	index   int
}

// New returns an empty State positioned before the first step.
func New() State { return State{} }

// SetVariables resolves every entry of values against the receiver and
// merges the results into the named scope, returning the updated State.
// Values are resolved with template interpolation before storage, so an
// assignment may reference variables already visible in the receiver --
// including names in the target scope bound before this call. An unknown
// scope leaves the State unchanged; nothing here returns an error.
func (s State) SetVariables(values map[string]Value, scope Scope) State {
	if !ValidScope(scope) || len(values) == 0 {
		return s
	}
	target := s.scopeMap(scope)
	merged := make(map[string]Value, len(target)+len(values))
	for k, v := range target {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = ResolveData(v, s, nil)
	}
	out := s
	out.setScopeMap(scope, merged)
	return out
}

// Get looks a name up across scopes in precedence order and reports
// whether it was found.
func (s State) Get(name string) (Value, bool) {
	if v, ok := s.loop[name]; ok {
		return v, true
	}
	if v, ok := s.session[name]; ok {
		return v, true
	}
	if v, ok := s.global[name]; ok {
		return v, true
	}
	return Value{}, false
}

// All flattens the three scopes into a single snapshot map following the
// same precedence as Get.
func (s State) All() map[string]Value {
	out := make(map[string]Value, len(s.global)+len(s.session)+len(s.loop))
	for k, v := range s.global {
		out[k] = v
	}
	for k, v := range s.session {
		out[k] = v
	}
	for k, v := range s.loop {
		out[k] = v
	}
	return out
}

// ClearScope returns a State with the named scope emptied. The other
// scopes and the cursor are carried over unchanged.
func (s State) ClearScope(scope Scope) State {
	if !ValidScope(scope) {
		return s
	}
	out := s
	out.setScopeMap(scope, nil)
	return out
}

// SetStepInfo returns a State with the execution cursor advanced to the
// named step and index.
func (s State) SetStepInfo(name string, index int) State {
	out := s
	out.current = name
	out.index = index
	return out
}

// CurrentStep returns the name of the step the cursor points at, or the
// empty string before the first step.
func (s State) CurrentStep() string { return s.current }

// StepIndex returns the zero-based position of the cursor.
func (s State) StepIndex() int { return s.index }

// ScopeVars returns a snapshot copy of one scope's bindings.
func (s State) ScopeVars(scope Scope) map[string]Value {
	src := s.scopeMap(scope)
	out := make(map[string]Value, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Equal reports whether two states carry the same bindings and cursor.
// Empty and nil scopes compare equal.
func (s State) Equal(o State) bool {
	return s.current == o.current &&
		s.index == o.index &&
		scopesEqual(s.global, o.global) &&
		scopesEqual(s.session, o.session) &&
		scopesEqual(s.loop, o.loop)
}

func scopesEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}

func (s State) scopeMap(scope Scope) map[string]Value {
	switch scope {
	case ScopeGlobal:
		return s.global
	case ScopeSession:
		return s.session
	case ScopeLoop:
		return s.loop
	default:
		return nil
	}
}

func (s *State) setScopeMap(scope Scope, m map[string]Value) {
	switch scope {
	case ScopeGlobal:
		s.global = m
	case ScopeSession:
		s.session = m
	case ScopeLoop:
		s.loop = m
	}
}
