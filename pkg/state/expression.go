package state

import (
	"regexp"
	"strings"
)

// ExecContext carries the cross-boundary data an expression may reference:
// prior step results, the inputs a parent passed into this (sub-)pipeline,
// and global variables threaded across nesting boundaries. It is supplied
// read-only per call and never stored. A nil ExecContext disables the
// context-aware reference forms (inputs., global_vars., steps.).
type ExecContext struct {
	// Results maps step names to their outputs. A result is either the
	// step's raw value or a wrapper map carrying the value under a
	// "result" key; both encodings are resolved transparently.
	Results map[string]Value

	// Inputs are the parameters passed into a nested pipeline invocation.
	Inputs map[string]Value

	// GlobalVars are variables threaded across pipeline nesting
	// boundaries by the caller.
	GlobalVars map[string]Value
}

// callPattern matches a function-call expression: an identifier followed by
// a parenthesized argument list spanning the rest of the text.
var callPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)

type exprKind uint8

const (
	exprCall exprKind = iota
	exprInputsPath
	exprGlobalVarsPath
	exprStepsPath
	exprArithmetic
	exprStatePath
	exprIdent
)

// expression is the classified form of one {{...}} interior.
type expression struct {
	kind exprKind
	name string   // function name, step name, or bare identifier
	path []string // path segments following the recognized prefix
	args []string // raw argument texts of a call
}

// classify lexes a trimmed expression into its tagged form. The order of
// the checks is the resolution contract: calls before context prefixes,
// context prefixes before arithmetic, arithmetic before state paths, and
// a bare identifier as the final fallback. Context prefixes are only
// recognized when an ExecContext is in play.
func classify(text string, contextual bool) expression {
	if m := callPattern.FindStringSubmatch(text); m != nil {
		return expression{kind: exprCall, name: m[1], args: splitArgs(m[2])}
	}
	if contextual {
		if rest, ok := strings.CutPrefix(text, "inputs."); ok {
			return expression{kind: exprInputsPath, path: strings.Split(rest, ".")}
		}
		if rest, ok := strings.CutPrefix(text, "global_vars."); ok {
			return expression{kind: exprGlobalVarsPath, path: strings.Split(rest, ".")}
		}
		if rest, ok := strings.CutPrefix(text, "steps."); ok {
			segs := strings.Split(rest, ".")
			return expression{kind: exprStepsPath, name: segs[0], path: segs[1:]}
		}
	}
	if strings.ContainsAny(text, "+-*/") {
		return expression{kind: exprArithmetic}
	}
	if rest, ok := strings.CutPrefix(text, "state."); ok {
		return expression{kind: exprStatePath, path: strings.Split(rest, ".")}
	}
	return expression{kind: exprIdent, name: text}
}

// splitArgs splits a call's argument text on commas. The split is not
// aware of nested parentheses, so arguments of nested calls must not
// themselves contain commas.
func splitArgs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// resolveExpression evaluates one classified expression. raw is the
// original template substring (braces included) and is what unresolved
// context references and failed calls degrade to; this package never
// returns an error from resolution.
func resolveExpression(raw, text string, s State, ec *ExecContext) Value {
	e := classify(text, ec != nil)
	switch e.kind {
	case exprCall:
		if v, ok := callBuiltin(e.name, e.args, s, ec); ok {
			return v
		}
		return String(reconstructCall(e))

	case exprInputsPath:
		if v, ok := lookupIn(ec.Inputs, e.path); ok {
			return v
		}
		return String(raw)

	case exprGlobalVarsPath:
		if v, ok := lookupIn(ec.GlobalVars, e.path); ok {
			return v
		}
		return String(raw)

	case exprStepsPath:
		return resolveStepPath(raw, e, ec)

	case exprArithmetic:
		substituted := substituteNumbers(text, s)
		if v, ok := evalArithmetic(substituted); ok {
			return v
		}
		return String(substituted)

	case exprStatePath:
		if root, ok := s.Get(e.path[0]); ok {
			if v, ok := root.Lookup(e.path[1:]); ok {
				return v
			}
		}
		return String(raw)

	default: // exprIdent
		if v, ok := s.Get(e.name); ok {
			return v
		}
		return String(raw)
	}
}

// resolveStepPath resolves steps.<name>.<path...> against the recorded
// step results, accepting both result encodings: the path is tried against
// the raw result first, then against the value under its "result" key, and
// a path of exactly ["result"] falls back to the raw result itself so that
// unwrapped outputs keep working.
func resolveStepPath(raw string, e expression, ec *ExecContext) Value {
	result, ok := ec.Results[e.name]
	if !ok {
		return String(raw)
	}
	if v, ok := result.Lookup(e.path); ok {
		return v
	}
	if wrapped, ok := result.AsMap(); ok {
		if inner, ok := wrapped["result"]; ok {
			if v, ok := inner.Lookup(e.path); ok {
				return v
			}
		}
	}
	if len(e.path) == 1 && e.path[0] == "result" {
		return result
	}
	return String(raw)
}

// reconstructCall rebuilds the literal text of a call that could not be
// evaluated (unknown name, wrong arity, division by zero). Unlike context
// misses, the braces are not kept: the text is final, not a deferred
// placeholder.
func reconstructCall(e expression) string {
	return e.name + "(" + strings.Join(e.args, ", ") + ")"
}

// lookupIn navigates a dotted path whose first segment selects a map entry.
func lookupIn(m map[string]Value, path []string) (Value, bool) {
	if len(path) == 0 {
		return Value{}, false
	}
	root, ok := m[path[0]]
	if !ok {
		return Value{}, false
	}
	return root.Lookup(path[1:])
}
