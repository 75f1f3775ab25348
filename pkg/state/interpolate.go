package state

import (
	"regexp"
	"strings"
)

// exprPattern finds {{ expression }} markers. Braces that never close are
// simply not matched, so malformed templates pass through untouched.
var exprPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Interpolate replaces every {{...}} marker in text with its resolved
// value coerced to a string. Only state variables are visible; context
// reference forms stay unresolved.
func Interpolate(text string, s State) string {
	return InterpolateWithContext(text, s, nil)
}

// InterpolateWithContext is Interpolate with the context-aware reference
// forms (inputs., global_vars., steps.) enabled against ec.
func InterpolateWithContext(text string, s State, ec *ExecContext) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(raw string) string {
		inner := strings.TrimSpace(raw[2 : len(raw)-2])
		return resolveExpression(raw, inner, s, ec).Text()
	})
}

// Resolve evaluates text preserving the result's native type: when the
// trimmed text is exactly one {{...}} marker, the expression's Value is
// returned as-is (lists stay lists, numbers stay numbers); any other shape
// falls back to string interpolation. This is what keeps a step input like
// "{{steps.fetch.result}}" structural instead of JSON-in-a-string.
func Resolve(text string, s State, ec *ExecContext) Value {
	trimmed := strings.TrimSpace(text)
	if inner, ok := soleExpression(trimmed); ok {
		return resolveExpression(trimmed, inner, s, ec)
	}
	return String(InterpolateWithContext(text, s, ec))
}

// soleExpression reports whether trimmed is a single {{...}} marker with
// nothing around it, returning the trimmed interior.
func soleExpression(trimmed string) (string, bool) {
	if len(trimmed) < 4 || !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.ContainsAny(inner, "{}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

// InterpolateData walks a structural value, interpolating every string
// leaf in string-coercing mode and passing other leaves through.
func InterpolateData(v Value, s State) Value {
	return interpolateData(v, s, nil, false)
}

// InterpolateDataWithContext is InterpolateData with context-aware
// references enabled.
func InterpolateDataWithContext(v Value, s State, ec *ExecContext) Value {
	return interpolateData(v, s, ec, false)
}

// ResolveData walks a structural value resolving every string leaf with
// type preservation, so a leaf holding exactly one expression keeps its
// native type. This is the variant the executor applies to step
// configuration before dispatch.
func ResolveData(v Value, s State, ec *ExecContext) Value {
	return interpolateData(v, s, ec, true)
}

func interpolateData(v Value, s State, ec *ExecContext, preserve bool) Value {
	switch v.kind {
	case KindString:
		if preserve {
			return Resolve(v.s, s, ec)
		}
		return String(InterpolateWithContext(v.s, s, ec))
	case KindList:
		out := make([]Value, len(v.list))
		for i, item := range v.list {
			out[i] = interpolateData(item, s, ec, preserve)
		}
		return Value{kind: KindList, list: out}
	case KindMap:
		out := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			out[k] = interpolateData(item, s, ec, preserve)
		}
		return Value{kind: KindMap, m: out}
	default:
		return v
	}
}
