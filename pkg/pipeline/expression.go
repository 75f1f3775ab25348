package pipeline

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/baton/pkg/errors"
)

// Evaluator evaluates condition and until expressions against a run
// environment. Compiled programs are cached, so a loop's until expression
// compiles once however many iterations run.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates an expression evaluator with an empty cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate runs a boolean expression against the environment. The
// environment carries inputs, steps (recorded results), and vars (the
// flattened variable scopes). An empty expression is true.
func (e *Evaluator) Evaluate(expression string, env map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := e.compile(expression)
	if err != nil {
		return false, &errors.ValidationError{
			Field:       "expression",
			Message:     fmt.Sprintf("failed to compile expression: %s", err.Error()),
			SuggestText: "check expression syntax and ensure all referenced variables exist",
		}
	}

	evalEnv := make(map[string]interface{}, len(env)+2)
	for k, v := range env {
		evalEnv[k] = v
	}
	evalEnv["has"] = hasFunc
	evalEnv["length"] = lengthFunc

	result, err := expr.Run(program, evalEnv)
	if err != nil {
		return false, &errors.ValidationError{
			Field:       "expression",
			Message:     fmt.Sprintf("expression evaluation failed: %s", err.Error()),
			SuggestText: "verify that all referenced variables exist in the run context",
		}
	}

	boolResult, ok := result.(bool)
	if !ok {
		return false, &errors.ValidationError{
			Field:       "expression",
			Message:     fmt.Sprintf("expression must return boolean, got %T (%v)", result, result),
			SuggestText: "use comparison operators (==, !=, <, >) or boolean functions",
		}
	}

	return boolResult, nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	prog, err := compileExpression(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()

	return prog, nil
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// CheckExpression compiles an expression without running it, surfacing
// syntax errors at definition load time.
func CheckExpression(expression string) error {
	_, err := compileExpression(expression)
	return err
}

func compileExpression(expression string) (*vm.Program, error) {
	// "contains" is a reserved string operator in expr, so the
	// collection helper is named "has".
	env := map[string]interface{}{
		"has":    hasFunc,
		"length": lengthFunc,
	}
	return expr.Compile(expression,
		expr.Env(env),
		// The run environment is supplied at evaluation time; undefined
		// references compare as nil rather than failing compilation.
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
}

// hasFunc reports whether a collection contains an element: slice
// membership, map key presence, or substring for strings.
func hasFunc(args ...interface{}) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("has requires exactly 2 arguments, got %d", len(args))
	}

	collection, target := args[0], args[1]
	if collection == nil {
		return false, nil
	}

	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if reflect.DeepEqual(v.Index(i).Interface(), target) {
				return true, nil
			}
		}
		return false, nil

	case reflect.Map:
		return v.MapIndex(reflect.ValueOf(target)).IsValid(), nil

	case reflect.String:
		str, _ := collection.(string)
		substr, ok := target.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(str, substr), nil

	default:
		return false, nil
	}
}

// lengthFunc returns the length of a collection or string.
func lengthFunc(args ...interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("length requires exactly 1 argument, got %d", len(args))
	}
	if args[0] == nil {
		return 0, nil
	}

	v := reflect.ValueOf(args[0])
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return v.Len(), nil
	default:
		return nil, fmt.Errorf("length: unsupported type %T", args[0])
	}
}
