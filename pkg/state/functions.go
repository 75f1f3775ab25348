package state

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numberPattern recognizes bare numeric literal arguments.
var numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// callBuiltin evaluates one of the built-in template functions over already
// split argument texts. It reports false for an unknown name, a wrong
// argument count, or division by zero, in which case the caller falls back
// to reproducing the original call text.
func callBuiltin(name string, args []string, s State, ec *ExecContext) (Value, bool) {
	nums := make([]float64, len(args))
	allInt := true
	for i, arg := range args {
		f, isInt := resolveArg(arg, s, ec)
		nums[i] = f
		if !isInt {
			allInt = false
		}
	}

	switch name {
	case "add":
		if len(nums) < 1 {
			return Value{}, false
		}
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		return numberValue(sum, allInt), true

	case "subtract":
		if len(nums) != 2 {
			return Value{}, false
		}
		return numberValue(nums[0]-nums[1], allInt), true

	case "multiply":
		if len(nums) < 1 {
			return Value{}, false
		}
		product := 1.0
		for _, n := range nums {
			product *= n
		}
		return numberValue(product, allInt), true

	case "divide":
		if len(nums) != 2 || nums[1] == 0 {
			return Value{}, false
		}
		q := nums[0] / nums[1]
		return numberValue(q, allInt && q == math.Trunc(q)), true

	case "max":
		if len(nums) < 1 {
			return Value{}, false
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if n > best {
				best = n
			}
		}
		return numberValue(best, allInt), true

	case "min":
		if len(nums) < 1 {
			return Value{}, false
		}
		best := nums[0]
		for _, n := range nums[1:] {
			if n < best {
				best = n
			}
		}
		return numberValue(best, allInt), true

	case "round":
		if len(nums) != 1 {
			return Value{}, false
		}
		return numberValue(math.Round(nums[0]), true), true

	case "floor":
		if len(nums) != 1 {
			return Value{}, false
		}
		return numberValue(math.Floor(nums[0]), true), true

	case "ceil":
		if len(nums) != 1 {
			return Value{}, false
		}
		return numberValue(math.Ceil(nums[0]), true), true

	default:
		return Value{}, false
	}
}

// resolveArg turns one raw argument text into a number. Numeric literals
// are recognized first; anything else goes through expression resolution
// and numeric coercion, with unresolvable arguments defaulting to zero.
func resolveArg(arg string, s State, ec *ExecContext) (f float64, isInt bool) {
	if numberPattern.MatchString(arg) {
		if !strings.Contains(arg, ".") {
			if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
				return float64(n), true
			}
		}
		parsed, _ := strconv.ParseFloat(arg, 64)
		return parsed, false
	}
	v := resolveExpression(arg, arg, s, ec)
	if f, isInt, ok := v.asNumber(); ok {
		return f, isInt
	}
	return 0, true
}
