package state

import (
	"math"
	"strconv"
	"strings"
)

// substituteNumbers rewrites every state.<path> reference and bare
// identifier in an arithmetic expression with its numeric value, leaving
// operators, spacing, and numeric literals in place. Unresolved or
// non-numeric references become 0, which lets expressions over unset
// counters evaluate instead of erroring.
func substituteNumbers(text string, s State) string {
	var out strings.Builder
	out.Grow(len(text))
	i := 0
	for i < len(text) {
		c := text[i]
		if isIdentStart(c) && (i == 0 || !isTokenChar(text[i-1])) {
			j := i
			for j < len(text) && isIdentChar(text[j]) {
				j++
			}
			out.WriteString(numericTextFor(text[i:j], s))
			i = j
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c == '.' || (c >= '0' && c <= '9')
}

// isTokenChar reports whether c could belong to a preceding number or
// identifier, in which case the current position does not start a fresh
// token (keeps "2e3" from being read as "2" + identifier "e3").
func isTokenChar(c byte) bool {
	return isIdentChar(c)
}

// numericTextFor resolves one identifier token to its numeric literal
// text. A "state." prefix is stripped before lookup; dotted tokens
// navigate into structured values; everything unresolved is 0.
func numericTextFor(token string, s State) string {
	path := token
	if rest, ok := strings.CutPrefix(token, "state."); ok {
		path = rest
	}
	segs := strings.Split(path, ".")
	root, ok := s.Get(segs[0])
	if !ok {
		return "0"
	}
	v, ok := root.Lookup(segs[1:])
	if !ok {
		return "0"
	}
	f, isInt, ok := v.asNumber()
	if !ok {
		return "0"
	}
	if isInt {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// evalArithmetic parses and evaluates a substituted arithmetic expression:
// the four basic operators with the usual precedence, unary minus, and
// numeric literals. It reports false on any parse error, trailing input,
// division by zero, or non-finite result; the caller then degrades to the
// substituted text.
func evalArithmetic(text string) (Value, bool) {
	p := arithParser{input: text}
	f, isInt, ok := p.parseSum()
	if !ok {
		return Value{}, false
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return Value{}, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, false
	}
	return numberValue(f, isInt), true
}

type arithParser struct {
	input string
	pos   int
}

func (p *arithParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *arithParser) peek() (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *arithParser) parseSum() (float64, bool, bool) {
	acc, accInt, ok := p.parseProduct()
	if !ok {
		return 0, false, false
	}
	for {
		op, found := p.peek()
		if !found || (op != '+' && op != '-') {
			return acc, accInt, true
		}
		p.pos++
		rhs, rhsInt, ok := p.parseProduct()
		if !ok {
			return 0, false, false
		}
		if op == '+' {
			acc += rhs
		} else {
			acc -= rhs
		}
		accInt = accInt && rhsInt
	}
}

func (p *arithParser) parseProduct() (float64, bool, bool) {
	acc, accInt, ok := p.parseUnary()
	if !ok {
		return 0, false, false
	}
	for {
		op, found := p.peek()
		if !found || (op != '*' && op != '/') {
			return acc, accInt, true
		}
		p.pos++
		rhs, rhsInt, ok := p.parseUnary()
		if !ok {
			return 0, false, false
		}
		if op == '*' {
			acc *= rhs
			accInt = accInt && rhsInt
		} else {
			if rhs == 0 {
				return 0, false, false
			}
			acc /= rhs
			accInt = accInt && rhsInt && acc == math.Trunc(acc)
		}
	}
}

func (p *arithParser) parseUnary() (float64, bool, bool) {
	if c, ok := p.peek(); ok && c == '-' {
		p.pos++
		f, isInt, ok := p.parseUnary()
		return -f, isInt, ok
	}
	return p.parseNumber()
}

func (p *arithParser) parseNumber() (float64, bool, bool) {
	p.skipSpace()
	start := p.pos
	sawDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !sawDot {
			sawDot = true
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, false, false
	}
	f, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, false, false
	}
	return f, !sawDot, true
}
