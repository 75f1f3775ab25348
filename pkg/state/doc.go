// Package state implements the scoped variable store and the template
// expression engine that carry data between pipeline steps.
//
// A State holds three variable scopes (global, session, loop) with fixed
// lookup precedence (loop wins over session, session over global) plus an
// execution cursor. States are immutable values: every operation that
// changes one returns a new State and leaves the receiver untouched, which
// is what makes handing independent copies to parallel branches safe
// without any locking.
//
// Templates embed expressions in double curly braces:
//
//	"Hello {{name}}, total: {{add(count, 1)}}"
//
// Expressions resolve against the State and, when supplied, an ExecContext
// carrying prior step results, sub-pipeline inputs, and cross-pipeline
// global variables. Resolution never fails: references into an absent
// context key evaluate to the original {{...}} text so that an outer
// pipeline layer can interpolate them later, and malformed expressions
// degrade to a best-effort reconstruction of their input.
package state
