// Package validation decides whether a configuration is complete enough to
// be sent for calculation.
package validation

import (
	"github.com/rshade/tcocalc/internal/schema"
	"github.com/rshade/tcocalc/internal/selection"
)

// Problem names one reason a configuration is incomplete.
type Problem struct {
	// Level is set for a missing selection.
	Level selection.Level
	// FieldID is set for an unsatisfied required field.
	FieldID string
	// Loading is set while a schema load is in flight.
	Loading bool
}

func (p Problem) String() string {
	switch {
	case p.Loading:
		return "field schema still loading"
	case p.FieldID != "":
		return "required field " + p.FieldID + " is empty"
	default:
		return p.Level.String() + " not selected"
	}
}

// IsComplete reports whether every selection level is set, no schema load is
// in flight, and every required field across sets is satisfied.
func IsComplete(state selection.State, loading bool, sets ...*schema.FieldSet) bool {
	return len(Missing(state, loading, sets...)) == 0
}

// Missing lists every reason IsComplete would return false.
func Missing(state selection.State, loading bool, sets ...*schema.FieldSet) []Problem {
	var problems []Problem
	for _, l := range state.Missing() {
		problems = append(problems, Problem{Level: l})
	}
	if loading {
		problems = append(problems, Problem{Loading: true})
	}
	for _, fs := range sets {
		for _, f := range fs.Fields() {
			if f.Required && !Satisfied(f) {
				problems = append(problems, Problem{FieldID: f.ID})
			}
		}
	}
	return problems
}

// Satisfied reports whether a field's value counts as filled in. Enumerated
// fields additionally reject the "unselected" sentinels.
func Satisfied(f schema.FieldDescriptor) bool {
	if f.Kind == schema.KindEnumerated {
		return !schema.IsUnselected(f.Value)
	}
	return f.HasValue()
}
