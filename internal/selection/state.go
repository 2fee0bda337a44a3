// Package selection resolves the four-level industry → technology →
// solution → variant selection chain.
package selection

import "fmt"

// Level is one step of the selection chain.
type Level int

// Selection levels, shallowest first.
const (
	LevelNone Level = iota
	LevelIndustry
	LevelTechnology
	LevelSolution
	LevelVariant
)

// levelCount sizes per-level arrays.
const levelCount = int(LevelVariant) + 1

func (l Level) String() string {
	switch l {
	case LevelIndustry:
		return "industry"
	case LevelTechnology:
		return "technology"
	case LevelSolution:
		return "solution"
	case LevelVariant:
		return "variant"
	default:
		return "none"
	}
}

// Option is one selectable entry of a hierarchy list.
type Option struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// State is the current selection. A level's id is set only if every
// ancestor id is set.
type State struct {
	Level        Level
	IndustryID   string
	TechnologyID string
	SolutionID   string
	VariantID    string
}

// Resolved reports whether all four ids are set.
func (s State) Resolved() bool {
	return s.IndustryID != "" && s.TechnologyID != "" && s.SolutionID != "" && s.VariantID != ""
}

// Consistent reports whether the cascade invariant holds.
func (s State) Consistent() bool {
	switch {
	case s.TechnologyID != "" && s.IndustryID == "":
		return false
	case s.SolutionID != "" && s.TechnologyID == "":
		return false
	case s.VariantID != "" && s.SolutionID == "":
		return false
	}
	return s.Level == s.deepest()
}

// ID returns the id selected at level l.
func (s State) ID(l Level) string {
	switch l {
	case LevelIndustry:
		return s.IndustryID
	case LevelTechnology:
		return s.TechnologyID
	case LevelSolution:
		return s.SolutionID
	case LevelVariant:
		return s.VariantID
	default:
		return ""
	}
}

// Missing returns the levels without an id, shallowest first.
func (s State) Missing() []Level {
	var out []Level
	for l := LevelIndustry; l <= LevelVariant; l++ {
		if s.ID(l) == "" {
			out = append(out, l)
		}
	}
	return out
}

func (s State) deepest() Level {
	switch {
	case s.VariantID != "":
		return LevelVariant
	case s.SolutionID != "":
		return LevelSolution
	case s.TechnologyID != "":
		return LevelTechnology
	case s.IndustryID != "":
		return LevelIndustry
	default:
		return LevelNone
	}
}

// clearBelow empties every id deeper than l.
func (s *State) clearBelow(l Level) {
	if l < LevelVariant {
		s.VariantID = ""
	}
	if l < LevelSolution {
		s.SolutionID = ""
	}
	if l < LevelTechnology {
		s.TechnologyID = ""
	}
	if l < LevelIndustry {
		s.IndustryID = ""
	}
	s.Level = s.deepest()
}

// HierarchyFetchError describes a failed list fetch. The resolver treats the
// list as empty and logs the error.
type HierarchyFetchError struct {
	Level    Level
	ParentID string
	Err      error
}

func (e *HierarchyFetchError) Error() string {
	if e.ParentID == "" {
		return fmt.Sprintf("fetching %s list: %v", e.Level, e.Err)
	}
	return fmt.Sprintf("fetching %s list for %q: %v", e.Level, e.ParentID, e.Err)
}

func (e *HierarchyFetchError) Unwrap() error {
	return e.Err
}
