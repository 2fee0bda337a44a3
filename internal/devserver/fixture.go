package devserver

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshade/tcocalc/internal/apiclient"
)

//go:embed fixtures/catalog.yaml
var defaultFixtureYAML []byte

// Fixture is the catalog and calculation model the server answers from.
type Fixture struct {
	APIVersion          string                         `yaml:"api_version"`
	SolutionTypes       []string                       `yaml:"solution_types"`
	RequiredRequestKeys []string                       `yaml:"required_request_keys"`
	Industries          []Industry                     `yaml:"industries"`
	BaseFields          []apiclient.WireField          `yaml:"base_fields"`
	SolutionFields      map[string]apiclient.WireField `yaml:"solution_fields"`
	Model               Model                          `yaml:"model"`
}

// Industry is a catalog root entry.
type Industry struct {
	Entry        `yaml:",inline"`
	Technologies []Technology `yaml:"technologies"`
}

// Technology groups solutions.
type Technology struct {
	Entry     `yaml:",inline"`
	Solutions []Solution `yaml:"solutions"`
}

// Solution lists its extra schema fields and its variants.
type Solution struct {
	Entry    `yaml:",inline"`
	Fields   []string `yaml:"fields"`
	Variants []Entry  `yaml:"variants"`
}

// Entry is the id/name/description triple every level shares.
type Entry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

func (e Entry) wire() apiclient.WireOption {
	return apiclient.WireOption{ID: e.ID, Name: e.Name, Description: e.Description}
}

// DefaultFixture parses the embedded catalog. It panics if the embedded
// document is invalid.
func DefaultFixture() *Fixture {
	f, err := ParseFixture(defaultFixtureYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded fixture is invalid: %v", err))
	}
	return f
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates a fixture document.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks ids are unique per level and every referenced solution
// field exists.
func (f *Fixture) Validate() error {
	var errs []error
	if len(f.SolutionTypes) == 0 {
		errs = append(errs, errors.New("solution_types cannot be empty"))
	}
	seen := make(map[string]bool)
	check := func(kind, id string) {
		key := kind + "/" + id
		switch {
		case strings.TrimSpace(id) == "":
			errs = append(errs, fmt.Errorf("%s with empty id", kind))
		case seen[key]:
			errs = append(errs, fmt.Errorf("duplicate %s id %q", kind, id))
		}
		seen[key] = true
	}
	for _, ind := range f.Industries {
		check("industry", ind.ID)
		for _, tech := range ind.Technologies {
			check("technology", ind.ID+"/"+tech.ID)
			for _, sol := range tech.Solutions {
				check("solution", sol.ID)
				for _, v := range sol.Variants {
					check("variant", v.ID)
				}
				for _, field := range sol.Fields {
					if _, ok := f.SolutionFields[field]; !ok {
						errs = append(errs, fmt.Errorf("solution %q references unknown field %q", sol.ID, field))
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (f *Fixture) industry(id string) (Industry, bool) {
	for _, ind := range f.Industries {
		if ind.ID == id {
			return ind, true
		}
	}
	return Industry{}, false
}

func (f *Fixture) technology(industryID, technologyID string) (Technology, bool) {
	ind, ok := f.industry(industryID)
	if !ok {
		return Technology{}, false
	}
	for _, t := range ind.Technologies {
		if t.ID == technologyID {
			return t, true
		}
	}
	return Technology{}, false
}

// solution finds a solution by id anywhere in the catalog.
func (f *Fixture) solution(match func(Solution) bool) (Solution, bool) {
	for _, ind := range f.Industries {
		for _, tech := range ind.Technologies {
			for _, sol := range tech.Solutions {
				if match(sol) {
					return sol, true
				}
			}
		}
	}
	return Solution{}, false
}

func (f *Fixture) solutionByID(id string) (Solution, bool) {
	return f.solution(func(s Solution) bool { return s.ID == id })
}

func (f *Fixture) solutionByVariant(variantID string) (Solution, bool) {
	return f.solution(func(s Solution) bool {
		for _, v := range s.Variants {
			if v.ID == variantID {
				return true
			}
		}
		return false
	})
}

func (f *Fixture) solutionByName(name string) (Solution, bool) {
	return f.solution(func(s Solution) bool { return strings.EqualFold(strings.TrimSpace(name), s.Name) })
}

// schema returns the base fields followed by sol's own fields.
func (f *Fixture) schema(sol Solution) []apiclient.WireField {
	out := append([]apiclient.WireField(nil), f.BaseFields...)
	for _, id := range sol.Fields {
		out = append(out, f.SolutionFields[id])
	}
	return out
}

func (f *Fixture) supportsSolutionType(t string) bool {
	for _, s := range f.SolutionTypes {
		if s == t {
			return true
		}
	}
	return false
}
