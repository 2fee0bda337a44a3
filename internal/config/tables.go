package config

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/tables.yaml
var defaultTablesYAML []byte

// Tables holds the lookup data injected into the derivation engine, the
// calculation request builder, and the comparison diff.
type Tables struct {
	Derivation      DerivationTables  `yaml:"derivation"`
	Calculation     CalculationTables `yaml:"calculation"`
	FieldCategories map[string]string `yaml:"field_categories"`
	ITCostKeys      []string          `yaml:"it_cost_keys"`
	ResultLabels    map[string]string `yaml:"result_labels"`
}

// DerivationTables describes one derived field and its two-key lookup.
type DerivationTables struct {
	Target           string `yaml:"target"`
	UtilisationField string `yaml:"utilisation_field"`
	LocationField    string `yaml:"location_field"`

	// Values is keyed by utilisation bucket, then location alias.
	Values          map[string]map[string]string `yaml:"values"`
	LocationAliases map[string]string            `yaml:"location_aliases"`
}

// CalculationTables maps schema fields onto calculation request keys.
type CalculationTables struct {
	Fields        map[string]FieldRule `yaml:"fields"`
	SolutionTypes map[string]string    `yaml:"solution_types"`
}

// FieldRule is one field id → request key mapping.
type FieldRule struct {
	Key    string `yaml:"key"`
	Coerce string `yaml:"coerce,omitempty"`
}

// Coercion names accepted in FieldRule.Coerce.
const (
	CoercePassthrough = "passthrough"
	CoerceNumber      = "number"
	CoercePercent     = "percent"
)

// DefaultTables parses the embedded defaults. The embedded document is part of
// the binary, so a parse failure is a build defect and panics.
func DefaultTables() Tables {
	t, err := ParseTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tables are invalid: %v", err))
	}
	return t
}

// ParseTables decodes a tables document.
func ParseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parsing tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks that every table is usable.
func (t Tables) Validate() error {
	d := t.Derivation
	if d.Target == "" || d.UtilisationField == "" || d.LocationField == "" {
		return errors.New("tables.derivation: target, utilisation_field and location_field are required")
	}
	for bucket, row := range d.Values {
		if len(row) == 0 {
			return fmt.Errorf("tables.derivation.values[%q] is empty", bucket)
		}
	}
	for id, rule := range t.Calculation.Fields {
		if rule.Key == "" {
			return fmt.Errorf("tables.calculation.fields[%q]: key is required", id)
		}
		switch rule.Coerce {
		case "", CoercePassthrough, CoerceNumber, CoercePercent:
		default:
			return fmt.Errorf("tables.calculation.fields[%q]: unknown coerce %q", id, rule.Coerce)
		}
	}
	return nil
}
