package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyAPI         = "api"
	keyCalculation = "calculation"
	keyCache       = "cache"
	keyLogging     = "logging"
	keyOutput      = "output"
	keyTracing     = "tracing"
	keyTables      = "tables"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyAPI:         true,
	keyCalculation: true,
	keyCache:       true,
	keyLogging:     true,
	keyOutput:      true,
	keyTracing:     true,
	keyTables:      true,
}
// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	// Discover which top-level keys are present in the overlay.
	var overlay map[string]interface{}
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, value := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}

		// Re-marshal the single section so we can unmarshal it onto the
		// strongly-typed target field.
		sectionBytes, marshalErr := yaml.Marshal(value)
		if marshalErr != nil {
			return fmt.Errorf("re-marshalling overlay section %q: %w", key, marshalErr)
		}

		if err = unmarshalSection(target, key, sectionBytes); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// unmarshalSection unmarshals raw YAML bytes into the correct field of target
// based on the given key name. Each section is unmarshalled into a fresh
// zero-value to ensure complete replacement (yaml.Unmarshal merges into
// existing maps, which would violate shallow-merge semantics).
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keyAPI:
		return replaceSection(data, &target.API)
	case keyCalculation:
		return replaceSection(data, &target.Calculation)
	case keyCache:
		return replaceSection(data, &target.Cache)
	case keyLogging:
		return replaceSection(data, &target.Logging)
	case keyOutput:
		return replaceSection(data, &target.Output)
	case keyTracing:
		return replaceSection(data, &target.Tracing)
	case keyTables:
		return mergeTables(data, &target.Tables)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// replaceSection decodes data into a fresh zero value and assigns it to dst.
func replaceSection[T any](data []byte, dst *T) error {
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// mergeTables replaces only the table sub-sections present in data, so a
// config file can override the pPUE matrix without restating every table.
func mergeTables(data []byte, dst *Tables) error {
	var present map[string]yaml.Node
	if err := yaml.Unmarshal(data, &present); err != nil {
		return err
	}

	for key, node := range present {
		var err error
		switch key {
		case "derivation":
			var v DerivationTables
			err = node.Decode(&v)
			dst.Derivation = v
		case "calculation":
			var v CalculationTables
			err = node.Decode(&v)
			dst.Calculation = v
		case "field_categories":
			var v map[string]string
			err = node.Decode(&v)
			dst.FieldCategories = v
		case "it_cost_keys":
			var v []string
			err = node.Decode(&v)
			dst.ITCostKeys = v
		case "result_labels":
			var v map[string]string
			err = node.Decode(&v)
			dst.ResultLabels = v
		}
		if err != nil {
			return fmt.Errorf("tables.%s: %w", key, err)
		}
	}
	return dst.Validate()
}
