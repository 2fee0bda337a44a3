// Package derivation fills derived configuration fields from a two-key lookup
// table once both of their dependency fields are known.
package derivation

import (
	"strings"
)

// Table maps a utilisation bucket and a location to a value. Locations are
// resolved through an alias map first, so "United Kingdom" and "UK" hit the
// same column. Table is immutable after construction.
type Table struct {
	values  map[string]map[string]string
	aliases map[string]string
}

// NewTable copies values and aliases into a Table. Utilisation keys are
// normalized ("40%" and "40" are the same bucket); location matching is
// case-insensitive.
func NewTable(values map[string]map[string]string, aliases map[string]string) *Table {
	t := &Table{
		values:  make(map[string]map[string]string, len(values)),
		aliases: make(map[string]string, len(aliases)),
	}
	for bucket, row := range values {
		r := make(map[string]string, len(row))
		for loc, v := range row {
			r[locationKey(loc)] = v
		}
		t.values[bucketKey(bucket)] = r
	}
	for name, alias := range aliases {
		t.aliases[locationKey(name)] = alias
	}
	return t
}

// ResolveLocation returns the alias for a location name, or the name itself.
func (t *Table) ResolveLocation(location string) string {
	if alias, ok := t.aliases[locationKey(location)]; ok {
		return alias
	}
	return strings.TrimSpace(location)
}

// Lookup returns the value for (utilisation, location), if present.
func (t *Table) Lookup(utilisation, location string) (string, bool) {
	row, ok := t.values[bucketKey(utilisation)]
	if !ok {
		return "", false
	}
	v, ok := row[locationKey(t.ResolveLocation(location))]
	return v, ok
}

func bucketKey(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

func locationKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
