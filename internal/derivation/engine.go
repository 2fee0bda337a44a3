package derivation

import (
	"context"
	"errors"

	"github.com/rshade/tcocalc/internal/logging"
	"github.com/rshade/tcocalc/internal/schema"
)

// ErrFieldLocked is returned when a derived field is edited before both of
// its dependencies have values.
var ErrFieldLocked = errors.New("field is locked until its dependencies are set")

// Rule names the derived field and its two dependencies.
type Rule struct {
	Target      string
	Utilisation string
	Location    string
}

// Engine applies one Rule using one Table.
type Engine struct {
	rule  Rule
	table *Table
}

// NewEngine returns an Engine for rule backed by table.
func NewEngine(rule Rule, table *Table) *Engine {
	return &Engine{rule: rule, table: table}
}

// Rule returns the engine's rule.
func (e *Engine) Rule() Rule {
	return e.rule
}

// IsDependency reports whether id is one of the rule's dependency fields.
func (e *Engine) IsDependency(id string) bool {
	return id == e.rule.Utilisation || id == e.rule.Location
}

// Locked reports whether the target cannot be edited yet because a
// dependency is empty.
func (e *Engine) Locked(fs *schema.FieldSet) bool {
	return schema.IsUnselected(fs.Value(e.rule.Utilisation)) || schema.IsUnselected(fs.Value(e.rule.Location))
}

// Apply fills the target from the table when both dependencies are set and
// the target is empty. A target that already holds any value, derived or
// entered, is left alone. It reports whether the target changed.
func (e *Engine) Apply(ctx context.Context, fs *schema.FieldSet) bool {
	target, ok := fs.Get(e.rule.Target)
	if !ok || target.HasValue() || e.Locked(fs) {
		return false
	}

	utilisation := fs.Value(e.rule.Utilisation)
	location := fs.Value(e.rule.Location)
	v, found := e.table.Lookup(utilisation, location)

	log := logging.FromContext(ctx)
	if !found {
		log.Debug().Ctx(ctx).
			Str("component", "derivation").
			Str("utilisation", utilisation).
			Str("location", location).
			Msg("no table entry, leaving derived field empty")
		return false
	}

	if err := fs.SetDerived(e.rule.Target, v); err != nil {
		return false
	}
	log.Debug().Ctx(ctx).
		Str("component", "derivation").
		Str("field", e.rule.Target).
		Str("value", v).
		Str("location_alias", e.table.ResolveLocation(location)).
		Msg("derived field populated")
	return true
}
