// Package schema holds the per-variant configuration field model and the
// loader that fetches it.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFieldNotFound is returned when a field id is not in the FieldSet.
var ErrFieldNotFound = errors.New("field not found")

// Kind is the input kind of a field.
type Kind int

const (
	// KindText is free-form text. Unknown wire types map here.
	KindText Kind = iota
	// KindNumeric holds a number entered as text.
	KindNumeric
	// KindEnumerated is one value out of Options.
	KindEnumerated
)

// ParseKind maps the wire type ("number", "text", "select") onto a Kind.
func ParseKind(wire string) Kind {
	switch strings.ToLower(strings.TrimSpace(wire)) {
	case "number", "numeric":
		return KindNumeric
	case "select", "enum", "enumerated":
		return KindEnumerated
	default:
		return KindText
	}
}

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "number"
	case KindEnumerated:
		return "select"
	default:
		return "text"
	}
}

// Category groups fields for display and for per-side cooling inputs.
type Category string

// Known categories.
const (
	CategoryDataCenter Category = "data_center"
	CategoryCoolingA   Category = "cooling_a"
	CategoryCoolingB   Category = "cooling_b"
	CategoryOther      Category = "other"
)

// ParseCategory normalizes a category name; unknown names become CategoryOther.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryDataCenter, CategoryCoolingA, CategoryCoolingB:
		return c
	case "datacenter", "data-center":
		return CategoryDataCenter
	case "aircooling", "air_cooling":
		return CategoryCoolingA
	case "liquidcooling", "liquid_cooling":
		return CategoryCoolingB
	default:
		return CategoryOther
	}
}

// FieldDescriptor is one configuration input.
type FieldDescriptor struct {
	ID        string
	Label     string
	Kind      Kind
	Value     string
	Unit      string
	Required  bool
	Options   []string
	IsDerived bool
	Category  Category

	// Min and Max are display hints from the schema; they are not enforced.
	Min *float64
	Max *float64
}

// Reserved values meaning "nothing chosen" for enumerated fields.
const (
	SentinelNone     = "none"
	SentinelSelectOp = "Select an Option"
)

// IsUnselected reports whether v is blank or one of the reserved sentinels.
func IsUnselected(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, SentinelNone) || strings.EqualFold(v, SentinelSelectOp)
}

// HasValue reports whether the field holds a non-blank value.
func (f FieldDescriptor) HasValue() bool {
	return strings.TrimSpace(f.Value) != ""
}

func (f FieldDescriptor) clone() FieldDescriptor {
	c := f
	if f.Options != nil {
		c.Options = append([]string(nil), f.Options...)
	}
	return c
}

// FieldSet is the ordered set of fields of one configuration instance.
// A nil *FieldSet behaves as an empty set. FieldSet is not safe for
// concurrent use; the Loader serializes access.
type FieldSet struct {
	fields []FieldDescriptor
	index  map[string]int
}

// NewFieldSet copies descs into a new set. Later duplicates of an id are dropped.
func NewFieldSet(descs []FieldDescriptor) *FieldSet {
	fs := &FieldSet{
		fields: make([]FieldDescriptor, 0, len(descs)),
		index:  make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		if d.ID == "" {
			continue
		}
		if _, dup := fs.index[d.ID]; dup {
			continue
		}
		fs.index[d.ID] = len(fs.fields)
		fs.fields = append(fs.fields, d.clone())
	}
	return fs
}

// Len returns the number of fields.
func (fs *FieldSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.fields)
}

// Get returns a copy of the field with id.
func (fs *FieldSet) Get(id string) (FieldDescriptor, bool) {
	if fs == nil {
		return FieldDescriptor{}, false
	}
	i, ok := fs.index[id]
	if !ok {
		return FieldDescriptor{}, false
	}
	return fs.fields[i].clone(), true
}

// Has reports whether id is part of the set.
func (fs *FieldSet) Has(id string) bool {
	_, ok := fs.Get(id)
	return ok
}

// Value returns the value of id, or "" when absent.
func (fs *FieldSet) Value(id string) string {
	f, _ := fs.Get(id)
	return f.Value
}

// Set stores a user-entered value and clears the derived flag.
func (fs *FieldSet) Set(id, value string) error {
	return fs.set(id, value, false)
}

// SetDerived stores a computed value and marks the field derived.
func (fs *FieldSet) SetDerived(id, value string) error {
	return fs.set(id, value, true)
}

func (fs *FieldSet) set(id, value string, derived bool) error {
	if fs == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	i, ok := fs.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	fs.fields[i].Value = value
	fs.fields[i].IsDerived = derived
	return nil
}

// Fields returns copies of all fields in schema order.
func (fs *FieldSet) Fields() []FieldDescriptor {
	if fs == nil {
		return nil
	}
	out := make([]FieldDescriptor, len(fs.fields))
	for i, f := range fs.fields {
		out[i] = f.clone()
	}
	return out
}

// ByCategory returns the fields of one category in schema order.
func (fs *FieldSet) ByCategory(c Category) []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range fs.Fields() {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// Values returns id → value for every field.
func (fs *FieldSet) Values() map[string]string {
	out := make(map[string]string, fs.Len())
	for _, f := range fs.Fields() {
		out[f.ID] = f.Value
	}
	return out
}

// Clone returns a deep copy.
func (fs *FieldSet) Clone() *FieldSet {
	return NewFieldSet(fs.Fields())
}
