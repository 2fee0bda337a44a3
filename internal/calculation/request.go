// Package calculation turns a configuration FieldSet into a request for the
// remote calculation engine and invokes it.
package calculation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/rshade/tcocalc/internal/schema"
)

// SolutionTypeKey is the request key carrying the solution type.
const SolutionTypeKey = "solution_type"

// Coercion says how a field value is converted for the request.
type Coercion string

// Supported coercions.
const (
	CoercePassthrough Coercion = "passthrough"
	CoerceNumber      Coercion = "number"
	CoercePercent     Coercion = "percent"
)

// FieldRule maps one field id to a request key.
type FieldRule struct {
	Key    string
	Coerce Coercion
}

// Mapping is the field → request-key table plus the solution name → type
// table. Both come from configuration.
type Mapping struct {
	fields        map[string]FieldRule
	solutionTypes map[string]string
}

// NewMapping copies the tables. Solution names match case-insensitively.
func NewMapping(fields map[string]FieldRule, solutionTypes map[string]string) Mapping {
	m := Mapping{
		fields:        make(map[string]FieldRule, len(fields)),
		solutionTypes: make(map[string]string, len(solutionTypes)),
	}
	for id, rule := range fields {
		if rule.Coerce == "" {
			rule.Coerce = CoercePassthrough
		}
		m.fields[id] = rule
	}
	for name, typ := range solutionTypes {
		m.solutionTypes[normalizeName(name)] = typ
	}
	return m
}

// SolutionType resolves a solution display name through the table, falling
// back to a slug of the name.
func (m Mapping) SolutionType(solutionName string) string {
	if typ, ok := m.solutionTypes[normalizeName(solutionName)]; ok {
		return typ
	}
	return Slugify(solutionName)
}

// Request is a normalized calculation request.
type Request struct {
	SolutionType string
	Values       map[string]any
}

// MarshalJSON renders the request as one flat object.
func (r Request) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Values)+1)
	for k, v := range r.Values {
		flat[k] = v
	}
	flat[SolutionTypeKey] = r.SolutionType
	return json.Marshal(flat)
}

// Params renders the request as strings, sorted by key, for audit logging.
func (r Request) Params() map[string]string {
	out := make(map[string]string, len(r.Values)+1)
	for k, v := range r.Values {
		out[k] = fmt.Sprint(v)
	}
	out[SolutionTypeKey] = r.SolutionType
	return out
}

// Keys returns the request keys in sorted order.
func (r Request) Keys() []string {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildRequest maps every field with a rule onto its request key. Fields
// without a rule and fields that are empty or hold an "unselected" sentinel
// are left out. A value that fails numeric coercion is sent as the raw string.
func BuildRequest(fs *schema.FieldSet, solutionName string, m Mapping) Request {
	req := Request{
		SolutionType: m.SolutionType(solutionName),
		Values:       make(map[string]any),
	}
	for _, f := range fs.Fields() {
		rule, ok := m.fields[f.ID]
		if !ok || schema.IsUnselected(f.Value) {
			continue
		}
		req.Values[rule.Key] = coerce(strings.TrimSpace(f.Value), rule.Coerce)
	}
	return req
}

func coerce(v string, c Coercion) any {
	switch c {
	case CoercePercent:
		v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
		fallthrough
	case CoerceNumber:
		if n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil && isFinite(n) {
			return n
		}
		return v
	default:
		return v
	}
}

// Slugify lowercases s and collapses every run of non-alphanumerics to "_".
func Slugify(s string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return sb.String()
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
