package apiclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rshade/tcocalc/internal/schema"
	"github.com/rshade/tcocalc/internal/selection"
)

// Routes served by the catalog and calculation engine.
const (
	RouteIndustries   = "/api/value-calculator/industries"
	RouteTechnologies = "/api/value-calculator/technologies"
	RouteSolutions    = "/api/value-calculator/solutions"
	RouteVariants     = "/api/value-calculator/solution-variants"
	RouteSchema       = "/api/value-calculator/solution-variant-config"
	RouteCalculate    = "/api/calculations/calculate"
)

// Query parameter names.
const (
	ParamIndustryID   = "industryId"
	ParamTechnologyID = "technologyId"
	ParamSolutionID   = "solutionId"
	ParamVariantID    = "solutionVariantId"
	ParamSolutionName = "solutionName"
)

// Headers exchanged with the engine.
const (
	HeaderRequestID  = "X-Request-ID"
	HeaderAPIVersion = "X-API-Version"
)

// placeholderValue is the spreadsheet "no value" marker some schemas carry
// as a field default.
const placeholderValue = "#N/A"

// Envelope wraps every response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WireOption is one entry of a hierarchy list. Catalog documents exported
// from a document store may carry their id as "_id".
type WireOption struct {
	ID          string `json:"id,omitempty"`
	DocumentID  string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Option converts to the resolver type.
func (o WireOption) Option() selection.Option {
	id := o.ID
	if id == "" {
		id = o.DocumentID
	}
	return selection.Option{ID: id, Name: o.Name, Description: o.Description}
}

// SchemaData is the payload of RouteSchema.
type SchemaData struct {
	ConfigFields []WireField `json:"config_fields"`
}

// WireField is one field as described by the engine.
type WireField struct {
	ID       string     `json:"id" yaml:"id"`
	Label    string     `json:"label" yaml:"label"`
	Type     string     `json:"type" yaml:"type"`
	Value    FlexString `json:"value,omitempty" yaml:"value,omitempty"`
	Unit     string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Required bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Options  []string   `json:"options,omitempty" yaml:"options,omitempty"`
	MinValue *float64   `json:"min_value,omitempty" yaml:"min_value,omitempty"`
	MaxValue *float64   `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Category string     `json:"category,omitempty" yaml:"category,omitempty"`
}

// Descriptor converts to the schema type. An unknown type becomes Text and
// the "#N/A" placeholder becomes an empty value.
func (w WireField) Descriptor() schema.FieldDescriptor {
	value := strings.TrimSpace(string(w.Value))
	if strings.EqualFold(value, placeholderValue) {
		value = ""
	}
	d := schema.FieldDescriptor{
		ID:       w.ID,
		Label:    w.Label,
		Kind:     schema.ParseKind(w.Type),
		Value:    value,
		Unit:     w.Unit,
		Required: w.Required,
		Options:  append([]string(nil), w.Options...),
		Min:      w.MinValue,
		Max:      w.MaxValue,
	}
	if w.Category != "" {
		d.Category = schema.ParseCategory(w.Category)
	}
	return d
}

// FlexString accepts a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
