// Package testutil provides an in-memory catalog and calculation engine for
// tests that drive instances and comparisons without a network.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/schema"
	"github.com/rshade/tcocalc/internal/selection"
)

// Identifiers used by the standard catalog.
const (
	IndustryDataCentres  = "data-centres"
	TechnologyCooling    = "cooling-systems"
	SolutionAir          = "air-cooling"
	SolutionLiquid       = "liquid-cooling"
	VariantCRAH          = "crah-units"
	VariantDirectToChip  = "direct-to-chip"
	VariantImmersionTank = "immersion-tank"
)

// ErrUnavailable is returned for ids the catalog does not know.
var ErrUnavailable = errors.New("catalog entry unavailable")

// Field ids of the standard schemas.
const (
	FieldDataCentreType = "data_centre_type"
	FieldLocation       = "project_location"
	FieldUtilisation    = "utilisation_percentage"
	FieldCapacity       = "data_hall_capacity"
	FieldYears          = "planned_years_operation"
	FieldFirstYear      = "first_year_operation"
	FieldAirPPUE        = "air_annualised_ppue"
	FieldLiquidPPUE     = "annualised_liquid_cooled_ppue"
	FieldNotes          = "notes"
)

// RequiredValues fills every required field of the standard schemas except
// the derived pPUE and its two dependencies.
func RequiredValues() [][2]string {
	return [][2]string{
		{FieldDataCentreType, "Greenfield"},
		{FieldCapacity, "10"},
		{FieldYears, "10"},
		{FieldFirstYear, "2026"},
	}
}

// Catalog implements selection.Lister and schema.Fetcher over fixed data.
// Schema fetches can be held open with GateSchema.
type Catalog struct {
	mu           sync.Mutex
	industries   []selection.Option
	technologies map[string][]selection.Option
	solutions    map[string][]selection.Option
	variants     map[string][]selection.Option
	schemas      map[string][]schema.FieldDescriptor
	failSchema   map[string]bool
	gates        map[string]chan struct{}
	calls        map[string]int
}

// NewCatalog returns the standard data-centre cooling catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		industries: []selection.Option{
			{ID: IndustryDataCentres, Name: "Data Centres"},
			{ID: "telecom", Name: "Telecom"},
		},
		technologies: map[string][]selection.Option{
			IndustryDataCentres: {{ID: TechnologyCooling, Name: "Cooling Systems"}},
			"telecom":           {{ID: "edge-cooling", Name: "Edge Cooling"}},
		},
		solutions: map[string][]selection.Option{
			IndustryDataCentres + "/" + TechnologyCooling: {
				{ID: SolutionAir, Name: "Air Cooling"},
				{ID: SolutionLiquid, Name: "Liquid Cooling"},
			},
		},
		variants: map[string][]selection.Option{
			SolutionAir:    {{ID: VariantCRAH, Name: "CRAH Units"}},
			SolutionLiquid: {{ID: VariantDirectToChip, Name: "Direct to Chip"}, {ID: VariantImmersionTank, Name: "Immersion Tank"}},
		},
		schemas: map[string][]schema.FieldDescriptor{
			VariantCRAH:          standardSchema(),
			VariantDirectToChip:  append(standardSchema(), liquidField()),
			VariantImmersionTank: append(standardSchema(), liquidField()),
		},
		failSchema: make(map[string]bool),
		gates:      make(map[string]chan struct{}),
		calls:      make(map[string]int),
	}
}

func standardSchema() []schema.FieldDescriptor {
	return []schema.FieldDescriptor{
		{ID: FieldDataCentreType, Label: "Data Centre Type", Kind: schema.KindEnumerated, Required: true,
			Options: []string{"Greenfield", "HPC/AI"}, Value: "Select an Option"},
		{ID: FieldLocation, Label: "Project Location", Kind: schema.KindEnumerated, Required: true,
			Options: []string{"UK", "USA", "Singapore", "UAE"}},
		{ID: FieldUtilisation, Label: "Utilisation", Kind: schema.KindEnumerated, Required: true, Unit: "%",
			Options: []string{"20%", "40%", "60%", "80%", "100%"}},
		{ID: FieldCapacity, Label: "Data Hall Capacity", Kind: schema.KindNumeric, Required: true, Unit: "MW"},
		{ID: FieldYears, Label: "Planned Years of Operation", Kind: schema.KindNumeric, Required: true, Unit: "years"},
		{ID: FieldFirstYear, Label: "First Year of Operation", Kind: schema.KindNumeric, Required: true},
		{ID: FieldAirPPUE, Label: "Air Annualised pPUE", Kind: schema.KindNumeric, Required: true},
		{ID: FieldNotes, Label: "Notes", Kind: schema.KindText},
	}
}

func liquidField() schema.FieldDescriptor {
	return schema.FieldDescriptor{ID: FieldLiquidPPUE, Label: "Annualised Liquid Cooled pPUE", Kind: schema.KindNumeric}
}

// GateSchema holds FetchSchema for variantID until release is called.
func (c *Catalog) GateSchema(variantID string) (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.gates[variantID] = ch
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(ch)
			c.mu.Lock()
			delete(c.gates, variantID)
			c.mu.Unlock()
		})
	}
}

// FailSchema makes FetchSchema fail for variantID.
func (c *Catalog) FailSchema(variantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSchema[variantID] = true
}

// Calls returns how often the named method was called.
func (c *Catalog) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Catalog) count(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

// ListIndustries implements selection.Lister.
func (c *Catalog) ListIndustries(context.Context) ([]selection.Option, error) {
	c.count("ListIndustries")
	return c.list(c.industries, true)
}

// ListTechnologies implements selection.Lister.
func (c *Catalog) ListTechnologies(_ context.Context, industryID string) ([]selection.Option, error) {
	c.count("ListTechnologies")
	opts, ok := c.technologies[industryID]
	return c.list(opts, ok)
}

// ListSolutions implements selection.Lister.
func (c *Catalog) ListSolutions(_ context.Context, industryID, technologyID string) ([]selection.Option, error) {
	c.count("ListSolutions")
	opts, ok := c.solutions[industryID+"/"+technologyID]
	return c.list(opts, ok)
}

// ListVariants implements selection.Lister.
func (c *Catalog) ListVariants(_ context.Context, solutionID string) ([]selection.Option, error) {
	c.count("ListVariants")
	opts, ok := c.variants[solutionID]
	return c.list(opts, ok)
}

func (c *Catalog) list(opts []selection.Option, ok bool) ([]selection.Option, error) {
	if !ok {
		return nil, ErrUnavailable
	}
	return append([]selection.Option(nil), opts...), nil
}

// FetchSchema implements schema.Fetcher.
func (c *Catalog) FetchSchema(ctx context.Context, variantID, _ string) ([]schema.FieldDescriptor, error) {
	c.count("FetchSchema")
	c.mu.Lock()
	gate := c.gates[variantID]
	fail := c.failSchema[variantID]
	descs, ok := c.schemas[variantID]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail || !ok {
		return nil, fmt.Errorf("%w: schema %s", ErrUnavailable, variantID)
	}
	out := make([]schema.FieldDescriptor, len(descs))
	for i, d := range descs {
		d.Options = append([]string(nil), d.Options...)
		out[i] = d
	}
	return out, nil
}

var (
	_ selection.Lister = (*Catalog)(nil)
	_ schema.Fetcher   = (*Catalog)(nil)
)

// Engine is a calculation.Engine that records requests. Behaviour per
// solution type can be replaced with Handle.
type Engine struct {
	mu       sync.Mutex
	handlers map[string]calculation.EngineFunc
	requests []calculation.Request
}

// NewEngine returns an Engine answering every request with StandardResult.
func NewEngine() *Engine {
	return &Engine{handlers: make(map[string]calculation.EngineFunc)}
}

// Handle overrides the response for one solution type.
func (e *Engine) Handle(solutionType string, fn calculation.EngineFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[solutionType] = fn
}

// Requests returns every request received so far.
func (e *Engine) Requests() []calculation.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]calculation.Request(nil), e.requests...)
}

// Calculate implements calculation.Engine.
func (e *Engine) Calculate(ctx context.Context, req calculation.Request) (calculation.Result, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	h := e.handlers[req.SolutionType]
	e.mu.Unlock()

	if h != nil {
		return h(ctx, req)
	}
	return StandardResult(req), nil
}

// StandardResult is a deterministic result derived from capacity and pPUE.
func StandardResult(req calculation.Request) calculation.Result {
	capacity, _ := req.Values["data_hall_design_capacity_mw"].(float64)
	ppue, _ := req.Values["annualised_ppue"].(float64)
	cooling := capacity * 1_000_000
	if req.SolutionType == "chassis_immersion" {
		cooling *= 1.2
	}
	opex := capacity * ppue * 100_000
	return calculation.Result{
		"cooling_equipment_capex": cooling,
		"it_equipment_capex":      capacity * 2_000_000,
		"total_capex":             cooling + capacity*2_000_000,
		"annual_cooling_opex":     opex,
		"tco_excluding_it":        cooling + opex*10,
		"tco_including_it":        cooling + opex*10 + capacity*2_000_000,
		"solution_type":           req.SolutionType,
	}
}
