package devserver

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/derivation"
)

const (
	hoursPerYear       = 8760
	liquidSolutionType = "chassis_immersion"
	liquidPPUEKey      = "annualised_liquid_ppue"
)

// Model parameterizes the stand-in calculation.
type Model struct {
	CoolingCapexPerKW      map[string]float64        `yaml:"cooling_capex_per_kw"`
	ElectricityPerKWh      map[string]float64        `yaml:"electricity_per_kwh"`
	DefaultLocation        string                    `yaml:"default_location"`
	BaseYear               int                       `yaml:"base_year"`
	AnnualCapexInflation   float64                   `yaml:"annual_capex_inflation"`
	ITCapexPerKW           float64                   `yaml:"it_capex_per_kw"`
	ITMaintenancePerKW     float64                   `yaml:"it_maintenance_per_kw"`
	CoolingMaintenanceRate float64                   `yaml:"cooling_maintenance_rate"`
	FanEnergyShare         float64                   `yaml:"fan_energy_share"`
	ITEnergyShare          float64                   `yaml:"it_energy_share"`
	SolutionFactors        map[string]SolutionFactor `yaml:"solution_factors"`
}

// SolutionFactor scales cooling capex and fan energy per solution type.
type SolutionFactor struct {
	Capex float64 `yaml:"capex"`
	Fan   float64 `yaml:"fan"`
}

// inputs are the parsed request values the model uses.
type inputs struct {
	solutionType string
	capacityMW   decimal.Decimal
	firstYear    int
	location     string
	utilisation  decimal.Decimal // percent
	years        decimal.Decimal
	ppue         decimal.Decimal
}

// requestError is a client-side problem with a calculation request.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func parseInputs(body map[string]any, required []string, locations *derivation.Table) (inputs, error) {
	for _, key := range append([]string{calculation.SolutionTypeKey}, required...) {
		if v, ok := body[key]; !ok || v == nil {
			return inputs{}, &requestError{msg: "Missing required field: " + key}
		}
	}

	var in inputs
	in.solutionType = fmt.Sprint(body[calculation.SolutionTypeKey])
	in.location = locations.ResolveLocation(fmt.Sprint(body["project_location"]))

	numbers := map[string]*decimal.Decimal{
		"data_hall_design_capacity_mw": &in.capacityMW,
		"percentage_of_utilisation":    &in.utilisation,
		"planned_years_of_operation":   &in.years,
		"annualised_ppue":              &in.ppue,
	}
	for key, dst := range numbers {
		d, err := toDecimal(body[key])
		if err != nil {
			return inputs{}, &requestError{msg: fmt.Sprintf("Invalid numeric field %s: %v", key, body[key])}
		}
		*dst = d
	}
	year, err := toDecimal(body["first_year_of_operation"])
	if err != nil {
		return inputs{}, &requestError{msg: fmt.Sprintf("Invalid numeric field first_year_of_operation: %v", body["first_year_of_operation"])}
	}
	in.firstYear = int(year.IntPart())

	if in.solutionType == liquidSolutionType {
		if v, ok := body[liquidPPUEKey]; ok && v != nil {
			if d, err := toDecimal(v); err == nil {
				in.ppue = d
			}
		}
	}
	return in, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch tv := v.(type) {
	case float64:
		return decimal.NewFromFloat(tv), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(tv, "%")))
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

// calculate returns the eight standard result keys, rounded to whole units.
func (m Model) calculate(in inputs) calculation.Result {
	factor, ok := m.SolutionFactors[in.solutionType]
	if !ok {
		factor = SolutionFactor{Capex: 1, Fan: 1}
	}
	location := in.location
	if _, ok := m.CoolingCapexPerKW[location]; !ok {
		location = m.DefaultLocation
	}

	kw := in.capacityMW.Mul(decimal.NewFromInt(1000))
	years := in.years

	inflation := decimal.NewFromInt(1)
	if elapsed := in.firstYear - m.BaseYear; elapsed > 0 {
		inflation = decimal.NewFromFloat(1 + m.AnnualCapexInflation).Pow(decimal.NewFromInt(int64(elapsed)))
	}
	coolingCapex := kw.
		Mul(decimal.NewFromFloat(m.CoolingCapexPerKW[location])).
		Mul(decimal.NewFromFloat(factor.Capex)).
		Mul(inflation)
	itCapex := kw.Mul(decimal.NewFromFloat(m.ITCapexPerKW))

	utilisation := in.utilisation.Div(decimal.NewFromInt(100))
	fanKW := kw.Mul(decimal.NewFromFloat(m.FanEnergyShare * factor.Fan))
	itKW := kw.Mul(decimal.NewFromFloat(m.ITEnergyShare)).Mul(utilisation)
	annualKWh := fanKW.Add(itKW).Mul(decimal.NewFromInt(hoursPerYear)).Mul(in.ppue)
	energyCost := annualKWh.Mul(decimal.NewFromFloat(m.ElectricityPerKWh[location]))
	annualCoolingOpex := energyCost.Add(coolingCapex.Mul(decimal.NewFromFloat(m.CoolingMaintenanceRate)))
	annualITMaintenance := kw.Mul(decimal.NewFromFloat(m.ITMaintenancePerKW))
	lifetimeOpex := annualCoolingOpex.Add(annualITMaintenance).Mul(years)

	totalCapex := coolingCapex.Add(itCapex)
	tcoExcl := coolingCapex.Add(annualCoolingOpex.Mul(years))
	tcoIncl := totalCapex.Add(lifetimeOpex)

	round := func(d decimal.Decimal) float64 {
		f, _ := d.Round(0).Float64()
		return f
	}
	return calculation.Result{
		"cooling_equipment_capex":  round(coolingCapex),
		"it_equipment_capex":       round(itCapex),
		"total_capex":              round(totalCapex),
		"annual_cooling_opex":      round(annualCoolingOpex),
		"annual_it_maintenance":    round(annualITMaintenance),
		"total_opex_over_lifetime": round(lifetimeOpex),
		"tco_excluding_it":         round(tcoExcl),
		"tco_including_it":         round(tcoIncl),
	}
}
