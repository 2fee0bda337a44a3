package calculation_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/schema"
)

func testMapping() calculation.Mapping {
	return calculation.NewMapping(
		map[string]calculation.FieldRule{
			"data_hall_capacity":     {Key: "data_hall_design_capacity_mw", Coerce: calculation.CoerceNumber},
			"utilisation_percentage": {Key: "percentage_of_utilisation", Coerce: calculation.CoercePercent},
			"project_location":       {Key: "project_location"},
			"air_annualised_ppue":    {Key: "annualised_ppue", Coerce: calculation.CoerceNumber},
		},
		map[string]string{"Air Cooling": "air_cooling", "Chassis Immersion": "chassis_immersion"},
	)
}

func TestBuildRequest(t *testing.T) {
	fs := schema.NewFieldSet([]schema.FieldDescriptor{
		{ID: "data_hall_capacity", Kind: schema.KindNumeric, Value: "10"},
		{ID: "utilisation_percentage", Kind: schema.KindEnumerated, Value: "40%"},
		{ID: "project_location", Kind: schema.KindEnumerated, Value: "UK"},
		{ID: "air_annualised_ppue", Kind: schema.KindNumeric, Value: "1.53", IsDerived: true},
		{ID: "notes", Kind: schema.KindText, Value: "unmapped"},
	})

	req := calculation.BuildRequest(fs, "Air Cooling", testMapping())

	assert.Equal(t, "air_cooling", req.SolutionType)
	assert.Equal(t, map[string]any{
		"data_hall_design_capacity_mw": 10.0,
		"percentage_of_utilisation":    40.0,
		"project_location":             "UK",
		"annualised_ppue":              1.53,
	}, req.Values)
}

func TestBuildRequest_DropsUnselectedAndEmpty(t *testing.T) {
	fs := schema.NewFieldSet([]schema.FieldDescriptor{
		{ID: "data_hall_capacity", Value: ""},
		{ID: "utilisation_percentage", Value: "Select an Option"},
		{ID: "project_location", Value: "none"},
		{ID: "air_annualised_ppue", Value: "  "},
	})

	req := calculation.BuildRequest(fs, "Air Cooling", testMapping())
	assert.Empty(t, req.Values)
}

func TestBuildRequest_UnparseableNumberSentRaw(t *testing.T) {
	fs := schema.NewFieldSet([]schema.FieldDescriptor{
		{ID: "data_hall_capacity", Value: "ten"},
	})
	req := calculation.BuildRequest(fs, "Air Cooling", testMapping())
	assert.Equal(t, "ten", req.Values["data_hall_design_capacity_mw"])
}

func TestBuildRequest_NonFiniteNumberSentRaw(t *testing.T) {
	fs := schema.NewFieldSet([]schema.FieldDescriptor{
		{ID: "data_hall_capacity", Value: "NaN"},
		{ID: "utilisation_percentage", Value: "Inf%"},
	})
	req := calculation.BuildRequest(fs, "Air Cooling", testMapping())
	assert.Equal(t, "NaN", req.Values["data_hall_design_capacity_mw"])

	_, err := json.Marshal(req)
	require.NoError(t, err)
}

func TestBuildRequest_NilFieldSet(t *testing.T) {
	req := calculation.BuildRequest(nil, "Air Cooling", testMapping())
	assert.Equal(t, "air_cooling", req.SolutionType)
	assert.Empty(t, req.Values)
}

func TestMapping_SolutionType(t *testing.T) {
	m := testMapping()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"exact", "Air Cooling", "air_cooling"},
		{"case and spacing", "  chassis   IMMERSION ", "chassis_immersion"},
		{"slug fallback", "Rear-Door Heat Exchanger", "rear_door_heat_exchanger"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.SolutionType(tt.in))
		})
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "direct_to_chip_2", calculation.Slugify("Direct-to-Chip (2)"))
	assert.Equal(t, "a_b", calculation.Slugify("__A  B__"))
}

func TestRequest_MarshalJSON(t *testing.T) {
	req := calculation.Request{
		SolutionType: "air_cooling",
		Values:       map[string]any{"project_location": "UK", "planned_years_of_operation": 10.0},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"solution_type":"air_cooling","project_location":"UK","planned_years_of_operation":10}`, string(data))

	assert.Equal(t, []string{"planned_years_of_operation", "project_location"}, req.Keys())
	assert.Equal(t, "10", req.Params()["planned_years_of_operation"])
}

func TestDecodeResult(t *testing.T) {
	res, err := calculation.DecodeResult([]byte(`{"total_capex": 1200000.5, "currency": "USD", "ok": true, "note": null}`))
	require.NoError(t, err)

	n, ok := res.Number("total_capex")
	require.True(t, ok)
	assert.InDelta(t, 1200000.5, n, 1e-9)
	assert.Equal(t, "USD", res["currency"])
	assert.Equal(t, "true", res["ok"])
	assert.Equal(t, "", res["note"])

	_, ok = res.Number("currency")
	assert.False(t, ok)
	assert.Equal(t, []string{"currency", "note", "ok", "total_capex"}, res.Keys())
}

func TestDecodeResult_Malformed(t *testing.T) {
	for _, in := range []string{`[1,2]`, `{"nested":{"a":1}}`, `null`, `not json`} {
		_, err := calculation.DecodeResult([]byte(in))
		require.ErrorIs(t, err, calculation.ErrMalformedResult, in)
	}
}
