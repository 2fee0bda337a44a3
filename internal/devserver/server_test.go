package devserver_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tcocalc/internal/apiclient"
	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/devserver"
	"github.com/rshade/tcocalc/internal/instance"
)

func newClient(t *testing.T) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(devserver.New(nil).Handler())
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL, 5*time.Second, apiclient.WithVersionConstraint("^1.0", true))
	require.NoError(t, err)
	return c
}

func validRequest(solutionType string) calculation.Request {
	return calculation.Request{
		SolutionType: solutionType,
		Values: map[string]any{
			"data_hall_design_capacity_mw": 10.0,
			"first_year_of_operation":      2026.0,
			"project_location":             "United Kingdom",
			"percentage_of_utilisation":    40.0,
			"planned_years_of_operation":   10.0,
			"annualised_ppue":              1.53,
		},
	}
}

func TestDefaultFixture(t *testing.T) {
	f := devserver.DefaultFixture()
	assert.Equal(t, "1.2.0", f.APIVersion)
	assert.Len(t, f.Industries, 2)
	require.NoError(t, f.Validate())
}

func TestParseFixture_Invalid(t *testing.T) {
	_, err := devserver.ParseFixture([]byte(`
solution_types: [air_cooling]
industries:
  - id: a
    name: A
    technologies:
      - id: t
        name: T
        solutions:
          - id: s
            name: S
            fields: [missing_field]
  - id: a
    name: Again
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate industry id "a"`)
	assert.Contains(t, err.Error(), `unknown field "missing_field"`)
}

func TestCatalogRoutes(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	industries, err := c.ListIndustries(ctx)
	require.NoError(t, err)
	require.Len(t, industries, 2)
	assert.Equal(t, "data-centres", industries[0].ID)

	techs, err := c.ListTechnologies(ctx, "data-centres")
	require.NoError(t, err)
	require.Len(t, techs, 1)
	assert.Equal(t, "cooling-systems", techs[0].ID)

	solutions, err := c.ListSolutions(ctx, "data-centres", "cooling-systems")
	require.NoError(t, err)
	require.Len(t, solutions, 2)
	assert.Equal(t, "Liquid Cooling", solutions[1].Name)

	variants, err := c.ListVariants(ctx, "liquid-cooling")
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "direct-to-chip", variants[0].ID)
}

func TestCatalogRoutes_UnknownIDIsEmpty(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	techs, err := c.ListTechnologies(ctx, "shipping")
	require.NoError(t, err)
	assert.Empty(t, techs)

	solutions, err := c.ListSolutions(ctx, "telecom", "edge-cooling")
	require.NoError(t, err)
	assert.Empty(t, solutions)
}

func TestCatalogRoutes_MissingParameter(t *testing.T) {
	c := newClient(t)

	_, err := c.ListTechnologies(context.Background(), "")
	require.Error(t, err)
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Industry ID is required", apiErr.Message)
}

func TestSchemaRoute(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	fields, err := c.FetchSchema(ctx, "crah-units", "")
	require.NoError(t, err)
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, "air_annualised_ppue")
	assert.Contains(t, ids, "default_air_ppue")
	assert.NotContains(t, ids, "annualised_liquid_cooled_ppue")

	for _, f := range fields {
		if f.ID == "default_air_ppue" {
			assert.Empty(t, f.Value, "placeholder value is cleared")
		}
	}
}

func TestSchemaRoute_SolutionNameFallback(t *testing.T) {
	c := newClient(t)

	fields, err := c.FetchSchema(context.Background(), "retired-variant", "Liquid Cooling")
	require.NoError(t, err)
	var found bool
	for _, f := range fields {
		if f.ID == "annualised_liquid_cooled_ppue" {
			found = true
			assert.Equal(t, "1.05", f.Value)
		}
	}
	assert.True(t, found)
}

func TestSchemaRoute_NotFound(t *testing.T) {
	c := newClient(t)

	_, err := c.FetchSchema(context.Background(), "retired-variant", "")
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestCalculateRoute(t *testing.T) {
	c := newClient(t)

	air, err := c.Calculate(context.Background(), validRequest("air_cooling"))
	require.NoError(t, err)
	assert.Len(t, air.Keys(), 8)

	itCapex, ok := air.Number("it_equipment_capex")
	require.True(t, ok)
	assert.InDelta(t, 20_000_000, itCapex, 0.5)
	itMaint, ok := air.Number("annual_it_maintenance")
	require.True(t, ok)
	assert.InDelta(t, 1_000_000, itMaint, 0.5)

	excl, _ := air.Number("tco_excluding_it")
	incl, _ := air.Number("tco_including_it")
	assert.Greater(t, incl, excl)

	liquid, err := c.Calculate(context.Background(), validRequest("chassis_immersion"))
	require.NoError(t, err)
	liquidCapex, _ := liquid.Number("cooling_equipment_capex")
	airCapex, _ := air.Number("cooling_equipment_capex")
	assert.Less(t, liquidCapex, airCapex)

	again, err := c.Calculate(context.Background(), validRequest("air_cooling"))
	require.NoError(t, err)
	assert.Equal(t, air, again, "calculation is deterministic")
}

func TestCalculateRoute_LocationChangesResult(t *testing.T) {
	c := newClient(t)

	uk, err := c.Calculate(context.Background(), validRequest("air_cooling"))
	require.NoError(t, err)

	req := validRequest("air_cooling")
	req.Values["project_location"] = "Singapore"
	sg, err := c.Calculate(context.Background(), req)
	require.NoError(t, err)

	ukCapex, _ := uk.Number("cooling_equipment_capex")
	sgCapex, _ := sg.Number("cooling_equipment_capex")
	assert.Greater(t, ukCapex, sgCapex)
}

func TestCalculateRoute_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*calculation.Request)
		message string
	}{
		{
			name:    "missing field",
			mutate:  func(r *calculation.Request) { delete(r.Values, "planned_years_of_operation") },
			message: "Missing required field: planned_years_of_operation",
		},
		{
			name:    "missing solution type",
			mutate:  func(r *calculation.Request) { r.SolutionType = "" },
			message: "Unsupported solution type",
		},
		{
			name:    "unknown solution type",
			mutate:  func(r *calculation.Request) { r.SolutionType = "rear_door" },
			message: "Unsupported solution type: rear_door",
		},
		{
			name:    "non-numeric capacity",
			mutate:  func(r *calculation.Request) { r.Values["data_hall_design_capacity_mw"] = "lots" },
			message: "Invalid numeric field data_hall_design_capacity_mw",
		},
	}

	c := newClient(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest("air_cooling")
			tt.mutate(&req)

			_, err := c.Calculate(context.Background(), req)
			var apiErr *apiclient.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Contains(t, apiErr.Message, tt.message)
		})
	}
}

func TestInstanceAgainstServer(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	in := instance.New("A", instance.Deps{
		Lister:  c,
		Fetcher: c,
		Engine:  c,
		Tables:  config.DefaultTables(),
		Timeout: 5 * time.Second,
	})

	require.NoError(t, in.LoadIndustries(ctx))
	require.NoError(t, in.SelectIndustry(ctx, "data-centres"))
	require.NoError(t, in.SelectTechnology(ctx, "cooling-systems"))
	require.NoError(t, in.SelectSolution(ctx, "air-cooling"))
	require.NoError(t, in.SelectVariant(ctx, "crah-units"))

	for _, kv := range [][2]string{
		{"data_centre_type", "Greenfield"},
		{"project_location", "United Kingdom"},
		{"utilisation_percentage", "40%"},
		{"data_hall_capacity", "10"},
		{"planned_years_operation", "10"},
		{"first_year_operation", "2026"},
	} {
		require.NoError(t, in.SetField(ctx, kv[0], kv[1]))
	}

	ppue, ok := in.Fields().Get("air_annualised_ppue")
	require.True(t, ok)
	assert.Equal(t, "1.53", ppue.Value)
	require.True(t, in.Valid())

	result, err := in.Calculate(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Keys(), 8)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- devserver.New(nil).Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.2.0", resp.Header.Get(apiclient.HeaderAPIVersion))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListenAndServe_BadAddress(t *testing.T) {
	err := devserver.New(nil).ListenAndServe(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
