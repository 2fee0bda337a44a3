package apiclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rshade/tcocalc/internal/apiclient"
	"github.com/rshade/tcocalc/internal/cache"
	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/schema"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, env apiclient.Envelope) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(env))
}

func okData(t *testing.T, v any) apiclient.Envelope {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return apiclient.Envelope{Success: true, Data: data}
}

func newClient(t *testing.T, h http.Handler, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := apiclient.New(srv.URL, time.Second, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, in := range []string{"", "not a url", "/relative"} {
		_, err := apiclient.New(in, time.Second)
		require.Error(t, err, in)
	}
}

func TestNew_InvalidConstraint(t *testing.T) {
	_, err := apiclient.New("http://localhost", time.Second, apiclient.WithVersionConstraint(">>> nope", true))
	require.Error(t, err)
}

func TestListIndustries(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiclient.RouteIndustries, r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, okData(t, []map[string]string{
			{"id": "dc", "name": "Data Centre"},
			{"_id": "665f", "name": "Telecom"},
		}))
	}))

	opts, err := c.ListIndustries(context.Background())
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, "dc", opts[0].ID)
	assert.Equal(t, "665f", opts[1].ID)
	assert.Equal(t, "Telecom", opts[1].Name)
}

func TestListSolutions_SendsParams(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dc", r.URL.Query().Get(apiclient.ParamIndustryID))
		assert.Equal(t, "cooling", r.URL.Query().Get(apiclient.ParamTechnologyID))
		writeEnvelope(t, w, http.StatusOK, okData(t, []map[string]string{{"id": "air", "name": "Air Cooling"}}))
	}))

	opts, err := c.ListSolutions(context.Background(), "dc", "cooling")
	require.NoError(t, err)
	assert.Equal(t, "Air Cooling", opts[0].Name)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"unsuccessful envelope", http.StatusOK, `{"success":false,"error":"Failed to fetch industries"}`, 200, "Failed to fetch industries"},
		{"server error", http.StatusInternalServerError, `{"success":false}`, 500, "Internal Server Error"},
		{"malformed body", http.StatusOK, `<html>`, 200, "malformed response body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.ListIndustries(context.Background())
			require.ErrorIs(t, err, apiclient.ErrAPI)
			var apiErr *apiclient.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode())
			assert.Contains(t, apiErr.Message, tt.wantMsg)
		})
	}
}

func TestFetchSchema(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiclient.RouteSchema, r.URL.Path)
		assert.Equal(t, "v1", r.URL.Query().Get(apiclient.ParamVariantID))
		assert.Equal(t, "Air Cooling", r.URL.Query().Get(apiclient.ParamSolutionName))
		_, _ = io.WriteString(w, `{"success":true,"data":{"config_fields":[
			{"id":"utilisation_percentage","label":"Utilisation","type":"select","options":["20%","40%"],"required":true},
			{"id":"data_hall_capacity","label":"Capacity","type":"number","value":10,"unit":"MW","min_value":1,"max_value":100},
			{"id":"default_air_ppue","label":"Default","type":"number","value":"#N/A"},
			{"id":"notes","label":"Notes","type":"textarea","category":"data_center"}
		]}}`)
	}))

	fields, err := c.FetchSchema(context.Background(), "v1", "Air Cooling")
	require.NoError(t, err)
	require.Len(t, fields, 4)

	assert.Equal(t, schema.KindEnumerated, fields[0].Kind)
	assert.True(t, fields[0].Required)
	assert.Equal(t, []string{"20%", "40%"}, fields[0].Options)

	assert.Equal(t, schema.KindNumeric, fields[1].Kind)
	assert.Equal(t, "10", fields[1].Value)
	require.NotNil(t, fields[1].Min)
	assert.InDelta(t, 100.0, *fields[1].Max, 1e-9)

	assert.Empty(t, fields[2].Value, "placeholder becomes empty")

	assert.Equal(t, schema.KindText, fields[3].Kind)
	assert.Equal(t, schema.CategoryDataCenter, fields[3].Category)
}

func TestCalculate(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get(apiclient.HeaderRequestID))
		assert.NoError(t, err, "request id is a uuid")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "air_cooling", body["solution_type"])
		assert.InDelta(t, 40.0, body["percentage_of_utilisation"], 1e-9)

		writeEnvelope(t, w, http.StatusOK, okData(t, map[string]any{"total_capex": 1.5e6, "currency": "USD"}))
	}))

	res, err := c.Calculate(context.Background(), calculation.Request{
		SolutionType: "air_cooling",
		Values:       map[string]any{"percentage_of_utilisation": 40.0},
	})
	require.NoError(t, err)
	n, ok := res.Number("total_capex")
	require.True(t, ok)
	assert.InDelta(t, 1.5e6, n, 1e-9)
	assert.Equal(t, "USD", res["currency"])
}

func TestCalculate_MalformedResult(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":[1,2,3]}`)
	}))

	_, err := c.Calculate(context.Background(), calculation.Request{SolutionType: "air_cooling"})
	require.ErrorIs(t, err, apiclient.ErrAPI)
	assert.ErrorIs(t, err, calculation.ErrMalformedResult)
}

func TestCalculate_ThroughInvokerCarriesStatus(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"error":"Missing required fields: project_location"}`)
	}))

	_, err := calculation.NewInvoker(c, time.Second).Invoke(context.Background(), "A", calculation.Request{})
	var cerr *calculation.CalculationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusBadRequest, cerr.Status)
	assert.Contains(t, cerr.Error(), "project_location")
}

func TestCache(t *testing.T) {
	var hits atomic.Int32
	store, err := cache.NewFileStore(t.TempDir(), true, 60, 0)
	require.NoError(t, err)

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeEnvelope(t, w, http.StatusOK, okData(t, []map[string]string{{"id": "dc", "name": "Data Centre"}}))
	}), apiclient.WithCache(store))

	for range 3 {
		opts, err := c.ListIndustries(context.Background())
		require.NoError(t, err)
		require.Len(t, opts, 1)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err = c.ListTechnologies(context.Background(), "dc")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "different route is a different key")
}

func TestCache_CalculateNotCached(t *testing.T) {
	var hits atomic.Int32
	store, err := cache.NewFileStore(t.TempDir(), true, 60, 0)
	require.NoError(t, err)

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeEnvelope(t, w, http.StatusOK, okData(t, map[string]any{"total_capex": 1}))
	}), apiclient.WithCache(store))

	for range 2 {
		_, err := c.Calculate(context.Background(), calculation.Request{SolutionType: "air_cooling"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestVersionCheck(t *testing.T) {
	handler := func(version string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set(apiclient.HeaderAPIVersion, version)
			writeEnvelope(t, w, http.StatusOK, okData(t, []any{}))
		})
	}

	t.Run("compatible", func(t *testing.T) {
		c := newClient(t, handler("1.4.0"), apiclient.WithVersionConstraint(">= 1.0.0, < 2.0.0", true))
		_, err := c.ListIndustries(context.Background())
		require.NoError(t, err)
	})

	t.Run("strict mismatch", func(t *testing.T) {
		c := newClient(t, handler("2.1.0"), apiclient.WithVersionConstraint(">= 1.0.0, < 2.0.0", true))
		_, err := c.ListIndustries(context.Background())
		require.ErrorIs(t, err, apiclient.ErrIncompatibleVersion)
	})

	t.Run("lenient mismatch", func(t *testing.T) {
		c := newClient(t, handler("garbage"), apiclient.WithVersionConstraint(">= 1.0.0, < 2.0.0", false))
		_, err := c.ListIndustries(context.Background())
		require.NoError(t, err)
	})
}

func TestTracingSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, http.StatusOK, okData(t, []any{}))
	}), apiclient.WithTracerProvider(tp))

	_, err := c.ListIndustries(context.Background())
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET "+apiclient.RouteIndustries, spans[0].Name())
}
