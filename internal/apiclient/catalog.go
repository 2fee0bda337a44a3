package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/schema"
	"github.com/rshade/tcocalc/internal/selection"
)

// ListIndustries fetches the root of the catalog.
func (c *Client) ListIndustries(ctx context.Context) ([]selection.Option, error) {
	return c.listOptions(ctx, RouteIndustries, nil)
}

// ListTechnologies fetches technologies under industryID.
func (c *Client) ListTechnologies(ctx context.Context, industryID string) ([]selection.Option, error) {
	return c.listOptions(ctx, RouteTechnologies, url.Values{ParamIndustryID: {industryID}})
}

// ListSolutions fetches solutions under the industry/technology pair.
func (c *Client) ListSolutions(ctx context.Context, industryID, technologyID string) ([]selection.Option, error) {
	return c.listOptions(ctx, RouteSolutions, url.Values{
		ParamIndustryID:   {industryID},
		ParamTechnologyID: {technologyID},
	})
}

// ListVariants fetches variants of solutionID.
func (c *Client) ListVariants(ctx context.Context, solutionID string) ([]selection.Option, error) {
	return c.listOptions(ctx, RouteVariants, url.Values{ParamSolutionID: {solutionID}})
}

func (c *Client) listOptions(ctx context.Context, route string, params url.Values) ([]selection.Option, error) {
	data, err := c.getData(ctx, route, params)
	if err != nil {
		return nil, err
	}
	var wire []WireOption
	if len(data) > 0 {
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, &APIError{Method: http.MethodGet, Route: route, Message: "decoding options: " + err.Error()}
		}
	}
	out := make([]selection.Option, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.Option())
	}
	return out, nil
}

// FetchSchema fetches the field schema for a variant. The solution name is
// sent alongside as the engine's fallback key.
func (c *Client) FetchSchema(ctx context.Context, variantID, solutionName string) ([]schema.FieldDescriptor, error) {
	params := url.Values{}
	params.Set(ParamVariantID, variantID)
	if solutionName != "" {
		params.Set(ParamSolutionName, solutionName)
	}
	data, err := c.getData(ctx, RouteSchema, params)
	if err != nil {
		return nil, err
	}
	var payload SchemaData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &APIError{Method: http.MethodGet, Route: RouteSchema, Message: "decoding schema: " + err.Error()}
	}
	out := make([]schema.FieldDescriptor, 0, len(payload.ConfigFields))
	for _, f := range payload.ConfigFields {
		out = append(out, f.Descriptor())
	}
	return out, nil
}

// Calculate posts req to the engine. Calculations are never cached.
func (c *Client) Calculate(ctx context.Context, req calculation.Request) (calculation.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding calculation request: %w", err)
	}
	data, err := c.doJSON(ctx, http.MethodPost, RouteCalculate, nil, body)
	if err != nil {
		return nil, err
	}
	res, err := calculation.DecodeResult(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", &APIError{Method: http.MethodPost, Route: RouteCalculate, Message: "decoding result"}, err)
	}
	return res, nil
}

var (
	_ selection.Lister   = (*Client)(nil)
	_ schema.Fetcher     = (*Client)(nil)
	_ calculation.Engine = (*Client)(nil)
)
