package calculation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedResult is returned for a result that is not a flat object.
var ErrMalformedResult = errors.New("malformed calculation result")

// Result is the flat key → number|string map returned by the engine.
type Result map[string]any

// DecodeResult parses a flat JSON object. Numbers decode to float64;
// booleans and nulls are kept as strings; nested values are rejected.
func DecodeResult(data []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedResult)
	}

	out := make(Result, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case json.Number:
			f, err := tv.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResult, k, err)
			}
			out[k] = f
		case string:
			out[k] = tv
		case bool:
			out[k] = strconv.FormatBool(tv)
		case nil:
			out[k] = ""
		default:
			return nil, fmt.Errorf("%w: %s is not a scalar", ErrMalformedResult, k)
		}
	}
	return out, nil
}

// Number returns key as a float64. Numeric strings count; NaN and the
// infinities do not.
func (r Result) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, isFinite(v)
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}

// Keys returns the result keys in sorted order.
func (r Result) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy; values are scalars.
func (r Result) Clone() Result {
	if r == nil {
		return nil
	}
	out := make(Result, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// isFinite rejects NaN and the infinities, which have no decimal form.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
