package compare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/compare"
)

var itKeys = []string{"it_equipment_capex", "annual_it_maintenance", "tco_including_it"}

func rowByKey(t *testing.T, rows []compare.DiffRow, key string) compare.DiffRow {
	t.Helper()
	for _, r := range rows {
		if r.Key == key {
			return r
		}
	}
	require.Failf(t, "row not found", "key %s", key)
	return compare.DiffRow{}
}

func TestDiff_Numeric(t *testing.T) {
	a := calculation.Result{"total_capex": 1_000_000.0, "annual_cooling_opex": 0.0}
	b := calculation.Result{"total_capex": 800_000.0, "annual_cooling_opex": 5.0}

	rows := compare.Diff(a, b, compare.DiffOptions{Labels: map[string]string{"total_capex": "Total CAPEX"}})
	require.Len(t, rows, 2)
	assert.Equal(t, "annual_cooling_opex", rows[0].Key, "sorted by key")

	capex := rowByKey(t, rows, "total_capex")
	assert.True(t, capex.Numeric)
	assert.Equal(t, "Total CAPEX", capex.Label)
	assert.Equal(t, "-200000", capex.Difference.String())
	require.NotNil(t, capex.Percentage)
	assert.Equal(t, "-20", capex.Percentage.String())
	assert.True(t, capex.IsDifferent)
	assert.True(t, capex.Saving())

	opex := rowByKey(t, rows, "annual_cooling_opex")
	assert.Nil(t, opex.Percentage, "no percentage against a zero base")
	assert.Equal(t, "5", opex.Difference.String())
	assert.False(t, opex.Saving())
	assert.Equal(t, "annual_cooling_opex", opex.Label)
}

func TestDiff_NonNumericAndMissing(t *testing.T) {
	a := calculation.Result{"currency": "USD", "only_a": 1.0, "same": "x"}
	b := calculation.Result{"currency": "GBP", "only_b": "y", "same": "x"}

	rows := compare.Diff(a, b, compare.DiffOptions{})
	require.Len(t, rows, 4)

	cur := rowByKey(t, rows, "currency")
	assert.False(t, cur.Numeric)
	assert.True(t, cur.IsDifferent)

	same := rowByKey(t, rows, "same")
	assert.False(t, same.IsDifferent)

	onlyA := rowByKey(t, rows, "only_a")
	assert.False(t, onlyA.Numeric)
	assert.Nil(t, onlyA.B)
	assert.True(t, onlyA.IsDifferent)

	onlyB := rowByKey(t, rows, "only_b")
	assert.Nil(t, onlyB.A)
	assert.Equal(t, "y", onlyB.B)
}

func TestDiff_NumericStrings(t *testing.T) {
	rows := compare.Diff(
		calculation.Result{"total_capex": "100"},
		calculation.Result{"total_capex": 150.0},
		compare.DiffOptions{},
	)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Numeric)
	assert.Equal(t, "50", rows[0].Percentage.String())
}

func TestDiff_NonFiniteStrings(t *testing.T) {
	a := calculation.Result{"payback_years": "NaN", "total_capex": 100.0, "horizon": "Inf"}
	b := calculation.Result{"payback_years": "Infinity", "total_capex": 90.0, "horizon": "Inf"}

	var rows []compare.DiffRow
	require.NotPanics(t, func() {
		rows = compare.Diff(a, b, compare.DiffOptions{})
	})
	require.Len(t, rows, 3)

	payback := rowByKey(t, rows, "payback_years")
	assert.False(t, payback.Numeric)
	assert.True(t, payback.IsDifferent)

	horizon := rowByKey(t, rows, "horizon")
	assert.False(t, horizon.Numeric)
	assert.False(t, horizon.IsDifferent)

	capex := rowByKey(t, rows, "total_capex")
	assert.True(t, capex.Numeric)
	assert.Equal(t, "-10", capex.Difference.String())
}

func TestResult_NumberRejectsNonFinite(t *testing.T) {
	r := calculation.Result{"nan": "NaN", "inf": "-Inf", "ok": " 12.5 "}
	_, ok := r.Number("nan")
	assert.False(t, ok)
	_, ok = r.Number("inf")
	assert.False(t, ok)
	f, ok := r.Number("ok")
	assert.True(t, ok)
	assert.InDelta(t, 12.5, f, 1e-9)
}

func TestDiff_ITCostToggle(t *testing.T) {
	a := calculation.Result{"total_capex": 1.0, "it_equipment_capex": 2.0, "tco_including_it": 3.0, "annual_it_maintenance_usd": 4.0}
	b := calculation.Result{"total_capex": 1.0, "it_equipment_capex": 2.0, "tco_including_it": 3.0, "annual_it_maintenance_usd": 4.0}

	excluded := compare.Diff(a, b, compare.DiffOptions{ITCostKeys: itKeys})
	require.Len(t, excluded, 1)
	assert.Equal(t, "total_capex", excluded[0].Key)
	assert.False(t, excluded[0].IsDifferent)

	included := compare.Diff(a, b, compare.DiffOptions{ITCostKeys: itKeys, IncludeITCost: true})
	assert.Len(t, included, 4)
}

func TestIsITCostKey(t *testing.T) {
	assert.True(t, compare.IsITCostKey("Total_TCO_Including_IT", itKeys))
	assert.False(t, compare.IsITCostKey("tco_excluding_it", itKeys))
	assert.False(t, compare.IsITCostKey("anything", []string{""}))
}
