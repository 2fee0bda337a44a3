package tui

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rshade/tcocalc/internal/compare"
	"github.com/rshade/tcocalc/internal/instance"
	"github.com/rshade/tcocalc/internal/schema"
)

func TestRenderDiffTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Contains(t, RenderDiffTable(nil), "No results to compare yet")
	})

	t.Run("rows", func(t *testing.T) {
		pct := decimal.NewFromInt(-25)
		out := RenderDiffTable([]compare.DiffRow{
			{
				Key: "total_capex", Label: "Total CAPEX", A: 4_000_000.0, B: 3_000_000.0,
				Numeric: true, Difference: decimal.NewFromInt(-1_000_000), Percentage: &pct, IsDifferent: true,
			},
			{Key: "solution_type", Label: "solution_type", A: "air_cooling", B: "chassis_immersion", IsDifferent: true},
			{Key: "only_a", Label: "only_a", A: 10.0},
		})
		assert.Contains(t, out, "Total CAPEX")
		assert.Contains(t, out, "$4.0M")
		assert.Contains(t, out, "-$1.0M")
		assert.Contains(t, out, "-25.0%")
		assert.Contains(t, out, IconArrowDown)
		assert.Contains(t, out, "differs")
	})
}

func TestRenderPhase(t *testing.T) {
	assert.Contains(t, RenderPhase(compare.Snapshot{Phase: compare.PhaseAwaitingBoth}, "*"), "Waiting for both")
	assert.Contains(t, RenderPhase(compare.Snapshot{Phase: compare.PhaseComputing}, "*"), "* Calculating")
	assert.Contains(t, RenderPhase(compare.Snapshot{Phase: compare.PhaseComplete, IncludeITCost: true}, ""), "IT cost included")
}

func TestRenderPanels(t *testing.T) {
	snap := compare.Snapshot{
		A: instance.Snapshot{
			Label: "A",
			Fields: schema.NewFieldSet([]schema.FieldDescriptor{
				{ID: "capacity", Label: "Capacity", Value: "10", Unit: "MW"},
			}),
		},
		B: instance.Snapshot{Label: "B", SchemaErr: errors.New("boom")},
	}
	out := RenderPanels(snap, compare.SideA, 0, false, "", 0)
	assert.Contains(t, out, "Configuration A")
	assert.Contains(t, out, "10 MW")
	assert.Contains(t, out, "Schema unavailable: boom")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
