package tui

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 49_520_000, want: "$49.5M"},
		{in: 1_000_000, want: "$1.0M"},
		{in: 350_000, want: "$350.0K"},
		{in: 999.4, want: "$999"},
		{in: 0, want: "$0"},
		{in: -2_500_000, want: "-$2.5M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.in), "%v", tt.in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1,234,568", FormatAmount(1234567.8, 0))
	assert.Contains(t, FormatAmount(1234567.8, 2), "567.80")
}

func TestFormatPercent(t *testing.T) {
	p := decimal.RequireFromString("-12.345")
	assert.Equal(t, "-12.3%", FormatPercent(&p))
	q := decimal.NewFromInt(5)
	assert.Equal(t, "+5.0%", FormatPercent(&q))
	assert.Equal(t, "n/a", FormatPercent(nil))
}

func TestFormatDelta(t *testing.T) {
	assert.Equal(t, "+$1.5K", FormatDelta(decimal.NewFromInt(1500)))
	assert.Equal(t, "-$2.0M", FormatDelta(decimal.NewFromInt(-2_000_000)))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "-", FormatValue(nil))
	assert.Equal(t, "$2.0K", FormatValue(2000.0))
	assert.Equal(t, "$2.0K", FormatValue("2000"))
	assert.Equal(t, "air_cooling", FormatValue("air_cooling"))
	assert.Equal(t, "true", FormatValue(true))
}
