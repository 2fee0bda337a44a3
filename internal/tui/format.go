package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats numbers with English thousand separators.
//
//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

const (
	million  = 1_000_000
	thousand = 1_000
)

// FormatCurrency renders an amount compactly: $1.2M, $350.0K, $950.
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= million:
		return fmt.Sprintf("%s$%.1fM", sign, v/million)
	case v >= thousand:
		return fmt.Sprintf("%s$%.1fK", sign, v/thousand)
	default:
		return sign + printer.Sprintf("$%d", int64(math.Round(v)))
	}
}

// FormatAmount renders an amount in full with thousand separators.
func FormatAmount(v float64, precision int) string {
	if precision <= 0 {
		return printer.Sprintf("%d", int64(math.Round(v)))
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", precision), v)
}

// FormatDelta renders a signed currency difference.
func FormatDelta(d decimal.Decimal) string {
	f, _ := d.Float64()
	if f > 0 {
		return "+" + FormatCurrency(f)
	}
	return FormatCurrency(f)
}

// FormatPercent renders a signed percentage with one decimal place, or "n/a"
// when p is nil.
func FormatPercent(p *decimal.Decimal) string {
	if p == nil {
		return "n/a"
	}
	f, _ := p.Float64()
	if f > 0 {
		return fmt.Sprintf("+%.1f%%", f)
	}
	return fmt.Sprintf("%.1f%%", f)
}

// FormatValue renders one result value: numbers as currency, everything else
// verbatim. A nil value (absent key) renders as "-".
func FormatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return "-"
	case float64:
		return FormatCurrency(tv)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return FormatCurrency(f)
		}
		return tv
	default:
		return fmt.Sprint(tv)
	}
}
