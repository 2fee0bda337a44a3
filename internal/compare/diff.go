package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rshade/tcocalc/internal/calculation"
)

var hundred = decimal.NewFromInt(100)

// DiffOptions controls which keys appear in a diff.
type DiffOptions struct {
	// IncludeITCost keeps keys matching ITCostKeys.
	IncludeITCost bool
	// ITCostKeys are substrings identifying IT-cost metrics.
	ITCostKeys []string
	// Labels maps result keys to display names.
	Labels map[string]string
}

// DiffRow compares one result key across both sides. A and B are nil when
// the key is absent on that side.
type DiffRow struct {
	Key   string
	Label string
	A     any
	B     any

	// Numeric is set when both values are numbers; Difference is B-A and
	// Percentage is Difference/A*100, nil when A is zero.
	Numeric    bool
	Difference decimal.Decimal
	Percentage *decimal.Decimal

	IsDifferent bool
}

// Saving reports whether B costs less than A.
func (r DiffRow) Saving() bool {
	return r.Numeric && r.Difference.IsNegative()
}

// Diff compares a and b over the union of their keys, sorted by key.
func Diff(a, b calculation.Result, opts DiffOptions) []DiffRow {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	rows := make([]DiffRow, 0, len(keys))
	for k := range keys {
		if !opts.IncludeITCost && IsITCostKey(k, opts.ITCostKeys) {
			continue
		}
		rows = append(rows, diffRow(k, a, b, opts.Labels))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// IsITCostKey reports whether key contains any of itKeys, case-insensitively.
func IsITCostKey(key string, itKeys []string) bool {
	lk := strings.ToLower(key)
	for _, it := range itKeys {
		if it != "" && strings.Contains(lk, strings.ToLower(it)) {
			return true
		}
	}
	return false
}

func diffRow(key string, a, b calculation.Result, labels map[string]string) DiffRow {
	av, aok := a[key]
	bv, bok := b[key]
	row := DiffRow{Key: key, Label: labels[key]}
	if row.Label == "" {
		row.Label = key
	}
	if aok {
		row.A = av
	}
	if bok {
		row.B = bv
	}

	an, aNum := a.Number(key)
	bn, bNum := b.Number(key)
	if aok && bok && aNum && bNum {
		da := decimal.NewFromFloat(an)
		db := decimal.NewFromFloat(bn)
		row.Numeric = true
		row.Difference = db.Sub(da)
		row.IsDifferent = !row.Difference.IsZero()
		if !da.IsZero() {
			pct := row.Difference.Div(da).Mul(hundred)
			row.Percentage = &pct
		}
		return row
	}

	row.IsDifferent = aok != bok || fmt.Sprint(av) != fmt.Sprint(bv)
	return row
}
