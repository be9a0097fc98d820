package pricing

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// round2 rounds to cents, half away from zero (half-up for the non-negative
// amounts quotes deal with).
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// compound returns base^n for n >= 0 by repeated multiplication, which keeps
// the result exact for the short horizons payment plans use.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	out := one
	for i := 0; i < n; i++ {
		out = out.Mul(base)
	}
	return out
}
