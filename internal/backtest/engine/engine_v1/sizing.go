package engine_v1

import (
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/shopspring/decimal"
)

// entryBudget returns the cash amount a new position may spend given the
// sizing policy, current equity and available cash. The budget never
// exceeds cash on hand.
func entryBudget(sizing types.PositionSizing, equity float64, cash float64) float64 {
	budget := cash

	if sizing.Policy == types.SizingPolicyFixedFraction && sizing.Fraction > 0 {
		budget = equity * sizing.Fraction
	}

	if budget > cash {
		budget = cash
	}

	return budget
}

// shareQuantity converts a cash budget into a whole number of shares at
// the given price, rounding down. Decimal arithmetic avoids float division
// artifacts like 0.9999999 shares flooring to zero short of a full share.
func shareQuantity(budget float64, price float64) float64 {
	if price <= 0 || budget <= 0 {
		return 0
	}

	quantity := decimal.NewFromFloat(budget).
		Div(decimal.NewFromFloat(price)).
		Floor()

	out, _ := quantity.Float64()

	return out
}
