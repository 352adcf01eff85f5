package commission_fee

// DefaultFixedRate is 3 basis points of the fill notional, the common
// discount brokerage rate for A-share trading.
const DefaultFixedRate = 0.0003

// FixedRateCommissionFee charges a fixed fraction of the fill notional.
type FixedRateCommissionFee struct {
	rate float64
}

// NewFixedRateCommissionFee creates a fee model charging rate times the
// fill notional. Non-positive rates fall back to the default.
func NewFixedRateCommissionFee(rate float64) CommissionFee {
	if rate <= 0 {
		rate = DefaultFixedRate
	}

	return &FixedRateCommissionFee{rate: rate}
}

// Calculate returns rate times quantity times price.
func (c *FixedRateCommissionFee) Calculate(quantity float64, price float64) float64 {
	return c.rate * quantity * price
}
