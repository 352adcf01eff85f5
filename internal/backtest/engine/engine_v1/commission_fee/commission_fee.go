package commission_fee

// CommissionFee computes the fee charged for one fill.
type CommissionFee interface {
	// Calculate returns the fee for filling quantity shares at price.
	Calculate(quantity float64, price float64) float64
}

type Broker string

const (
	BrokerZero      Broker = "zero_commission"
	BrokerFixedRate Broker = "fixed_rate"
)

var AllBrokers = []any{
	BrokerZero,
	BrokerFixedRate,
}

// GetCommissionFeeHandler returns the fee model for a broker. Unknown
// brokers fall back to zero commission.
func GetCommissionFeeHandler(broker Broker) CommissionFee {
	switch broker {
	case BrokerFixedRate:
		return NewFixedRateCommissionFee(DefaultFixedRate)
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
