package commission_fee

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommissionFeeTestSuite struct {
	suite.Suite
}

func TestCommissionFeeSuite(t *testing.T) {
	suite.Run(t, new(CommissionFeeTestSuite))
}

func (suite *CommissionFeeTestSuite) TestZeroCommission() {
	fee := NewZeroCommissionFee()
	suite.InDelta(0, fee.Calculate(100, 50), 1e-9)
}

func (suite *CommissionFeeTestSuite) TestFixedRate() {
	fee := NewFixedRateCommissionFee(DefaultFixedRate)
	suite.InDelta(0.3, fee.Calculate(100, 10), 1e-9)

	custom := NewFixedRateCommissionFee(0.001)
	suite.InDelta(1, custom.Calculate(100, 10), 1e-9)

	// Non-positive rates fall back to the default.
	fallback := NewFixedRateCommissionFee(-1)
	suite.InDelta(0.3, fallback.Calculate(100, 10), 1e-9)
}

func (suite *CommissionFeeTestSuite) TestGetCommissionFeeHandler() {
	testCases := []struct {
		name     string
		broker   Broker
		expected float64
	}{
		{name: "fixed rate", broker: BrokerFixedRate, expected: 0.3},
		{name: "zero commission", broker: BrokerZero, expected: 0},
		{name: "unknown broker falls back to zero", broker: Broker("robinhood"), expected: 0},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			handler := GetCommissionFeeHandler(tc.broker)
			suite.InDelta(tc.expected, handler.Calculate(100, 10), 1e-9)
		})
	}
}
