package indicator

import (
	"fmt"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// SMA represents the simple moving average indicator.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator with default configuration.
func NewSMA() Indicator {
	return &SMA{
		period: 20, // Default period
	}
}

// Name returns the name of the indicator.
func (s *SMA) Name() types.IndicatorType {
	return types.IndicatorTypeSMA
}

// Config configures the SMA indicator. Expected parameters: period (int).
func (s *SMA) Config(params ...any) error {
	if len(params) != 1 {
		return fmt.Errorf("Config expects 1 parameter: period (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return fmt.Errorf("invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return fmt.Errorf("period must be a positive integer, got %d", period)
	}

	s.period = period

	return nil
}

// MinBars implements the Indicator interface.
func (s *SMA) MinBars() int {
	return s.period
}

// ParamsKey implements the Indicator interface.
func (s *SMA) ParamsKey() string {
	return paramsKey(map[string]int{"period": s.period})
}

// Compute implements the Indicator interface.
func (s *SMA) Compute(bars []types.PriceBar) (types.IndicatorSeries, error) {
	if len(bars) < s.MinBars() {
		return types.IndicatorSeries{}, errors.NewInsufficientHistoryErrorf(s.MinBars(), len(bars), symbolOf(bars),
			"sma(%d) needs at least %d bars, got %d", s.period, s.MinBars(), len(bars))
	}

	closes := types.Closes(bars)
	out := nanSlice(len(bars))

	sum := 0.0

	for i, v := range closes {
		sum += v
		if i >= s.period {
			sum -= closes[i-s.period]
		}

		if i >= s.period-1 {
			out[i] = sum / float64(s.period)
		}
	}

	return types.IndicatorSeries{
		Symbol:    symbolOf(bars),
		Indicator: types.IndicatorTypeSMA,
		Length:    len(bars),
		Columns:   map[string][]float64{"sma": out},
	}, nil
}

func symbolOf(bars []types.PriceBar) string {
	if len(bars) == 0 {
		return ""
	}

	return bars[0].Symbol
}
