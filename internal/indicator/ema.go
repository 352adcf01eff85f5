package indicator

import (
	"fmt"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// EMA represents the exponential moving average indicator.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() Indicator {
	return &EMA{
		period: 20, // Default period
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Config configures the EMA indicator. Expected parameters: period (int).
func (e *EMA) Config(params ...any) error {
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

	e.period = period

	return nil
}

// MinBars implements the Indicator interface.
func (e *EMA) MinBars() int {
	return e.period
}

// ParamsKey implements the Indicator interface.
func (e *EMA) ParamsKey() string {
	return paramsKey(map[string]int{"period": e.period})
}

// Compute implements the Indicator interface.
func (e *EMA) Compute(bars []types.PriceBar) (types.IndicatorSeries, error) {
	if len(bars) < e.MinBars() {
		return types.IndicatorSeries{}, errors.NewInsufficientHistoryErrorf(e.MinBars(), len(bars), symbolOf(bars),
			"ema(%d) needs at least %d bars, got %d", e.period, e.MinBars(), len(bars))
	}

	raw := emaSeries(types.Closes(bars), e.period)
	out := nanSlice(len(bars))

	// The recursive average is only considered settled once a full period
	// has passed.
	for i := e.period - 1; i < len(raw); i++ {
		out[i] = raw[i]
	}

	return types.IndicatorSeries{
		Symbol:    symbolOf(bars),
		Indicator: types.IndicatorTypeEMA,
		Length:    len(bars),
		Columns:   map[string][]float64{"ema": out},
	}, nil
}
