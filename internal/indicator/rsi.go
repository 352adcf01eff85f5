package indicator

import (
	"fmt"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// RSI represents the Relative Strength Index indicator with Wilder
// smoothing. Output column: "rsi".
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator with default configuration.
func NewRSI() Indicator {
	return &RSI{
		period: 14, // Default period
	}
}

// Name returns the name of the indicator.
func (r *RSI) Name() types.IndicatorType {
	return types.IndicatorTypeRSI
}

// Config configures the RSI indicator. Expected parameters: period (int).
func (r *RSI) Config(params ...any) error {
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

	r.period = period

	return nil
}

// MinBars implements the Indicator interface.
func (r *RSI) MinBars() int {
	return r.period + 1
}

// ParamsKey implements the Indicator interface.
func (r *RSI) ParamsKey() string {
	return paramsKey(map[string]int{"period": r.period})
}

// Compute implements the Indicator interface.
func (r *RSI) Compute(bars []types.PriceBar) (types.IndicatorSeries, error) {
	if len(bars) < r.MinBars() {
		return types.IndicatorSeries{}, errors.NewInsufficientHistoryErrorf(r.MinBars(), len(bars), symbolOf(bars),
			"rsi(%d) needs at least %d bars, got %d", r.period, r.MinBars(), len(bars))
	}

	closes := types.Closes(bars)
	out := nanSlice(len(bars))

	avgGain := 0.0
	avgLoss := 0.0

	// Seed the averages over the first full period.
	for i := 1; i <= r.period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}

	avgGain /= float64(r.period)
	avgLoss /= float64(r.period)
	out[r.period] = rsiFrom(avgGain, avgLoss)

	// Wilder's smoothing for every subsequent bar.
	for i := r.period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]

		gain := 0.0
		loss := 0.0

		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		avgGain = (avgGain*float64(r.period-1) + gain) / float64(r.period)
		avgLoss = (avgLoss*float64(r.period-1) + loss) / float64(r.period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}

	return types.IndicatorSeries{
		Symbol:    symbolOf(bars),
		Indicator: types.IndicatorTypeRSI,
		Length:    len(bars),
		Columns:   map[string][]float64{"rsi": out},
	}, nil
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100 // Perfect uptrend
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}
