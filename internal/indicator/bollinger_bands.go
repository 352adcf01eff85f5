package indicator

import (
	"fmt"
	"math"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// BollingerBands represents the Bollinger Bands indicator. Output columns:
// "mid" (rolling mean), "upper" and "lower" (mean ± k·stddev).
type BollingerBands struct {
	period int
	stdDev int
}

// NewBollingerBands creates a new Bollinger Bands indicator with default configuration.
func NewBollingerBands() Indicator {
	return &BollingerBands{
		period: 20, // Default period
		stdDev: 2,  // Default standard deviation multiplier
	}
}

// Name returns the name of the indicator.
func (b *BollingerBands) Name() types.IndicatorType {
	return types.IndicatorTypeBollingerBands
}

// Config configures the Bollinger Bands indicator. Expected parameters: period (int), stdDev (int).
func (b *BollingerBands) Config(params ...any) error {
	if len(params) != 2 {
		return fmt.Errorf("Config expects 2 parameters: period (int), stdDev (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return fmt.Errorf("invalid type for period parameter, expected int")
	}

	if period <= 1 {
		return fmt.Errorf("period must be greater than 1, got %d", period)
	}

	stdDev, ok := params[1].(int)
	if !ok {
		return fmt.Errorf("invalid type for stdDev parameter, expected int")
	}

	if stdDev <= 0 {
		return fmt.Errorf("stdDev must be a positive integer, got %d", stdDev)
	}

	b.period = period
	b.stdDev = stdDev

	return nil
}

// MinBars implements the Indicator interface.
func (b *BollingerBands) MinBars() int {
	return b.period
}

// ParamsKey implements the Indicator interface.
func (b *BollingerBands) ParamsKey() string {
	return paramsKey(map[string]int{
		"period":  b.period,
		"std_dev": b.stdDev,
	})
}

// Compute implements the Indicator interface.
func (b *BollingerBands) Compute(bars []types.PriceBar) (types.IndicatorSeries, error) {
	if len(bars) < b.MinBars() {
		return types.IndicatorSeries{}, errors.NewInsufficientHistoryErrorf(b.MinBars(), len(bars), symbolOf(bars),
			"bollinger(%d,%d) needs at least %d bars, got %d", b.period, b.stdDev, b.MinBars(), len(bars))
	}

	closes := types.Closes(bars)
	mid := nanSlice(len(bars))
	upper := nanSlice(len(bars))
	lower := nanSlice(len(bars))

	for i := b.period - 1; i < len(closes); i++ {
		window := closes[i-b.period+1 : i+1]

		mean := 0.0
		for _, v := range window {
			mean += v
		}

		mean /= float64(b.period)

		variance := 0.0
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}

		// Sample standard deviation, matching the rolling std convention
		// of the reference data feeds.
		std := math.Sqrt(variance / float64(b.period-1))

		mid[i] = mean
		upper[i] = mean + float64(b.stdDev)*std
		lower[i] = mean - float64(b.stdDev)*std
	}

	return types.IndicatorSeries{
		Symbol:    symbolOf(bars),
		Indicator: types.IndicatorTypeBollingerBands,
		Length:    len(bars),
		Columns: map[string][]float64{
			"mid":   mid,
			"upper": upper,
			"lower": lower,
		},
	}, nil
}
