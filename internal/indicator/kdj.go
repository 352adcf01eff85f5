package indicator

import (
	"fmt"
	"math"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// KDJ represents the stochastic %K/%D/%J oscillator. Output columns: "k",
// "d" and "j". %K and %D use 1/3 exponential smoothing seeded at 50, the
// convention of the CN market data feeds this engine was built against.
type KDJ struct {
	kPeriod int
	dPeriod int
	jPeriod int
}

// NewKDJ creates a new KDJ indicator with default configuration.
func NewKDJ() Indicator {
	return &KDJ{
		kPeriod: 9, // Default RSV window
		dPeriod: 3,
		jPeriod: 3,
	}
}

// Name returns the name of the indicator.
func (k *KDJ) Name() types.IndicatorType {
	return types.IndicatorTypeKDJ
}

// Config configures the KDJ indicator. Expected parameters: kPeriod (int), dPeriod (int), jPeriod (int).
func (k *KDJ) Config(params ...any) error {
	if len(params) != 3 {
		return fmt.Errorf("Config expects 3 parameters: kPeriod (int), dPeriod (int), jPeriod (int)")
	}

	periods := make([]int, 3)

	for i, param := range params {
		period, ok := param.(int)
		if !ok {
			return fmt.Errorf("invalid type for parameter %d, expected int", i)
		}

		if period <= 0 {
			return fmt.Errorf("period must be a positive integer, got %d", period)
		}

		periods[i] = period
	}

	k.kPeriod = periods[0]
	k.dPeriod = periods[1]
	k.jPeriod = periods[2]

	return nil
}

// MinBars implements the Indicator interface.
func (k *KDJ) MinBars() int {
	return k.kPeriod
}

// ParamsKey implements the Indicator interface.
func (k *KDJ) ParamsKey() string {
	return paramsKey(map[string]int{
		"k": k.kPeriod,
		"d": k.dPeriod,
		"j": k.jPeriod,
	})
}

// Compute implements the Indicator interface.
func (k *KDJ) Compute(bars []types.PriceBar) (types.IndicatorSeries, error) {
	if len(bars) < k.MinBars() {
		return types.IndicatorSeries{}, errors.NewInsufficientHistoryErrorf(k.MinBars(), len(bars), symbolOf(bars),
			"kdj(%d,%d,%d) needs at least %d bars, got %d", k.kPeriod, k.dPeriod, k.jPeriod, k.MinBars(), len(bars))
	}

	kCol := nanSlice(len(bars))
	dCol := nanSlice(len(bars))
	jCol := nanSlice(len(bars))

	kPrev := 50.0
	dPrev := 50.0

	for i := k.kPeriod - 1; i < len(bars); i++ {
		lowMin := math.Inf(1)
		highMax := math.Inf(-1)

		for w := i - k.kPeriod + 1; w <= i; w++ {
			lowMin = math.Min(lowMin, bars[w].Low)
			highMax = math.Max(highMax, bars[w].High)
		}

		rsv := 50.0
		if highMax > lowMin {
			rsv = (bars[i].Close - lowMin) / (highMax - lowMin) * 100
		}

		kPrev = (2.0/3.0)*kPrev + (1.0/3.0)*rsv
		dPrev = (2.0/3.0)*dPrev + (1.0/3.0)*kPrev

		kCol[i] = kPrev
		dCol[i] = dPrev
		jCol[i] = 3*kPrev - 2*dPrev
	}

	return types.IndicatorSeries{
		Symbol:    symbolOf(bars),
		Indicator: types.IndicatorTypeKDJ,
		Length:    len(bars),
		Columns: map[string][]float64{
			"k": kCol,
			"d": dCol,
			"j": jCol,
		},
	}, nil
}
