package indicator

import (
	"fmt"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// MACD represents the Moving Average Convergence Divergence indicator.
// Output columns: "dif" (fast EMA minus slow EMA), "dea" (signal EMA of
// dif) and "hist" (dif minus dea).
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator with default configuration.
func NewMACD() Indicator {
	return &MACD{
		fastPeriod:   12, // Default fast period
		slowPeriod:   26, // Default slow period
		signalPeriod: 9,  // Default signal period
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Config configures the MACD indicator. Expected parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int).
func (m *MACD) Config(params ...any) error {
	if len(params) != 3 {
		return fmt.Errorf("Config expects 3 parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int)")
	}

	fastPeriod, ok := params[0].(int)
	if !ok {
		return fmt.Errorf("invalid type for fastPeriod parameter, expected int")
	}

	if fastPeriod <= 0 {
		return fmt.Errorf("fastPeriod must be a positive integer, got %d", fastPeriod)
	}

	slowPeriod, ok := params[1].(int)
	if !ok {
		return fmt.Errorf("invalid type for slowPeriod parameter, expected int")
	}

	if slowPeriod <= fastPeriod {
		return fmt.Errorf("slowPeriod must be greater than fastPeriod, got %d <= %d", slowPeriod, fastPeriod)
	}

	signalPeriod, ok := params[2].(int)
	if !ok {
		return fmt.Errorf("invalid type for signalPeriod parameter, expected int")
	}

	if signalPeriod <= 0 {
		return fmt.Errorf("signalPeriod must be a positive integer, got %d", signalPeriod)
	}

	m.fastPeriod = fastPeriod
	m.slowPeriod = slowPeriod
	m.signalPeriod = signalPeriod

	return nil
}

// MinBars implements the Indicator interface.
func (m *MACD) MinBars() int {
	return m.slowPeriod + m.signalPeriod
}

// ParamsKey implements the Indicator interface.
func (m *MACD) ParamsKey() string {
	return paramsKey(map[string]int{
		"fast":   m.fastPeriod,
		"slow":   m.slowPeriod,
		"signal": m.signalPeriod,
	})
}

// Compute implements the Indicator interface.
func (m *MACD) Compute(bars []types.PriceBar) (types.IndicatorSeries, error) {
	if len(bars) < m.MinBars() {
		return types.IndicatorSeries{}, errors.NewInsufficientHistoryErrorf(m.MinBars(), len(bars), symbolOf(bars),
			"macd(%d,%d,%d) needs at least %d bars, got %d", m.fastPeriod, m.slowPeriod, m.signalPeriod, m.MinBars(), len(bars))
	}

	closes := types.Closes(bars)
	fast := emaSeries(closes, m.fastPeriod)
	slow := emaSeries(closes, m.slowPeriod)

	rawDif := make([]float64, len(bars))
	for i := range rawDif {
		rawDif[i] = fast[i] - slow[i]
	}

	rawDea := emaSeries(rawDif, m.signalPeriod)

	dif := nanSlice(len(bars))
	dea := nanSlice(len(bars))
	hist := nanSlice(len(bars))

	for i := m.MinBars() - 1; i < len(bars); i++ {
		dif[i] = rawDif[i]
		dea[i] = rawDea[i]
		hist[i] = rawDif[i] - rawDea[i]
	}

	return types.IndicatorSeries{
		Symbol:    symbolOf(bars),
		Indicator: types.IndicatorTypeMACD,
		Length:    len(bars),
		Columns: map[string][]float64{
			"dif":  dif,
			"dea":  dea,
			"hist": hist,
		},
	}, nil
}
