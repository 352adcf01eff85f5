package types

import "math"

type IndicatorType string

const (
	IndicatorTypeSMA            IndicatorType = "sma"
	IndicatorTypeEMA            IndicatorType = "ema"
	IndicatorTypeMACD           IndicatorType = "macd"
	IndicatorTypeRSI            IndicatorType = "rsi"
	IndicatorTypeKDJ            IndicatorType = "kdj"
	IndicatorTypeBollingerBands IndicatorType = "bollinger_bands"
)

// IndicatorSeries holds one or more value columns derived from a PriceBar
// sequence. Every column has exactly the same length as the bar sequence it
// was derived from; positions inside the warm-up window carry NaN.
type IndicatorSeries struct {
	Symbol    string               `json:"symbol"`
	Indicator IndicatorType        `json:"indicator"`
	Length    int                  `json:"length"`
	Columns   map[string][]float64 `json:"columns"`
}

// Column returns the named value column.
func (s IndicatorSeries) Column(name string) ([]float64, bool) {
	col, ok := s.Columns[name]

	return col, ok
}

// At returns the value of a column at index i, or NaN when the column does
// not exist or the index is out of range.
func (s IndicatorSeries) At(column string, i int) float64 {
	col, ok := s.Columns[column]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}

	return col[i]
}

// Defined reports whether the column value at index i is past the warm-up
// window.
func (s IndicatorSeries) Defined(column string, i int) bool {
	return !math.IsNaN(s.At(column, i))
}
