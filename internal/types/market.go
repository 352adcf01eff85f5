package types

import (
	"time"
)

// PriceBar represents a single OHLCV record for one instrument.
// Bars are immutable once ingested and are always handled in ascending
// time order with no duplicate timestamps per symbol.
type PriceBar struct {
	Symbol string    `csv:"symbol" json:"symbol" yaml:"symbol"`
	Time   time.Time `csv:"time" json:"time" yaml:"time"`
	Open   float64   `csv:"open" json:"open" yaml:"open"`
	High   float64   `csv:"high" json:"high" yaml:"high"`
	Low    float64   `csv:"low" json:"low" yaml:"low"`
	Close  float64   `csv:"close" json:"close" yaml:"close"`
	Volume float64   `csv:"volume" json:"volume" yaml:"volume"`
}

// ValidateBarOrder checks that bars are strictly ascending by time with no
// duplicate timestamps. Gaps are permitted; missing trading days are never
// inferred.
func ValidateBarOrder(bars []PriceBar) bool {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return false
		}
	}

	return true
}

// Closes extracts the close column from a bar sequence.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}

	return out
}
