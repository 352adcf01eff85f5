package types

import (
	"github.com/moznion/go-optional"
)

// ScreenResult is one matched instrument of a screen run. Results are
// always ordered deterministically: rank score descending when a rank key
// is present, ties and unranked runs by symbol ascending.
type ScreenResult struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	// Matched holds the resolved numeric value of every numeric field the
	// filter referenced, keyed by field name.
	Matched map[string]float64 `json:"matched" yaml:"matched"`
	// Score is the resolved rank-key value when the specification names one.
	Score optional.Option[float64] `json:"score,omitempty" yaml:"score,omitempty"`
}
