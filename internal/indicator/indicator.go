package indicator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/finsight-lab/finsight/internal/types"
)

// Indicator computes a derived series over a full price-bar sequence.
// Implementations are pure and deterministic: the same bars and parameters
// always produce the same series, and every output column is aligned 1:1
// with the input bars (NaN inside the warm-up window).
type Indicator interface {
	// Name returns the name of the indicator.
	Name() types.IndicatorType
	// Config configures the indicator parameters.
	Config(params ...any) error
	// MinBars returns the minimum number of bars required before the
	// series has any defined value.
	MinBars() int
	// ParamsKey returns a stable fingerprint of the current parameters,
	// used for cache keying.
	ParamsKey() string
	// Compute derives the indicator series from the given bars.
	Compute(bars []types.PriceBar) (types.IndicatorSeries, error)
}

// paramsKey renders parameter name/value pairs into a stable string.
func paramsKey(params map[string]int) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, params[k]))
	}

	return strings.Join(parts, ",")
}

// nanSlice returns a slice of the given length filled with NaN.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

// emaSeries computes an exponential moving average with the conventional
// span smoothing (alpha = 2/(period+1)), seeded from the first value.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]

	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}

	return out
}
