package indicator

import (
	"math"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// Pattern detectors run over already-computed indicator series aligned with
// a bar sequence. Each detector is pure: the same inputs always produce the
// same flags, and a flag is only emitted at the bar where the detector
// fires.

// DetectCrossovers emits a golden-cross flag at every bar t where
// fast[t-1] <= slow[t-1] and fast[t] > slow[t], and a death-cross flag for
// the mirrored condition. Bars where either series is undefined are skipped.
// Strength is the crossing gap relative to the slow line, capped at 1.
func DetectCrossovers(bars []types.PriceBar, fast, slow []float64) ([]types.PatternFlag, error) {
	if len(fast) != len(bars) || len(slow) != len(bars) {
		return nil, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"crossover series misaligned: bars=%d fast=%d slow=%d", len(bars), len(fast), len(slow))
	}

	var flags []types.PatternFlag

	for t := 1; t < len(bars); t++ {
		if anyNaN(fast[t-1], slow[t-1], fast[t], slow[t]) {
			continue
		}

		if fast[t-1] <= slow[t-1] && fast[t] > slow[t] {
			flags = append(flags, types.PatternFlag{
				Symbol:    bars[t].Symbol,
				Time:      bars[t].Time,
				Pattern:   types.PatternGoldenCross,
				Direction: types.PatternDirectionBullish,
				Strength:  crossStrength(fast[t], slow[t]),
			})
		}

		if fast[t-1] >= slow[t-1] && fast[t] < slow[t] {
			flags = append(flags, types.PatternFlag{
				Symbol:    bars[t].Symbol,
				Time:      bars[t].Time,
				Pattern:   types.PatternDeathCross,
				Direction: types.PatternDirectionBearish,
				Strength:  crossStrength(fast[t], slow[t]),
			})
		}
	}

	return flags, nil
}

// ThresholdConfig bounds an oscillator's overbought/oversold zones.
type ThresholdConfig struct {
	Oversold   float64
	Overbought float64
}

// DetectThresholds emits an oversold flag at every bar where the oscillator
// crosses below the oversold bound, and an overbought flag where it crosses
// above the overbought bound. Strength grows with the distance past the
// bound, capped at 1.
func DetectThresholds(bars []types.PriceBar, osc []float64, cfg ThresholdConfig) ([]types.PatternFlag, error) {
	if len(osc) != len(bars) {
		return nil, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"threshold series misaligned: bars=%d osc=%d", len(bars), len(osc))
	}

	if cfg.Oversold >= cfg.Overbought {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"oversold bound %.2f must be below overbought bound %.2f", cfg.Oversold, cfg.Overbought)
	}

	span := cfg.Overbought - cfg.Oversold

	var flags []types.PatternFlag

	for t := 1; t < len(bars); t++ {
		if anyNaN(osc[t-1], osc[t]) {
			continue
		}

		if osc[t-1] >= cfg.Oversold && osc[t] < cfg.Oversold {
			flags = append(flags, types.PatternFlag{
				Symbol:    bars[t].Symbol,
				Time:      bars[t].Time,
				Pattern:   types.PatternOversold,
				Direction: types.PatternDirectionBullish,
				Strength:  clamp01((cfg.Oversold - osc[t]) / span),
			})
		}

		if osc[t-1] <= cfg.Overbought && osc[t] > cfg.Overbought {
			flags = append(flags, types.PatternFlag{
				Symbol:    bars[t].Symbol,
				Time:      bars[t].Time,
				Pattern:   types.PatternOverbought,
				Direction: types.PatternDirectionBearish,
				Strength:  clamp01((osc[t] - cfg.Overbought) / span),
			})
		}
	}

	return flags, nil
}

// DetectBandBreaks emits a flag at every bar whose close breaks above the
// upper band or below the lower band.
func DetectBandBreaks(bars []types.PriceBar, upper, lower []float64) ([]types.PatternFlag, error) {
	if len(upper) != len(bars) || len(lower) != len(bars) {
		return nil, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"band series misaligned: bars=%d upper=%d lower=%d", len(bars), len(upper), len(lower))
	}

	var flags []types.PatternFlag

	for t := 0; t < len(bars); t++ {
		if anyNaN(upper[t], lower[t]) {
			continue
		}

		width := upper[t] - lower[t]

		if bars[t].Close > upper[t] {
			flags = append(flags, types.PatternFlag{
				Symbol:    bars[t].Symbol,
				Time:      bars[t].Time,
				Pattern:   types.PatternUpperBandBreak,
				Direction: types.PatternDirectionBullish,
				Strength:  breakStrength(bars[t].Close-upper[t], width),
			})
		}

		if bars[t].Close < lower[t] {
			flags = append(flags, types.PatternFlag{
				Symbol:    bars[t].Symbol,
				Time:      bars[t].Time,
				Pattern:   types.PatternLowerBandBreak,
				Direction: types.PatternDirectionBearish,
				Strength:  breakStrength(lower[t]-bars[t].Close, width),
			})
		}
	}

	return flags, nil
}

// DivergenceConfig controls trough detection for divergence scanning.
// TroughWindow is the number of bars on each side a local extremum must
// dominate; Lookback bounds how far apart the two troughs may be.
type DivergenceConfig struct {
	TroughWindow int
	Lookback     int
}

// DefaultDivergenceConfig mirrors the trough windows the detectors were
// tuned with on daily bars.
func DefaultDivergenceConfig() DivergenceConfig {
	return DivergenceConfig{TroughWindow: 3, Lookback: 60}
}

// DetectBottomDivergence scans for bars where price makes a lower low while
// the paired oscillator makes a higher low across the two most recent
// troughs inside the lookback window. The flag is emitted at the second
// trough.
func DetectBottomDivergence(bars []types.PriceBar, osc []float64, cfg DivergenceConfig) ([]types.PatternFlag, error) {
	if len(osc) != len(bars) {
		return nil, errors.Newf(errors.ErrCodeIndicatorCalculation,
			"divergence series misaligned: bars=%d osc=%d", len(bars), len(osc))
	}

	if cfg.TroughWindow <= 0 || cfg.Lookback <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"divergence config must have positive trough window and lookback, got %+v", cfg)
	}

	troughs := findTroughs(bars, osc, cfg.TroughWindow)

	var flags []types.PatternFlag

	for i := 1; i < len(troughs); i++ {
		prev, curr := troughs[i-1], troughs[i]
		if curr-prev > cfg.Lookback {
			continue
		}

		priceLowerLow := bars[curr].Low < bars[prev].Low
		oscHigherLow := osc[curr] > osc[prev]

		if priceLowerLow && oscHigherLow {
			denom := math.Abs(osc[prev])
			if denom == 0 {
				denom = 1
			}

			flags = append(flags, types.PatternFlag{
				Symbol:    bars[curr].Symbol,
				Time:      bars[curr].Time,
				Pattern:   types.PatternBottomDivergence,
				Direction: types.PatternDirectionBullish,
				Strength:  clamp01((osc[curr] - osc[prev]) / denom),
			})
		}
	}

	return flags, nil
}

// findTroughs returns indices of bars whose low is the strict minimum of
// the surrounding window and whose oscillator value is defined.
func findTroughs(bars []types.PriceBar, osc []float64, window int) []int {
	var troughs []int

	for t := window; t < len(bars)-window; t++ {
		if math.IsNaN(osc[t]) {
			continue
		}

		isTrough := true

		for w := t - window; w <= t+window; w++ {
			if w == t {
				continue
			}

			if bars[w].Low <= bars[t].Low {
				isTrough = false

				break
			}
		}

		if isTrough {
			troughs = append(troughs, t)
		}
	}

	return troughs
}

func crossStrength(fast, slow float64) float64 {
	if slow == 0 {
		return 1
	}

	return clamp01(math.Abs(fast-slow) / math.Abs(slow) * 100)
}

func breakStrength(overshoot, width float64) float64 {
	if width <= 0 {
		return 1
	}

	return clamp01(overshoot / width)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}

	return false
}
