package types

import "time"

type PatternType string

const (
	PatternGoldenCross      PatternType = "golden_cross"
	PatternDeathCross       PatternType = "death_cross"
	PatternOverbought       PatternType = "overbought"
	PatternOversold         PatternType = "oversold"
	PatternUpperBandBreak   PatternType = "upper_band_break"
	PatternLowerBandBreak   PatternType = "lower_band_break"
	PatternBottomDivergence PatternType = "bottom_divergence"
	PatternTopDivergence    PatternType = "top_divergence"
)

type PatternDirection string

const (
	PatternDirectionBullish PatternDirection = "bullish"
	PatternDirectionBearish PatternDirection = "bearish"
)

// PatternFlag marks a single bar where a pattern detector fired.
type PatternFlag struct {
	Symbol    string           `json:"symbol" yaml:"symbol"`
	Time      time.Time        `json:"time" yaml:"time"`
	Pattern   PatternType      `json:"pattern" yaml:"pattern"`
	Direction PatternDirection `json:"direction" yaml:"direction"`
	// Strength is a detector-specific confidence in [0, 1].
	Strength float64 `json:"strength" yaml:"strength"`
}
