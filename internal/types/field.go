package types

import (
	"strconv"
	"strings"

	"github.com/finsight-lab/finsight/pkg/errors"
)

// FieldClass describes where a field's value comes from.
type FieldClass string

const (
	// FieldClassFundamental values come from the fundamental snapshot.
	FieldClassFundamental FieldClass = "fundamental"
	// FieldClassPrice values come straight from the latest price bar.
	FieldClassPrice FieldClass = "price"
	// FieldClassIndicator values are computed by the indicator engine.
	FieldClassIndicator FieldClass = "indicator"
)

// FieldRef is a parsed, resolvable field reference. The field namespace is
// the sole vocabulary a specification may use; anything that does not parse
// is an unknown field.
type FieldRef struct {
	Name      string
	Class     FieldClass
	Kind      FieldKind
	Indicator IndicatorType
	// Column selects the output column for multi-column indicators
	// (e.g. "dif" for macd_dif).
	Column string
	// Period is the primary lookback for single-period indicators.
	Period int
}

// fundamentalFields enumerates the snapshot fields the core understands.
// Mirrors the screening vocabulary of the fundamental data feed.
var fundamentalFields = map[string]FieldKind{
	"pe_ratio":       FieldKindNumeric,
	"pb_ratio":       FieldKindNumeric,
	"total_mv":       FieldKindNumeric,
	"turnover_rate":  FieldKindNumeric,
	"dividend_yield": FieldKindNumeric,
	"moneyflow_net":  FieldKindNumeric,
	"industry":       FieldKindText,
	"market":         FieldKindText,
	"exchange":       FieldKindText,
}

var priceFields = map[string]struct{}{
	"open":   {},
	"high":   {},
	"low":    {},
	"close":  {},
	"volume": {},
}

// fixedIndicatorFields maps parameterless indicator field names to their
// indicator and output column. Multi-parameter indicators use their
// conventional default parameters.
var fixedIndicatorFields = map[string]struct {
	indicator IndicatorType
	column    string
}{
	"macd_dif":   {IndicatorTypeMACD, "dif"},
	"macd_dea":   {IndicatorTypeMACD, "dea"},
	"macd_hist":  {IndicatorTypeMACD, "hist"},
	"kdj_k":      {IndicatorTypeKDJ, "k"},
	"kdj_d":      {IndicatorTypeKDJ, "d"},
	"kdj_j":      {IndicatorTypeKDJ, "j"},
	"boll_upper": {IndicatorTypeBollingerBands, "upper"},
	"boll_mid":   {IndicatorTypeBollingerBands, "mid"},
	"boll_lower": {IndicatorTypeBollingerBands, "lower"},
}

// periodIndicatorPrefixes maps "<prefix>_<period>" field names to their
// indicator. The column name matches the prefix.
var periodIndicatorPrefixes = map[string]IndicatorType{
	"sma": IndicatorTypeSMA,
	"ema": IndicatorTypeEMA,
	"rsi": IndicatorTypeRSI,
}

// ParseField resolves a field name into a FieldRef. It fails with
// ErrCodeUnknownField for anything outside the closed field namespace.
func ParseField(name string) (FieldRef, error) {
	if kind, ok := fundamentalFields[name]; ok {
		return FieldRef{Name: name, Class: FieldClassFundamental, Kind: kind}, nil
	}

	if _, ok := priceFields[name]; ok {
		return FieldRef{Name: name, Class: FieldClassPrice, Kind: FieldKindNumeric, Column: name}, nil
	}

	if fixed, ok := fixedIndicatorFields[name]; ok {
		return FieldRef{
			Name:      name,
			Class:     FieldClassIndicator,
			Kind:      FieldKindNumeric,
			Indicator: fixed.indicator,
			Column:    fixed.column,
		}, nil
	}

	if idx := strings.LastIndex(name, "_"); idx > 0 {
		prefix := name[:idx]
		if indicatorType, ok := periodIndicatorPrefixes[prefix]; ok {
			period, err := strconv.Atoi(name[idx+1:])
			if err != nil || period <= 0 {
				return FieldRef{}, errors.Newf(errors.ErrCodeUnknownField, "field %q has an invalid period suffix", name)
			}

			return FieldRef{
				Name:      name,
				Class:     FieldClassIndicator,
				Kind:      FieldKindNumeric,
				Indicator: indicatorType,
				Column:    prefix,
				Period:    period,
			}, nil
		}
	}

	return FieldRef{}, errors.Newf(errors.ErrCodeUnknownField, "unknown field %q", name)
}

// KnownFieldNames returns the full static field vocabulary, excluding the
// parameterized period forms. Used to describe the schema to the language
// model.
func KnownFieldNames() []string {
	names := make([]string, 0, len(fundamentalFields)+len(priceFields)+len(fixedIndicatorFields))
	for name := range fundamentalFields {
		names = append(names, name)
	}

	for name := range priceFields {
		names = append(names, name)
	}

	for name := range fixedIndicatorFields {
		names = append(names, name)
	}

	return names
}
