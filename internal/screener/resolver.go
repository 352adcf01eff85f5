package screener

import (
	"math"

	"github.com/finsight-lab/finsight/internal/indicator"
	"github.com/finsight-lab/finsight/internal/indicator/cache"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// FieldResolver resolves field references for one instrument against its
// bar history and fundamental snapshot. Indicator series are computed at
// most once per (indicator, params) pair: first the shared LRU cache is
// consulted, then a local memo, so repeated references inside one filter
// never recompute.
//
// Indicator kernels are causal, so a series computed over the full history
// can safely be read at any bar index without look-ahead.
type FieldResolver struct {
	symbol   string
	bars     []types.PriceBar
	snapshot map[string]types.FieldValue
	registry indicator.IndicatorRegistry
	cache    cache.Cache
	memo     map[string]types.IndicatorSeries
}

// NewFieldResolver creates a resolver for one instrument. Bars must be in
// strictly ascending time order; snapshot may be nil when the filter
// references no fundamental fields.
func NewFieldResolver(
	symbol string,
	bars []types.PriceBar,
	snapshot map[string]types.FieldValue,
	registry indicator.IndicatorRegistry,
	seriesCache cache.Cache,
) *FieldResolver {
	return &FieldResolver{
		symbol:   symbol,
		bars:     bars,
		snapshot: snapshot,
		registry: registry,
		cache:    seriesCache,
		memo:     make(map[string]types.IndicatorSeries),
	}
}

// Bars returns the resolver's bar history.
func (r *FieldResolver) Bars() []types.PriceBar {
	return r.bars
}

// LastIndex returns the index of the most recent bar, or -1 when there is
// no history.
func (r *FieldResolver) LastIndex() int {
	return len(r.bars) - 1
}

// ResolveNumeric resolves a numeric field at bar index i. The boolean
// reports whether the value is defined; an indicator still inside its
// warm-up window is undefined, not an error. Errors are reserved for
// fields that cannot be resolved at all for this instrument.
func (r *FieldResolver) ResolveNumeric(ref types.FieldRef, i int) (float64, bool, error) {
	switch ref.Class {
	case types.FieldClassFundamental:
		value, ok := r.snapshot[ref.Name]
		if !ok || value.Number == nil {
			return 0, false, errors.Newf(errors.ErrCodeUnknownField,
				"field %q cannot be resolved for %s", ref.Name, r.symbol)
		}

		return *value.Number, true, nil
	case types.FieldClassPrice:
		if i < 0 || i >= len(r.bars) {
			return 0, false, nil
		}

		value := priceColumn(r.bars[i], ref.Column)
		if math.IsNaN(value) {
			return 0, false, nil
		}

		return value, true, nil
	case types.FieldClassIndicator:
		series, err := r.series(ref)
		if err != nil {
			return 0, false, err
		}

		value := series.At(ref.Column, i)
		if math.IsNaN(value) {
			return 0, false, nil
		}

		return value, true, nil
	default:
		return 0, false, errors.Newf(errors.ErrCodeUnknownField, "unknown field class %q", ref.Class)
	}
}

// ResolveText resolves a text field from the fundamental snapshot.
func (r *FieldResolver) ResolveText(ref types.FieldRef) (string, error) {
	value, ok := r.snapshot[ref.Name]
	if !ok || value.Text == nil {
		return "", errors.Newf(errors.ErrCodeUnknownField,
			"field %q cannot be resolved for %s", ref.Name, r.symbol)
	}

	return *value.Text, nil
}

// series returns the indicator series backing a field reference, computing
// it on first use.
func (r *FieldResolver) series(ref types.FieldRef) (types.IndicatorSeries, error) {
	ind, err := r.registry.GetIndicator(ref.Indicator)
	if err != nil {
		return types.IndicatorSeries{}, err
	}

	if ref.Period > 0 {
		if err := ind.Config(ref.Period); err != nil {
			return types.IndicatorSeries{}, errors.Wrapf(errors.ErrCodeInvalidParameter, err,
				"failed to configure %s with period %d", ref.Indicator, ref.Period)
		}
	}

	params := ind.ParamsKey()
	memoKey := string(ref.Indicator) + "/" + params

	if series, ok := r.memo[memoKey]; ok {
		return series, nil
	}

	key := cache.Key{
		Symbol:    r.symbol,
		Indicator: ref.Indicator,
		Params:    params,
		SeriesLen: len(r.bars),
	}
	if len(r.bars) > 0 {
		key.SeriesEnd = r.bars[len(r.bars)-1].Time
	}

	if r.cache != nil {
		if series, ok := r.cache.Get(key); ok {
			r.memo[memoKey] = series

			return series, nil
		}
	}

	series, err := ind.Compute(r.bars)
	if err != nil {
		return types.IndicatorSeries{}, err
	}

	r.memo[memoKey] = series
	if r.cache != nil {
		r.cache.Set(key, series)
	}

	return series, nil
}

func priceColumn(bar types.PriceBar, column string) float64 {
	switch column {
	case "open":
		return bar.Open
	case "high":
		return bar.High
	case "low":
		return bar.Low
	case "close":
		return bar.Close
	case "volume":
		return bar.Volume
	default:
		return math.NaN()
	}
}
