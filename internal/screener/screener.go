// Package screener evaluates screen specifications over an instrument
// universe: per-instrument filter interpretation with memoized field
// resolution, bounded parallel fan-out and deterministic result ordering.
package screener

import (
	"context"
	"sort"
	"time"

	"github.com/finsight-lab/finsight/internal/indicator"
	"github.com/finsight-lab/finsight/internal/indicator/cache"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/moznion/go-optional"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Config holds the screener tuning knobs.
type Config struct {
	// Parallelism bounds the number of instruments evaluated concurrently.
	Parallelism int `yaml:"parallelism" json:"parallelism" validate:"gte=0"`
	// WarmupDays is how many calendar days of leading history are fetched
	// before the as-of date so indicators are defined at evaluation time.
	WarmupDays int `yaml:"warmup_days" json:"warmup_days" validate:"gte=0"`
}

// DefaultConfig returns the screener defaults. The warm-up window is twice
// the 60-trading-day indicator convention to absorb non-trading days.
func DefaultConfig() Config {
	return Config{Parallelism: 8, WarmupDays: 120}
}

// Screener runs screen specifications.
type Screener struct {
	registry indicator.IndicatorRegistry
	cache    cache.Cache
	log      *logger.Logger
	config   Config
}

// NewScreener creates a screener sharing the given indicator registry and
// series cache.
func NewScreener(registry indicator.IndicatorRegistry, seriesCache cache.Cache, config Config, log *logger.Logger) *Screener {
	if config.Parallelism <= 0 {
		config.Parallelism = DefaultConfig().Parallelism
	}

	if config.WarmupDays <= 0 {
		config.WarmupDays = DefaultConfig().WarmupDays
	}

	return &Screener{
		registry: registry,
		cache:    seriesCache,
		log:      log,
		config:   config,
	}
}

// Snapshot binds a market data provider, an as-of date and the resolved
// instrument membership of one screen run.
type Snapshot struct {
	Provider    market.Provider
	AsOf        time.Time
	Instruments []market.Instrument
}

// BuildSnapshot resolves a universe against the provider's instrument list.
// It fails with EmptyUniverse when nothing is in scope.
func BuildSnapshot(ctx context.Context, provider market.Provider, universe types.Universe, asOf time.Time) (Snapshot, error) {
	instruments, err := provider.ListInstruments(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	members := make([]market.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if universeContains(universe, inst) {
			members = append(members, inst)
		}
	}

	if len(members) == 0 {
		return Snapshot{}, errors.New(errors.ErrCodeEmptyUniverse, "universe resolves to no instruments")
	}

	return Snapshot{Provider: provider, AsOf: asOf, Instruments: members}, nil
}

func universeContains(universe types.Universe, inst market.Instrument) bool {
	if len(universe.Symbols) > 0 && !containsString(universe.Symbols, inst.Symbol) {
		return false
	}

	if len(universe.Markets) > 0 && !containsString(universe.Markets, inst.Market) {
		return false
	}

	if len(universe.Exchanges) > 0 && !containsString(universe.Exchanges, inst.Exchange) {
		return false
	}

	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

// fieldPlan is the parsed field demand of one specification: which classes
// of data each instrument evaluation needs.
type fieldPlan struct {
	refs             []types.FieldRef
	rankRef          *types.FieldRef
	needsBars        bool
	needsFundamental bool
}

func buildFieldPlan(spec types.ScreenSpecification) (fieldPlan, error) {
	plan := fieldPlan{}

	for _, name := range spec.Filter.Fields() {
		ref, err := types.ParseField(name)
		if err != nil {
			return fieldPlan{}, err
		}

		plan.refs = append(plan.refs, ref)
		plan.note(ref)
	}

	if spec.RankBy.IsSome() {
		ref, err := types.ParseField(spec.RankBy.Unwrap())
		if err != nil {
			return fieldPlan{}, err
		}

		plan.rankRef = &ref
		plan.note(ref)
	}

	// Deterministic resolution order for the matched-field map.
	sort.Slice(plan.refs, func(i, j int) bool { return plan.refs[i].Name < plan.refs[j].Name })

	return plan, nil
}

func (p *fieldPlan) note(ref types.FieldRef) {
	switch ref.Class {
	case types.FieldClassFundamental:
		p.needsFundamental = true
	case types.FieldClassPrice, types.FieldClassIndicator:
		p.needsBars = true
	}
}

// Run evaluates the specification over the snapshot. Results are ordered
// by rank score descending when a rank key is present (undefined scores
// last), ties and unranked runs by symbol ascending, truncated to the
// limit. Any field that cannot be resolved for a universe member fails the
// whole run with UnknownField.
func (s *Screener) Run(ctx context.Context, spec types.ScreenSpecification, snap Snapshot) ([]types.ScreenResult, error) {
	plan, err := buildFieldPlan(spec)
	if err != nil {
		return nil, err
	}

	s.log.Debug("Starting screen run",
		zap.Int("instruments", len(snap.Instruments)),
		zap.Time("as_of", snap.AsOf),
		zap.Int("parallelism", s.config.Parallelism),
	)

	warmupStart := snap.AsOf.AddDate(0, 0, -s.config.WarmupDays)

	p := pool.NewWithResults[*types.ScreenResult]().
		WithContext(ctx).
		WithMaxGoroutines(s.config.Parallelism).
		WithCancelOnError().
		WithFirstError()

	for _, inst := range snap.Instruments {
		p.Go(func(ctx context.Context) (*types.ScreenResult, error) {
			return s.evaluateInstrument(ctx, spec, snap, plan, inst, warmupStart)
		})
	}

	collected, err := p.Wait()
	if err != nil {
		return nil, err
	}

	results := make([]types.ScreenResult, 0, len(collected))

	for _, r := range collected {
		if r != nil {
			results = append(results, *r)
		}
	}

	sortResults(results, spec.RankBy.IsSome())

	if len(results) > spec.Limit {
		results = results[:spec.Limit]
	}

	return results, nil
}

// evaluateInstrument evaluates one instrument and returns nil when it does
// not match. Instruments with no usable history are skipped, not failed:
// a short listing cannot satisfy an indicator filter.
func (s *Screener) evaluateInstrument(
	ctx context.Context,
	spec types.ScreenSpecification,
	snap Snapshot,
	plan fieldPlan,
	inst market.Instrument,
	warmupStart time.Time,
) (*types.ScreenResult, error) {
	var bars []types.PriceBar

	if plan.needsBars {
		var err error

		bars, err = snap.Provider.GetPriceBars(ctx, inst.Symbol, warmupStart, snap.AsOf)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeDataNotFound) {
				s.log.Debug("Skipping instrument without price history", zap.String("symbol", inst.Symbol))

				return nil, nil
			}

			return nil, err
		}

		if len(bars) == 0 {
			return nil, nil
		}
	}

	var snapshot map[string]types.FieldValue

	if plan.needsFundamental {
		var err error

		snapshot, err = snap.Provider.GetFundamentalSnapshot(ctx, inst.Symbol, snap.AsOf)
		if err != nil {
			return nil, err
		}
	}

	resolver := NewFieldResolver(inst.Symbol, bars, snapshot, s.registry, s.cache)
	at := resolver.LastIndex()

	// Every referenced field must be resolvable for every universe member.
	// Resolution happens up front so short-circuit evaluation cannot mask an
	// unresolvable field; series computed here are memoized and reused below.
	if err := resolveAllFields(resolver, plan, at); err != nil {
		if errors.IsInsufficientHistoryError(err) {
			s.log.Debug("Skipping instrument with insufficient history",
				zap.String("symbol", inst.Symbol),
				zap.Error(err),
			)

			return nil, nil
		}

		return nil, err
	}

	matched, err := Evaluate(spec.Filter, resolver, at)
	if err != nil {
		return nil, err
	}

	if !matched {
		return nil, nil
	}

	result := types.ScreenResult{
		Symbol:  inst.Symbol,
		Matched: make(map[string]float64, len(plan.refs)),
		Score:   optional.None[float64](),
	}

	for _, ref := range plan.refs {
		if ref.Kind != types.FieldKindNumeric {
			continue
		}

		value, defined, err := resolver.ResolveNumeric(ref, at)
		if err != nil {
			return nil, err
		}

		if defined {
			result.Matched[ref.Name] = value
		}
	}

	if plan.rankRef != nil {
		value, defined, err := resolver.ResolveNumeric(*plan.rankRef, at)
		if err != nil {
			return nil, err
		}

		if defined {
			result.Score = optional.Some(value)
		}
	}

	return &result, nil
}

// resolveAllFields resolves every field the specification references for
// one instrument, matched or not.
func resolveAllFields(resolver *FieldResolver, plan fieldPlan, at int) error {
	for _, ref := range plan.refs {
		var err error

		if ref.Kind == types.FieldKindText {
			_, err = resolver.ResolveText(ref)
		} else {
			_, _, err = resolver.ResolveNumeric(ref, at)
		}

		if err != nil {
			return err
		}
	}

	if plan.rankRef != nil {
		if _, _, err := resolver.ResolveNumeric(*plan.rankRef, at); err != nil {
			return err
		}
	}

	return nil
}

// sortResults orders results deterministically: score descending first when
// ranked, then symbol ascending. Merge order never depends on goroutine
// completion order.
func sortResults(results []types.ScreenResult, ranked bool) {
	sort.Slice(results, func(i, j int) bool {
		if ranked {
			iRanked := results[i].Score.IsSome()
			jRanked := results[j].Score.IsSome()

			switch {
			case iRanked && !jRanked:
				return true
			case !iRanked && jRanked:
				return false
			case iRanked && jRanked && results[i].Score.Unwrap() != results[j].Score.Unwrap():
				return results[i].Score.Unwrap() > results[j].Score.Unwrap()
			}
		}

		return results[i].Symbol < results[j].Symbol
	})
}
