// Package engine_v1 is the reference backtest engine: an ascending replay
// over the union of observed bar timestamps with one Flat/Entered state
// machine per instrument, fills at bar close and a duckdb trade ledger.
package engine_v1

import (
	"context"
	"sort"
	"time"

	"github.com/finsight-lab/finsight/internal/backtest/engine"
	"github.com/finsight-lab/finsight/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/finsight-lab/finsight/internal/indicator"
	"github.com/finsight-lab/finsight/internal/indicator/cache"
	"github.com/finsight-lab/finsight/internal/logger"
	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/screener"
	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the engine tuning knobs.
type Config struct {
	// Broker selects the commission model.
	Broker commission_fee.Broker `yaml:"broker" json:"broker" validate:"omitempty,oneof=zero_commission fixed_rate"`
	// WarmupDays is how many calendar days of leading history are fetched
	// before the start date so indicators are defined from the first
	// simulated bar.
	WarmupDays int `yaml:"warmup_days" json:"warmup_days" validate:"gte=0"`
	// LedgerPath is the duckdb file for the closed-trade ledger; empty
	// keeps the ledger in memory.
	LedgerPath string `yaml:"ledger_path" json:"ledger_path"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Broker:     commission_fee.BrokerFixedRate,
		WarmupDays: 120,
		LedgerPath: "",
	}
}

// BacktestEngineV1 implements the Engine interface.
type BacktestEngineV1 struct {
	registry   indicator.IndicatorRegistry
	cache      cache.Cache
	commission commission_fee.CommissionFee
	log        *logger.Logger
	config     Config
	progress   engine.OnProcessBarCallback
}

// NewBacktestEngineV1 creates the engine.
func NewBacktestEngineV1(registry indicator.IndicatorRegistry, seriesCache cache.Cache, config Config, log *logger.Logger) engine.Engine {
	if config.WarmupDays <= 0 {
		config.WarmupDays = DefaultConfig().WarmupDays
	}

	return &BacktestEngineV1{
		registry:   registry,
		cache:      seriesCache,
		commission: commission_fee.GetCommissionFeeHandler(config.Broker),
		log:        log,
		config:     config,
	}
}

// SetProgressCallback implements the Engine interface.
func (b *BacktestEngineV1) SetProgressCallback(callback engine.OnProcessBarCallback) {
	b.progress = callback
}

// instrumentRun is the per-instrument replay state.
type instrumentRun struct {
	symbol   string
	bars     []types.PriceBar
	resolver *screener.FieldResolver
	// next is the index of the first bar not yet consumed by the replay.
	next int
	// lastClose is the close of the most recent bar at or before the
	// current timestamp, used for mark-to-market and forced closes.
	lastClose float64
	seen      bool
	position  *types.Position
	// firstClose and finalClose bound the instrument's bars inside the
	// simulated range, for the buy-and-hold baseline. Zero when the
	// instrument has no bar in range.
	firstClose float64
	finalClose float64
}

// Run implements the Engine interface.
func (b *BacktestEngineV1) Run(ctx context.Context, spec types.StrategySpecification, provider market.Provider) (types.BacktestReport, error) {
	if err := spec.ValidateDateRange(); err != nil {
		return types.BacktestReport{}, err
	}

	snap, err := screener.BuildSnapshot(ctx, provider, spec.Universe, spec.End)
	if err != nil {
		return types.BacktestReport{}, err
	}

	runs, timeline, err := b.loadInstruments(ctx, spec, snap)
	if err != nil {
		return types.BacktestReport{}, err
	}

	state, err := NewBacktestState(b.config.LedgerPath, b.log)
	if err != nil {
		return types.BacktestReport{}, err
	}
	defer state.Cleanup()

	if err := state.Initialize(); err != nil {
		return types.BacktestReport{}, err
	}

	runID := uuid.New().String()

	b.log.Info("Starting backtest run",
		zap.String("run_id", runID),
		zap.Int("instruments", len(runs)),
		zap.Int("timestamps", len(timeline)),
		zap.Time("start", spec.Start),
		zap.Time("end", spec.End),
	)

	cash := spec.InitialCapital
	curve := make([]types.EquityPoint, 0, len(timeline))
	ordered := sortedRuns(runs)

	var trades []types.Position

	for step, ts := range timeline {
		if ctx.Err() != nil {
			return types.BacktestReport{}, errors.Wrap(errors.ErrCodeCancelled, "backtest cancelled", ctx.Err())
		}

		// Symbol order keeps cash allocation deterministic when several
		// instruments trigger entries on the same timestamp.
		for _, run := range ordered {
			barIndex, hasBar := run.advanceTo(ts)
			if !hasBar {
				continue
			}

			cash, err = b.processBar(spec, run, barIndex, ts, cash, runs, state, runID, &trades)
			if err != nil {
				return types.BacktestReport{}, err
			}
		}

		curve = append(curve, types.EquityPoint{Time: ts, Equity: cash + markToMarket(runs)})

		if b.progress != nil {
			if err := b.progress(step+1, len(timeline)); err != nil {
				return types.BacktestReport{}, err
			}
		}
	}

	// Forced close: every still-open position is closed at its last known
	// close so the report only contains realized trades.
	if len(timeline) > 0 {
		finalTime := timeline[len(timeline)-1]

		for _, run := range ordered {
			if run.position == nil {
				continue
			}

			cash, err = b.closePosition(run, finalTime, run.lastClose, state, runID, &trades, cash)
			if err != nil {
				return types.BacktestReport{}, err
			}
		}

		curve[len(curve)-1].Equity = cash
	}

	report := types.BacktestReport{
		ID:             runID,
		Timestamp:      time.Now(),
		InitialCapital: spec.InitialCapital,
		FinalEquity:    cash,
		EquityCurve:    curve,
		Trades:         trades,
		Summary:        summarize(spec.InitialCapital, curve, trades, buyAndHoldReturn(runs)),
	}

	b.log.Info("Backtest run finished",
		zap.String("run_id", runID),
		zap.Float64("final_equity", report.FinalEquity),
		zap.Int("trades", len(trades)),
	)

	return report, nil
}

// loadInstruments fetches history for every universe member and builds the
// replay timeline: the ascending union of bar timestamps inside the
// simulated range. Leading warm-up bars are kept in the resolvers but
// never replayed.
func (b *BacktestEngineV1) loadInstruments(ctx context.Context, spec types.StrategySpecification, snap screener.Snapshot) (map[string]*instrumentRun, []time.Time, error) {
	needsFundamental := rulesNeedFundamentals(spec)
	warmupStart := spec.Start.AddDate(0, 0, -b.config.WarmupDays)
	runs := make(map[string]*instrumentRun)
	timestampSet := make(map[time.Time]struct{})

	for _, inst := range snap.Instruments {
		bars, err := snap.Provider.GetPriceBars(ctx, inst.Symbol, warmupStart, spec.End)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeDataNotFound) {
				b.log.Debug("Skipping instrument without price history", zap.String("symbol", inst.Symbol))

				continue
			}

			return nil, nil, err
		}

		if len(bars) == 0 {
			continue
		}

		var snapshot map[string]types.FieldValue

		if needsFundamental {
			snapshot, err = snap.Provider.GetFundamentalSnapshot(ctx, inst.Symbol, spec.End)
			if err != nil {
				return nil, nil, err
			}
		}

		run := &instrumentRun{
			symbol:   inst.Symbol,
			bars:     bars,
			resolver: screener.NewFieldResolver(inst.Symbol, bars, snapshot, b.registry, b.cache),
		}
		runs[inst.Symbol] = run

		for _, bar := range bars {
			if !bar.Time.Before(spec.Start) && !bar.Time.After(spec.End) {
				timestampSet[bar.Time] = struct{}{}

				if run.firstClose == 0 {
					run.firstClose = bar.Close
				}

				run.finalClose = bar.Close
			}
		}
	}

	if len(timestampSet) == 0 {
		return nil, nil, errors.Newf(errors.ErrCodeDataNotFound,
			"no price data between %s and %s for any universe member",
			spec.Start.Format(time.DateOnly), spec.End.Format(time.DateOnly))
	}

	timeline := make([]time.Time, 0, len(timestampSet))
	for ts := range timestampSet {
		timeline = append(timeline, ts)
	}

	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })

	return runs, timeline, nil
}

// advanceTo consumes bars up to and including ts. It returns the index of
// the bar exactly at ts when the instrument traded at this timestamp.
func (r *instrumentRun) advanceTo(ts time.Time) (int, bool) {
	for r.next < len(r.bars) && !r.bars[r.next].Time.After(ts) {
		r.lastClose = r.bars[r.next].Close
		r.seen = true
		r.next++
	}

	if r.next > 0 && r.bars[r.next-1].Time.Equal(ts) {
		return r.next - 1, true
	}

	return 0, false
}

// processBar runs one instrument's state machine for one bar. Rules only
// see history up to and including this bar; a position closed on this bar
// cannot re-enter before the next one.
func (b *BacktestEngineV1) processBar(
	spec types.StrategySpecification,
	run *instrumentRun,
	barIndex int,
	ts time.Time,
	cash float64,
	runs map[string]*instrumentRun,
	state *BacktestState,
	runID string,
	trades *[]types.Position,
) (float64, error) {
	price := run.bars[barIndex].Close

	if run.position != nil {
		shouldExit, err := screener.Evaluate(spec.ExitRule, run.resolver, barIndex)
		if err != nil {
			return cash, err
		}

		if shouldExit {
			return b.closePosition(run, ts, price, state, runID, trades, cash)
		}

		return cash, nil
	}

	shouldEnter, err := screener.Evaluate(spec.EntryRule, run.resolver, barIndex)
	if err != nil {
		return cash, err
	}

	if !shouldEnter {
		return cash, nil
	}

	equity := cash + markToMarket(runs)
	budget := entryBudget(spec.Sizing, equity, cash)
	quantity := shareQuantity(budget, price)

	// Shrink the fill until cost plus fee fits the cash on hand.
	for quantity > 0 {
		fee := b.commission.Calculate(quantity, price)
		if quantity*price+fee <= cash {
			run.position = &types.Position{
				Symbol:     run.symbol,
				EntryTime:  ts,
				EntryPrice: price,
				Quantity:   quantity,
				Commission: fee,
			}

			return cash - quantity*price - fee, nil
		}

		quantity--
	}

	return cash, nil
}

func (b *BacktestEngineV1) closePosition(
	run *instrumentRun,
	ts time.Time,
	price float64,
	state *BacktestState,
	runID string,
	trades *[]types.Position,
	cash float64,
) (float64, error) {
	position := run.position
	fee := b.commission.Calculate(position.Quantity, price)
	position.Commission += fee
	position.Close(ts, price)

	if err := state.RecordTrade(runID, *position); err != nil {
		return cash, err
	}

	*trades = append(*trades, *position)
	run.position = nil

	return cash + position.Quantity*price - fee, nil
}

// markToMarket values every open position at its last known close.
func markToMarket(runs map[string]*instrumentRun) float64 {
	total := 0.0

	for _, run := range runs {
		if run.position != nil && run.seen {
			total += run.position.Quantity * run.lastClose
		}
	}

	return total
}

// buyAndHoldReturn is the equal-weighted return of buying every instrument
// at its first simulated close and holding to its last.
func buyAndHoldReturn(runs map[string]*instrumentRun) float64 {
	total := 0.0
	count := 0

	for _, run := range runs {
		if run.firstClose <= 0 || run.finalClose <= 0 {
			continue
		}

		total += run.finalClose/run.firstClose - 1
		count++
	}

	if count == 0 {
		return 0
	}

	return total / float64(count)
}

// sortedRuns returns the runs in symbol order for deterministic iteration.
func sortedRuns(runs map[string]*instrumentRun) []*instrumentRun {
	out := make([]*instrumentRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, run)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })

	return out
}

// rulesNeedFundamentals reports whether either rule references a
// fundamental field.
func rulesNeedFundamentals(spec types.StrategySpecification) bool {
	for _, fields := range [][]string{spec.EntryRule.Fields(), spec.ExitRule.Fields()} {
		for _, name := range fields {
			ref, err := types.ParseField(name)
			if err == nil && ref.Class == types.FieldClassFundamental {
				return true
			}
		}
	}

	return false
}
