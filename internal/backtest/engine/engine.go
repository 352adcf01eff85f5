// Package engine defines the backtest engine contract.
package engine

import (
	"context"

	"github.com/finsight-lab/finsight/internal/market"
	"github.com/finsight-lab/finsight/internal/types"
)

// OnProcessBarCallback is called once per replayed timestamp. Returning an
// error aborts the run.
type OnProcessBarCallback func(current int, total int) error

// Engine replays a strategy specification over historical data.
type Engine interface {
	// Run replays the strategy over the provider's data and returns the
	// full report. The context cancels the replay between timestamps.
	Run(ctx context.Context, spec types.StrategySpecification, provider market.Provider) (types.BacktestReport, error)
	// SetProgressCallback registers a per-timestamp progress callback.
	// A nil callback disables progress reporting.
	SetProgressCallback(callback OnProcessBarCallback)
}
