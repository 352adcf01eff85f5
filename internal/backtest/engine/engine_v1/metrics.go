package engine_v1

import (
	"math"

	"github.com/finsight-lab/finsight/internal/types"
)

// summarize aggregates the closed trades and the equity curve into the
// report summary.
func summarize(initialCapital float64, curve []types.EquityPoint, trades []types.Position, buyAndHold float64) types.BacktestSummary {
	summary := types.BacktestSummary{
		MaxDrawdown:      maxDrawdown(curve),
		BuyAndHoldReturn: buyAndHold,
	}

	if len(curve) > 0 && initialCapital > 0 {
		summary.TotalReturn = curve[len(curve)-1].Equity/initialCapital - 1
	}

	grossProfit := 0.0
	grossLoss := 0.0

	for _, trade := range trades {
		summary.NumberOfTrades++
		summary.TotalCommission += trade.Commission

		pnl := trade.PnL()
		if pnl > 0 {
			summary.NumberOfWinningTrades++

			grossProfit += pnl
		} else if pnl < 0 {
			summary.NumberOfLosingTrades++

			grossLoss += -pnl
		}
	}

	if summary.NumberOfTrades > 0 {
		summary.WinRate = float64(summary.NumberOfWinningTrades) / float64(summary.NumberOfTrades)
	}

	summary.ProfitFactor = profitFactor(grossProfit, grossLoss)

	return summary
}

// maxDrawdown returns the largest peak-to-trough decline of the equity
// curve as a fraction of the peak.
func maxDrawdown(curve []types.EquityPoint) float64 {
	peak := math.Inf(-1)
	worst := 0.0

	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak > 0 {
			drawdown := (peak - point.Equity) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}

	return worst
}

// profitFactor returns gross profit over gross loss. A run with winners
// and no losers has no meaningful ratio and reports +Inf; a run with no
// trades at all reports zero.
func profitFactor(grossProfit float64, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}

		return 0
	}

	return grossProfit / grossLoss
}
