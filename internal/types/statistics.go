package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EquityPoint is one sample of the equity curve, taken once per bar.
type EquityPoint struct {
	Time   time.Time `yaml:"time" json:"time"`
	Equity float64   `yaml:"equity" json:"equity"`
}

// BacktestSummary aggregates the closed trades of a run.
type BacktestSummary struct {
	// Total return: final equity over initial capital, minus one.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// Maximum peak-to-trough decline of the equity curve, as a fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// Closed trades with positive PnL over total closed trades.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Sum of winning PnL over absolute sum of losing PnL. +Inf when there
	// are no losing trades.
	ProfitFactor          float64 `yaml:"profit_factor" json:"profit_factor"`
	NumberOfTrades        int     `yaml:"number_of_trades" json:"number_of_trades"`
	NumberOfWinningTrades int     `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	NumberOfLosingTrades  int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	TotalCommission       float64 `yaml:"total_commission" json:"total_commission"`
	// Return of buying every universe member at the first bar and holding
	// to the last, equal-weighted. Comparison baseline only.
	BuyAndHoldReturn float64 `yaml:"buy_and_hold_return" json:"buy_and_hold_return"`
}

// BacktestReport is the full structured result of one backtest run.
type BacktestReport struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp      time.Time       `yaml:"timestamp" json:"timestamp"`
	InitialCapital float64         `yaml:"initial_capital" json:"initial_capital"`
	FinalEquity    float64         `yaml:"final_equity" json:"final_equity"`
	EquityCurve    []EquityPoint   `yaml:"equity_curve" json:"equity_curve"`
	Trades         []Position      `yaml:"trades" json:"trades"`
	Summary        BacktestSummary `yaml:"summary" json:"summary"`
}

// WriteBacktestReport writes the report to the given path as YAML.
func WriteBacktestReport(path string, report BacktestReport) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest report to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest report to file: %w", err)
	}

	return nil
}
