package types

import (
	"time"
)

// Position represents a single long holding opened by a backtest run.
// A position is either open or closed, never partially; quantity stays
// positive while open. Positions are owned by exactly one run.
type Position struct {
	Symbol     string     `json:"symbol" yaml:"symbol"`
	EntryTime  time.Time  `json:"entry_time" yaml:"entry_time"`
	EntryPrice float64    `json:"entry_price" yaml:"entry_price"`
	Quantity   float64    `json:"quantity" yaml:"quantity"`
	ExitTime   *time.Time `json:"exit_time,omitempty" yaml:"exit_time,omitempty"`
	ExitPrice  *float64   `json:"exit_price,omitempty" yaml:"exit_price,omitempty"`
	// Commission accumulates entry plus exit fees.
	Commission float64 `json:"commission" yaml:"commission"`
}

// IsOpen reports whether the position has not been closed yet.
func (p Position) IsOpen() bool {
	return p.ExitTime == nil
}

// Close marks the position closed at the given time and price.
func (p *Position) Close(at time.Time, price float64) {
	p.ExitTime = &at
	p.ExitPrice = &price
}

// PnL returns the realized profit and loss net of commission. Zero while
// the position is open.
func (p Position) PnL() float64 {
	if p.IsOpen() {
		return 0
	}

	return (*p.ExitPrice-p.EntryPrice)*p.Quantity - p.Commission
}

// Return returns the realized fractional return on the entry notional.
// Zero while the position is open.
func (p Position) Return() float64 {
	if p.IsOpen() || p.EntryPrice == 0 || p.Quantity == 0 {
		return 0
	}

	return p.PnL() / (p.EntryPrice * p.Quantity)
}
