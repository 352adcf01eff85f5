// Package market provides read access to price history and fundamental
// snapshots for the screener and the backtest engine.
package market

import (
	"context"
	"time"

	"github.com/finsight-lab/finsight/internal/types"
)

// Instrument is a tradable listing known to a data provider.
type Instrument struct {
	Symbol   string `json:"symbol" yaml:"symbol" csv:"symbol"`
	Name     string `json:"name" yaml:"name" csv:"name"`
	Market   string `json:"market" yaml:"market" csv:"market"`
	Exchange string `json:"exchange" yaml:"exchange" csv:"exchange"`
	Industry string `json:"industry" yaml:"industry" csv:"industry"`
}

// Provider serves instruments, price history and fundamental snapshots.
//
// GetPriceBars returns bars in strictly ascending time order, both bounds
// inclusive. Missing trading days are simply absent; providers never
// synthesize bars. GetFundamentalSnapshot returns the most recent snapshot
// at or before asOf, keyed by field name.
type Provider interface {
	// Name returns the provider identifier used in logs.
	Name() string
	// ListInstruments returns every instrument the provider knows about.
	ListInstruments(ctx context.Context) ([]Instrument, error)
	// GetPriceBars returns the bar history for one symbol in [start, end].
	GetPriceBars(ctx context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error)
	// GetFundamentalSnapshot returns the fundamental fields for one symbol
	// as of the given date.
	GetFundamentalSnapshot(ctx context.Context, symbol string, asOf time.Time) (map[string]types.FieldValue, error)
}
