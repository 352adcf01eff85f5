package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finsight-lab/finsight/internal/types"
	"github.com/finsight-lab/finsight/pkg/errors"
)

// InMemoryProvider serves market data from memory. Used in tests and as
// the backing store for small, pre-loaded datasets.
type InMemoryProvider struct {
	mu           sync.RWMutex
	instruments  map[string]Instrument
	bars         map[string][]types.PriceBar
	fundamentals map[string]map[string]types.FieldValue
}

// NewInMemoryProvider creates an empty in-memory provider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		instruments:  make(map[string]Instrument),
		bars:         make(map[string][]types.PriceBar),
		fundamentals: make(map[string]map[string]types.FieldValue),
	}
}

// AddInstrument registers an instrument.
func (p *InMemoryProvider) AddInstrument(inst Instrument) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.instruments[inst.Symbol] = inst
}

// SetPriceBars replaces the bar history for a symbol. Bars must be in
// strictly ascending time order.
func (p *InMemoryProvider) SetPriceBars(symbol string, bars []types.PriceBar) error {
	if !types.ValidateBarOrder(bars) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "price bars for %s are not strictly ascending by time", symbol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.bars[symbol] = bars

	return nil
}

// SetFundamentals replaces the fundamental snapshot for a symbol.
func (p *InMemoryProvider) SetFundamentals(symbol string, fields map[string]types.FieldValue) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fundamentals[symbol] = fields
}

// Name implements the Provider interface.
func (p *InMemoryProvider) Name() string {
	return "in_memory"
}

// ListInstruments implements the Provider interface.
func (p *InMemoryProvider) ListInstruments(_ context.Context) ([]Instrument, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Instrument, 0, len(p.instruments))
	for _, inst := range p.instruments {
		out = append(out, inst)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	return out, nil
}

// GetPriceBars implements the Provider interface.
func (p *InMemoryProvider) GetPriceBars(_ context.Context, symbol string, start, end time.Time) ([]types.PriceBar, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all, ok := p.bars[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no price bars for symbol %s", symbol)
	}

	var out []types.PriceBar

	for _, bar := range all {
		if bar.Time.Before(start) || bar.Time.After(end) {
			continue
		}

		out = append(out, bar)
	}

	return out, nil
}

// GetFundamentalSnapshot implements the Provider interface. The in-memory
// store keeps a single snapshot per symbol and returns it regardless of
// asOf, merged with the instrument's text attributes.
func (p *InMemoryProvider) GetFundamentalSnapshot(_ context.Context, symbol string, _ time.Time) (map[string]types.FieldValue, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	inst, ok := p.instruments[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "instrument %s not found", symbol)
	}

	out := map[string]types.FieldValue{
		"market":   types.TextValue(inst.Market),
		"exchange": types.TextValue(inst.Exchange),
		"industry": types.TextValue(inst.Industry),
	}

	for name, value := range p.fundamentals[symbol] {
		out[name] = value
	}

	return out, nil
}
