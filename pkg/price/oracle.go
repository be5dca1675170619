// Package price defines the spot price oracle boundary used to value
// balances. The oracle is an external collaborator; adapters only
// consume the interface.
package price

import (
	"context"
	"sync"

	"github.com/cockroachdb/apd/v3"

	"tally/pkg/core"
)

// Oracle supplies the current USD spot price for an asset. A lookup
// failure is reported as a RemoteError and propagated unchanged by the
// callers.
type Oracle interface {
	FindPrice(ctx context.Context, symbol string) (*apd.Decimal, error)
}

// StaticOracle is an in-memory Oracle backed by a fixed price table.
// It serves tests and offline valuation runs.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]*apd.Decimal
}

// NewStaticOracle creates an empty StaticOracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]*apd.Decimal)}
}

// Set stores the price for a symbol.
func (o *StaticOracle) Set(symbol string, price *apd.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[symbol] = new(apd.Decimal).Set(price)
}

// SetString stores the price for a symbol from its decimal string form.
func (o *StaticOracle) SetString(symbol, price string) error {
	d, _, err := apd.NewFromString(price)
	if err != nil {
		return err
	}
	o.Set(symbol, d)
	return nil
}

// FindPrice implements Oracle.
func (o *StaticOracle) FindPrice(_ context.Context, symbol string) (*apd.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.prices[symbol]
	if !ok {
		return nil, core.NewRemoteError("price-oracle", "no price found for "+symbol)
	}
	return new(apd.Decimal).Set(p), nil
}
