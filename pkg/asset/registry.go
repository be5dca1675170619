// Package asset provides the global asset registry that exchange
// adapters resolve native symbols against.
package asset

import (
	"sync"

	"tally/pkg/core"
)

// Registry maps canonical ticker symbols to assets. It is safe for
// concurrent use; adapters share one registry but may also own their
// own when their symbol universe differs.
type Registry struct {
	mu     sync.RWMutex
	assets map[string]core.Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{assets: make(map[string]core.Asset)}
}

// NewDefaultRegistry creates a registry seeded with the assets the
// supported exchanges settle in.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []core.Asset{
		{Symbol: "BTC", Name: "Bitcoin", UnitExponent: 8},
		{Symbol: "ETH", Name: "Ethereum", UnitExponent: 18},
		{Symbol: "LTC", Name: "Litecoin", UnitExponent: 8},
		{Symbol: "USDT", Name: "Tether", UnitExponent: 6},
		{Symbol: "USDC", Name: "USD Coin", UnitExponent: 6},
		{Symbol: "XRP", Name: "Ripple", UnitExponent: 6},
		{Symbol: "DOGE", Name: "Dogecoin", UnitExponent: 8},
		{Symbol: "SOL", Name: "Solana", UnitExponent: 9},
	} {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an asset.
func (r *Registry) Register(a core.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.Symbol] = a
}

// Resolve looks up a symbol. An unregistered symbol yields an
// UnknownAssetError, which batch loops treat as a soft failure.
func (r *Registry) Resolve(symbol string) (core.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[symbol]
	if !ok {
		return core.Asset{}, &core.UnknownAssetError{Symbol: symbol}
	}
	return a, nil
}

// Symbols returns all registered symbols.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.assets))
	for s := range r.assets {
		symbols = append(symbols, s)
	}
	return symbols
}
