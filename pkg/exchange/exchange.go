// Package exchange defines the unified interface exchange adapters
// implement and a registry for wiring several accounts.
package exchange

import (
	"context"

	"tally/pkg/core"
)

// Exchange is the read-only account interface every adapter implements:
// credential probing, current balances, and historical activity. One
// adapter instance serves one account; instances share no mutable
// state, so distinct adapters may be queried concurrently.
type Exchange interface {
	// Name returns the exchange identifier.
	Name() string

	// Version returns the exchange API version in use.
	Version() string

	// ValidateAPIKey probes the credentials. It returns false with a
	// user-facing reason when the exchange rejects the key or
	// signature; any other remote failure is returned as an error.
	ValidateAPIKey(ctx context.Context) (bool, string, error)

	// QueryBalances retrieves current holdings valued at the oracle
	// spot price, keyed by canonical asset symbol. Any failure is
	// fatal to the call.
	QueryBalances(ctx context.Context) (map[string]core.Balance, error)

	// QueryMarginHistory retrieves realized margin positions closed
	// inside the window. Per-record anomalies become warnings, not
	// errors.
	QueryMarginHistory(ctx context.Context, window core.TimeWindow) ([]core.MarginPosition, error)

	// QueryDepositsWithdrawals retrieves asset movements inside the
	// window. Per-record anomalies become warnings, not errors.
	QueryDepositsWithdrawals(ctx context.Context, window core.TimeWindow) ([]core.AssetMovement, error)

	// Close releases the adapter's resources.
	Close() error
}
