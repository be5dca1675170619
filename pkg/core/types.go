package core

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Asset identifies a currency or token together with the power-of-ten
// exponent relating its smallest indivisible unit to its canonical
// decimal form (8 for BTC: 1e8 satoshi per coin).
type Asset struct {
	// Symbol is the canonical ticker (e.g. "BTC").
	Symbol string `json:"symbol"`
	// Name is the human-readable asset name.
	Name string `json:"name"`
	// UnitExponent is the power-of-ten divisor from smallest-unit
	// amounts to canonical decimal amounts.
	UnitExponent int32 `json:"unit_exponent"`
}

// MovementCategory classifies an asset movement.
type MovementCategory int

// Movement categories.
const (
	// CategoryDeposit is an inbound transfer to the exchange account.
	CategoryDeposit MovementCategory = iota
	// CategoryWithdrawal is an outbound transfer from the exchange account.
	CategoryWithdrawal
)

// String returns the string representation of the category.
func (c MovementCategory) String() string {
	return [...]string{"deposit", "withdrawal"}[c]
}

// MarshalJSON implements json.Marshaler for MovementCategory.
func (c MovementCategory) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// MarginPosition is a realized margin trading result. Once produced it
// is an immutable history fact; the amount carries the sign of the
// profit or loss.
type MarginPosition struct {
	// Location is the exchange the position was held on.
	Location string `json:"location"`
	// OpenTime is when the position was opened, when known.
	OpenTime *time.Time `json:"open_time,omitempty"`
	// CloseTime is when the position was closed.
	CloseTime time.Time `json:"close_time"`
	// ProfitLoss is the signed realized result.
	ProfitLoss apd.Decimal `json:"profit_loss"`
	// PLCurrency is the asset the result is denominated in.
	PLCurrency Asset `json:"pl_currency"`
	// Fee is the fee paid, non-negative.
	Fee apd.Decimal `json:"fee"`
	// FeeCurrency is the asset the fee is denominated in.
	FeeCurrency Asset `json:"fee_currency"`
	// Notes is free-text context from the exchange.
	Notes string `json:"notes,omitempty"`
	// Link is the exchange-assigned identifier of the record.
	Link string `json:"link,omitempty"`
}

// AssetMovement is a deposit or withdrawal. Amount and Fee are always
// non-negative; direction is encoded solely by Category.
type AssetMovement struct {
	// Location is the exchange the movement happened on.
	Location string `json:"location"`
	// Category is deposit or withdrawal.
	Category MovementCategory `json:"category"`
	// Address is the source or destination address, when reported.
	Address string `json:"address,omitempty"`
	// TransactionID is the on-chain transaction id, when reported.
	TransactionID string `json:"transaction_id,omitempty"`
	// Timestamp is when the movement settled.
	Timestamp time.Time `json:"timestamp"`
	// Asset is the moved asset.
	Asset Asset `json:"asset"`
	// Amount is the moved quantity, non-negative.
	Amount apd.Decimal `json:"amount"`
	// FeeAsset is the asset the fee is denominated in.
	FeeAsset Asset `json:"fee_asset"`
	// Fee is the fee paid, non-negative.
	Fee apd.Decimal `json:"fee"`
	// Link is the exchange-assigned identifier of the record.
	Link string `json:"link,omitempty"`
}

// Balance is a current holding of one asset with its valuation at the
// externally supplied spot price.
type Balance struct {
	// Amount is the held quantity in canonical decimal form.
	Amount apd.Decimal `json:"amount"`
	// Value is Amount multiplied by the oracle spot price.
	Value apd.Decimal `json:"usd_value"`
}

// TimeWindow is an inclusive [Start, End] timestamp range used to bound
// which historical records are retained. Callers are responsible for
// Start <= End.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeWindow creates a TimeWindow over [start, end].
func NewTimeWindow(start, end time.Time) TimeWindow {
	return TimeWindow{Start: start, End: end}
}

// Contains reports whether ts falls inside the window. Both bounds are
// inclusive.
func (w TimeWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// NullTimestampPolicy states what the window filter does with records
// that carry no timestamp at all.
type NullTimestampPolicy int

const (
	// DropNullTimestamps excludes records without a timestamp.
	DropNullTimestamps NullTimestampPolicy = iota
	// IncludeNullTimestamps retains records without a timestamp.
	IncludeNullTimestamps
)

// Admits reports whether a record with the given (possibly absent)
// timestamp passes the window filter under the given policy.
func (w TimeWindow) Admits(ts *time.Time, policy NullTimestampPolicy) bool {
	if ts == nil {
		return policy == IncludeNullTimestamps
	}
	return w.Contains(*ts)
}
