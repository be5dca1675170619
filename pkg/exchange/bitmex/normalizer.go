package bitmex

import (
	"time"

	"github.com/cockroachdb/apd/v3"

	"tally/pkg/asset"
	"tally/pkg/core"
)

// Wallet ledger transactType values this module tracks. BitMEX emits
// many other ledger line types (affiliate payouts, transfers between
// sub-accounts); those are skipped without a warning.
const (
	transactTypeDeposit     = "Deposit"
	transactTypeWithdrawal  = "Withdrawal"
	transactTypeRealisedPNL = "RealisedPNL"
)

// Normalizer maps raw BitMEX wallet history records into canonical
// domain events. The symbol quirk table is checked before the generic
// registry lookup because BitMEX uses non-standard tickers for native
// units.
type Normalizer struct {
	registry *asset.Registry
	quirks   map[string]string
}

// NewNormalizer creates a Normalizer resolving against the given
// registry.
func NewNormalizer(registry *asset.Registry) *Normalizer {
	return &Normalizer{
		registry: registry,
		quirks: map[string]string{
			// XBt is the chain's native unit: satoshi-denominated BTC.
			"XBt":  "BTC",
			"USDt": "USDT",
		},
	}
}

// ResolveAsset translates an exchange-native symbol into a registry
// asset. Unmapped symbols fall through to a direct registry lookup,
// which may fail with a soft UnknownAssetError.
func (n *Normalizer) ResolveAsset(symbol string) (core.Asset, error) {
	if canonical, ok := n.quirks[symbol]; ok {
		return n.registry.Resolve(canonical)
	}
	return n.registry.Resolve(symbol)
}

// MovementCategory maps a wallet ledger transactType onto a canonical
// movement category. ok is false for the many ledger line types this
// module does not track.
func (n *Normalizer) MovementCategory(transactType string) (core.MovementCategory, bool) {
	switch transactType {
	case transactTypeDeposit:
		return core.CategoryDeposit, true
	case transactTypeWithdrawal:
		return core.CategoryWithdrawal, true
	default:
		return 0, false
	}
}

// MovementFromRecord turns one raw wallet history record into an
// AssetMovement. Every returned error is one of the soft per-record
// kinds; callers fold them into warnings.
func (n *Normalizer) MovementFromRecord(rec core.Mapping, category core.MovementCategory) (*core.AssetMovement, error) {
	ts, err := recordTimestamp(rec, "timestamp")
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, core.NewMissingKeyError("timestamp")
	}

	symbol, err := rec.String("currency")
	if err != nil {
		return nil, err
	}
	movedAsset, err := n.ResolveAsset(symbol)
	if err != nil {
		return nil, err
	}

	amount, err := rec.Decimal("amount")
	if err != nil {
		return nil, err
	}
	fee, err := rec.OptionalDecimal("fee")
	if err != nil {
		return nil, err
	}

	link, err := rec.String("transactID")
	if err != nil {
		return nil, err
	}

	// some sources report withdrawals as negative amounts; direction
	// lives in the category, never in the sign
	amount.Abs(amount)
	fee.Abs(fee)

	movement := &core.AssetMovement{
		Location:  "bitmex",
		Category:  category,
		Timestamp: *ts,
		Asset:     movedAsset,
		Amount:    *fromNativeUnits(movedAsset, amount),
		FeeAsset:  movedAsset,
		Fee:       *fromNativeUnits(movedAsset, fee),
		Link:      link,
	}
	if address, ok := rec.OptionalString("address"); ok {
		movement.Address = address
	}
	if tx, ok := rec.OptionalString("tx"); ok {
		movement.TransactionID = tx
	}
	return movement, nil
}

// MarginPositionFromRecord turns one RealisedPNL wallet history record
// into a MarginPosition. The amount keeps its sign: it is the realized
// result, not a movement magnitude.
func (n *Normalizer) MarginPositionFromRecord(rec core.Mapping) (*core.MarginPosition, error) {
	closeTime, err := recordTimestamp(rec, "transactTime")
	if err != nil {
		return nil, err
	}
	if closeTime == nil {
		return nil, core.NewMissingKeyError("transactTime")
	}

	symbol, err := rec.String("currency")
	if err != nil {
		return nil, err
	}
	plAsset, err := n.ResolveAsset(symbol)
	if err != nil {
		return nil, err
	}

	profitLoss, err := rec.Decimal("amount")
	if err != nil {
		return nil, err
	}
	fee, err := rec.OptionalDecimal("fee")
	if err != nil {
		return nil, err
	}
	fee.Abs(fee)

	link, err := rec.String("transactID")
	if err != nil {
		return nil, err
	}

	position := &core.MarginPosition{
		Location:    "bitmex",
		CloseTime:   *closeTime,
		ProfitLoss:  *fromNativeUnits(plAsset, profitLoss),
		PLCurrency:  plAsset,
		Fee:         *fromNativeUnits(plAsset, fee),
		FeeCurrency: plAsset,
		Link:        link,
	}
	if notes, ok := rec.OptionalString("address"); ok {
		position.Notes = notes
	}
	return position, nil
}

// fromNativeUnits converts a smallest-unit amount to canonical decimal
// form by the asset's power-of-ten exponent. The shift is exact; no
// rounding context is involved.
func fromNativeUnits(a core.Asset, v *apd.Decimal) *apd.Decimal {
	scaled := new(apd.Decimal).Set(v)
	scaled.Exponent -= a.UnitExponent
	return scaled
}

// recordTimestamp parses an ISO8601 timestamp field. An absent or null
// field yields (nil, nil); a malformed value is a soft failure.
func recordTimestamp(rec core.Mapping, key string) (*time.Time, error) {
	s, ok := rec.OptionalString(key)
	if !ok {
		if rec.Has(key) {
			return nil, core.NewBadValueError(key, "expected ISO8601 string")
		}
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, core.NewBadValueError(key, err.Error())
	}
	ts = ts.UTC()
	return &ts, nil
}
