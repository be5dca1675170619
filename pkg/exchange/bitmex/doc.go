// Package bitmex implements the exchange adapter for BitMEX.
//
// BitMEX settles everything in XBt (satoshi), reports its wallet ledger
// as one unpaginated list, and authenticates requests with an
// HMAC-SHA256 signature over verb, path, expiry and body. The adapter
// normalizes that ledger into canonical margin positions and asset
// movements, folding per-record anomalies into warnings instead of
// aborting a batch.
package bitmex
