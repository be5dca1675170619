package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNoCredentials is returned when no API credentials are configured.
	ErrNoCredentials = errors.New("no credentials configured")
)

// RemoteError represents a failure of a remote exchange call: a network
// error, a disallowed HTTP status, an undecodable body, or a logical
// error reported by the exchange itself. It is always fatal to the
// current query and is never retried by this package.
type RemoteError struct {
	// Exchange identifies which exchange the call targeted.
	Exchange string
	// StatusCode is the HTTP status, when one was received.
	StatusCode int
	// Message is the human-readable description.
	Message string
	// Err is the underlying cause, when one exists.
	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s] remote error (%d): %s", e.Exchange, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("[%s] remote error: %s", e.Exchange, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError creates a RemoteError without an HTTP status.
func NewRemoteError(exchange, message string) *RemoteError {
	return &RemoteError{Exchange: exchange, Message: message}
}

// NewRemoteErrorWithStatus creates a RemoteError carrying the HTTP status
// of the rejected response.
func NewRemoteErrorWithStatus(exchange string, status int, message string) *RemoteError {
	return &RemoteError{Exchange: exchange, StatusCode: status, Message: message}
}

// WrapRemoteError creates a RemoteError wrapping a transport-level cause.
func WrapRemoteError(exchange, message string, err error) *RemoteError {
	return &RemoteError{Exchange: exchange, Message: message, Err: err}
}

// IsRemoteError reports whether err is (or wraps) a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// UnknownAssetError is a per-record soft failure raised when an exchange
// symbol cannot be resolved against the asset registry. History batches
// convert it into a warning and continue.
type UnknownAssetError struct {
	// Symbol is the unresolvable exchange-native symbol.
	Symbol string
}

// Error implements the error interface.
func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %s", e.Symbol)
}

// IsUnknownAsset reports whether err is (or wraps) an UnknownAssetError.
func IsUnknownAsset(err error) bool {
	var ua *UnknownAssetError
	return errors.As(err, &ua)
}

// DeserializationError is a per-record soft failure raised when a raw
// exchange record is missing a required key or carries a malformed value.
// History batches convert it into a warning and continue.
type DeserializationError struct {
	// Key is the offending record key, preserved for diagnostics.
	Key string
	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *DeserializationError) Error() string {
	return e.Message
}

// NewMissingKeyError creates a DeserializationError for an absent
// required key. The key name is preserved in the message.
func NewMissingKeyError(key string) *DeserializationError {
	return &DeserializationError{
		Key:     key,
		Message: fmt.Sprintf("missing key entry for %s", key),
	}
}

// NewBadValueError creates a DeserializationError for a key whose value
// could not be interpreted.
func NewBadValueError(key, detail string) *DeserializationError {
	return &DeserializationError{
		Key:     key,
		Message: fmt.Sprintf("failed to deserialize value for %s: %s", key, detail),
	}
}

// IsDeserializationError reports whether err is (or wraps) a
// DeserializationError.
func IsDeserializationError(err error) bool {
	var de *DeserializationError
	return errors.As(err, &de)
}

// ShapeError indicates a response whose JSON shape does not match what
// the caller declared. Unlike the soft per-record failures it signals a
// misconfigured adapter and is fatal to the query.
type ShapeError struct {
	Expected Shape
	Actual   Shape
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("expected JSON %s but got %s", e.Expected, e.Actual)
}
