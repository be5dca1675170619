package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteError_Format(t *testing.T) {
	err := NewRemoteErrorWithStatus("bitmex", 502, "bad gateway")
	assert.Equal(t, "[bitmex] remote error (502): bad gateway", err.Error())

	err = NewRemoteError("bitmex", "connection refused")
	assert.Equal(t, "[bitmex] remote error: connection refused", err.Error())
}

func TestRemoteError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapRemoteError("bitmex", "API request failed", cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, IsRemoteError(err))
	assert.True(t, IsRemoteError(fmt.Errorf("query balances: %w", err)))
}

func TestIsUnknownAsset(t *testing.T) {
	err := &UnknownAssetError{Symbol: "WTF"}
	assert.Equal(t, "unknown asset WTF", err.Error())
	assert.True(t, IsUnknownAsset(fmt.Errorf("normalize: %w", err)))
	assert.False(t, IsUnknownAsset(errors.New("unknown asset WTF")))
}

func TestNewMissingKeyError(t *testing.T) {
	err := NewMissingKeyError("transactTime")
	assert.Equal(t, "transactTime", err.Key)
	assert.Equal(t, "missing key entry for transactTime", err.Error())
	assert.True(t, IsDeserializationError(err))
}

func TestSoftAndFatalKindsAreDistinct(t *testing.T) {
	soft := error(NewMissingKeyError("amount"))
	fatal := error(NewRemoteError("bitmex", "boom"))

	assert.True(t, IsDeserializationError(soft))
	assert.False(t, IsRemoteError(soft))
	assert.True(t, IsRemoteError(fatal))
	assert.False(t, IsDeserializationError(fatal))
}
