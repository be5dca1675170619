package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument_Mapping(t *testing.T) {
	doc, err := DecodeDocument("bitmex", []byte(`{"amount": "150000000", "currency": "XBt"}`))
	require.NoError(t, err)
	assert.Equal(t, ShapeMapping, doc.Shape())

	m, err := doc.Mapping()
	require.NoError(t, err)
	assert.True(t, m.Has("amount"))
}

func TestDecodeDocument_Sequence(t *testing.T) {
	doc, err := DecodeDocument("bitmex", []byte(`[{"a": 1}, {"a": 2}]`))
	require.NoError(t, err)
	assert.Equal(t, ShapeSequence, doc.Shape())

	s, err := doc.Sequence()
	require.NoError(t, err)
	assert.Len(t, s, 2)
}

func TestDecodeDocument_InvalidJSON(t *testing.T) {
	_, err := DecodeDocument("bitmex", []byte(`{"broken`))
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
	assert.Contains(t, err.Error(), "invalid JSON response")
}

func TestDecodeDocument_ErrorEnvelope(t *testing.T) {
	body := []byte(`{"error": {"message": "Invalid API Key.", "name": "HTTPError"}}`)
	_, err := DecodeDocument("bitmex", body)
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
	assert.Contains(t, err.Error(), "Invalid API Key.")
}

func TestDecodeDocument_ErrorEnvelopeWithoutMessage(t *testing.T) {
	_, err := DecodeDocument("bitmex", []byte(`{"error": "rate limited"}`))
	require.Error(t, err)
	assert.True(t, IsRemoteError(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDocument_WrongShapeIsFatal(t *testing.T) {
	doc, err := DecodeDocument("bitmex", []byte(`[1, 2, 3]`))
	require.NoError(t, err)

	_, err = doc.Mapping()
	require.Error(t, err)

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, ShapeMapping, shapeErr.Expected)
	assert.Equal(t, ShapeSequence, shapeErr.Actual)
}

func TestMapping_String(t *testing.T) {
	m := Mapping{"transactType": "Deposit"}

	v, err := m.String("transactType")
	require.NoError(t, err)
	assert.Equal(t, "Deposit", v)
}

func TestMapping_String_Missing(t *testing.T) {
	m := Mapping{}

	_, err := m.String("transactType")
	require.Error(t, err)
	assert.True(t, IsDeserializationError(err))
	assert.Contains(t, err.Error(), "missing key entry for transactType")
}

func TestMapping_String_NullIsMissing(t *testing.T) {
	m := Mapping{"address": nil}

	_, err := m.String("address")
	require.Error(t, err)
	assert.True(t, IsDeserializationError(err))
}

func TestMapping_Decimal_FromString(t *testing.T) {
	m := Mapping{"amount": "100000000"}

	d, err := m.Decimal("amount")
	require.NoError(t, err)
	assert.Equal(t, "100000000", d.String())
}

func TestMapping_Decimal_FromNumber(t *testing.T) {
	m := Mapping{"amount": float64(260)}

	d, err := m.Decimal("amount")
	require.NoError(t, err)
	assert.Equal(t, "260", d.String())
}

func TestMapping_Decimal_Garbage(t *testing.T) {
	m := Mapping{"amount": "dsadsad"}

	_, err := m.Decimal("amount")
	require.Error(t, err)
	assert.True(t, IsDeserializationError(err))
}

func TestMapping_OptionalDecimal_NullIsZero(t *testing.T) {
	m := Mapping{"fee": nil}

	d, err := m.OptionalDecimal("fee")
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestMapping_OptionalString(t *testing.T) {
	m := Mapping{"tx": "abc123", "address": nil}

	v, ok := m.OptionalString("tx")
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	_, ok = m.OptionalString("address")
	assert.False(t, ok)

	_, ok = m.OptionalString("nope")
	assert.False(t, ok)
}
