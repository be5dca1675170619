package price

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/pkg/core"
)

var _ Oracle = (*StaticOracle)(nil)

func TestStaticOracle_FindPrice(t *testing.T) {
	o := NewStaticOracle()
	require.NoError(t, o.SetString("BTC", "30000"))

	p, err := o.FindPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "30000", p.String())
}

func TestStaticOracle_MissingPriceIsRemoteError(t *testing.T) {
	o := NewStaticOracle()

	_, err := o.FindPrice(context.Background(), "BTC")
	require.Error(t, err)
	assert.True(t, core.IsRemoteError(err))
}

func TestStaticOracle_SetString_Invalid(t *testing.T) {
	o := NewStaticOracle()
	assert.Error(t, o.SetString("BTC", "not-a-number"))
}
