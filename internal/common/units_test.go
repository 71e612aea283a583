package common

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatWithDecimals(t *testing.T) {
	assert.Equal(t, "0.024981836", FormatWithDecimals(big.NewInt(24981836), 9))
	assert.Equal(t, "1.000000000000000000", FormatWithDecimals(big.NewInt(1e18), 18))
	assert.Equal(t, "0.000000000000000000", FormatWithDecimals(big.NewInt(0), 18))
	assert.Equal(t, "-0.500000000", FormatWithDecimals(big.NewInt(-5e8), 9))
}

func TestParseWithDecimals(t *testing.T) {
	v, err := ParseWithDecimals("0.024981836", 9)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(24981836), v)

	v, err = ParseWithDecimals("2", 18)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18)), v)

	// Excess precision is truncated, not rejected.
	v, err = ParseWithDecimals("0.1234", 2)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12), v)

	_, err = ParseWithDecimals("", 9)
	assert.Error(t, err)
	_, err = ParseWithDecimals("1.2.3", 9)
	assert.Error(t, err)
	_, err = ParseWithDecimals("abc", 9)
	assert.Error(t, err)
}

func TestWeiToEtherRoundTrip(t *testing.T) {
	wei, err := ParseWithDecimals("1.5", EtherDecimals)
	require.NoError(t, err)
	assert.Equal(t, "1.500000000000000000", WeiToEther(wei))
}

func TestFiatValue(t *testing.T) {
	wei := new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))
	fiat, err := FiatValue(wei, "2000.00")
	require.NoError(t, err)
	assert.Equal(t, "4000.00", fiat)

	_, err = FiatValue(wei, "not-a-rate")
	assert.Error(t, err)
}
