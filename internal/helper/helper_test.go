package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormSymbol(t *testing.T) {
	assert.Equal(t, "ETH-USDT", NormSymbol(" eth_usdt "))
	assert.Equal(t, "BTC-USDT", NormSymbol("btc/usdt"))
	assert.Equal(t, "ETH", BaseAsset("eth-usdt"))
	assert.Equal(t, "ETH", BaseAsset("ETH"))
}

func TestUniqueSorted(t *testing.T) {
	got := UniqueSorted([]string{"sol-usdt", "", "ETH_USDT", "eth-usdt", "BTC-USDT"})
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}, got)
	assert.Empty(t, UniqueSorted(nil))
}
