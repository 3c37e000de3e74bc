package marketdata

import (
	"testing"

	"mcp/src/models"

	"github.com/stretchr/testify/assert"
)

func TestInferAssetClass(t *testing.T) {
	cases := []struct {
		symbol string
		want   models.AssetClass
	}{
		{"BTCUSDT", models.AssetCrypto},
		{"ETHUSDT", models.AssetCrypto},
		{"BTCUSD", models.AssetCrypto},
		{"SOLBTC", models.AssetCrypto},
		{"EURUSD", models.AssetForex},
		{"GBPJPY", models.AssetForex},
		{"EUR/USD", models.AssetForex},
		{"ESZ5", models.AssetFutures},
		{"ESZ25", models.AssetFutures},
		{"NQH6", models.AssetFutures},
		{"CLM25", models.AssetFutures},
		{"AAPL", models.AssetStocks},
		{"TSLA", models.AssetStocks},
		{"BRK.B", models.AssetStocks},
		{"", models.AssetStocks},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, InferAssetClass(tc.symbol), "symbol %q", tc.symbol)
	}
}

func TestInferAssetClassNormalizesInput(t *testing.T) {
	assert.Equal(t, models.AssetForex, InferAssetClass(" eurusd "))
	assert.Equal(t, models.AssetCrypto, InferAssetClass("btcusdt"))
}
