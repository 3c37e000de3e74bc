package utils

import (
	"testing"
	"time"

	"mcp/src/models"

	"github.com/stretchr/testify/assert"
)

func TestCryptoAlwaysOpen(t *testing.T) {
	mh := NewMarketHours()

	// Saturday afternoon.
	sat := time.Date(2024, 6, 8, 14, 0, 0, 0, time.UTC)
	assert.True(t, mh.IsOpen(models.AssetCrypto, sat))
}

func TestWeeklySessionBoundaries(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		open bool
	}{
		{"saturday closed", time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC), false},
		{"sunday before open", time.Date(2024, 6, 9, 21, 59, 0, 0, time.UTC), false},
		{"sunday after open", time.Date(2024, 6, 9, 22, 0, 0, 0, time.UTC), true},
		{"wednesday", time.Date(2024, 6, 12, 3, 0, 0, 0, time.UTC), true},
		{"friday before close", time.Date(2024, 6, 14, 21, 59, 0, 0, time.UTC), true},
		{"friday after close", time.Date(2024, 6, 14, 22, 0, 0, 0, time.UTC), false},
	}

	mh := NewMarketHours()
	for _, c := range cases {
		assert.Equal(t, c.open, mh.IsOpen(models.AssetForex, c.t), c.name)
		assert.Equal(t, c.open, mh.IsOpen(models.AssetFutures, c.t), c.name)
	}
}

func TestEquityWeekendClosed(t *testing.T) {
	mh := NewMarketHours()

	sun := time.Date(2024, 6, 9, 15, 0, 0, 0, time.UTC)
	assert.False(t, mh.IsOpen(models.AssetStocks, sun))
}
