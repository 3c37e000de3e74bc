package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  time.Minute,
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"4h":  4 * time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for tf, want := range cases {
		d, err := ParseTimeframe(tf)
		require.NoError(t, err, tf)
		assert.Equal(t, want, d, tf)
	}
}

func TestParseTimeframeInvalid(t *testing.T) {
	for _, tf := range []string{"", "m", "1x", "0m", "-5m", "abc"} {
		_, err := ParseTimeframe(tf)
		assert.Error(t, err, tf)
	}
}

func TestPollIntervalForTimeframe(t *testing.T) {
	cases := map[string]time.Duration{
		"1m":  10 * time.Second,
		"5m":  30 * time.Second,
		"15m": time.Minute,
		"1h":  2 * time.Minute,
		"4h":  5 * time.Minute,
		"1d":  30 * time.Minute,
	}
	for tf, want := range cases {
		assert.Equal(t, want, PollIntervalForTimeframe(tf), tf)
	}

	// Unparseable timeframes fall back to a safe default.
	assert.Equal(t, 30*time.Second, PollIntervalForTimeframe("bogus"))
}
