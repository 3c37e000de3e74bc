package utils

import (
	"fmt"
	"strconv"
	"time"
)

// -----------------------------------------------------------------------------
// Timeframe helpers shared by polling providers.
// -----------------------------------------------------------------------------

// ParseTimeframe converts a timeframe string ("1m", "15m", "1h", "4h", "1d")
// to its duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("invalid timeframe: %q", tf)
	}

	unit := tf[len(tf)-1]
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe: %q", tf)
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid timeframe unit: %q", tf)
	}
}

// -----------------------------------------------------------------------------

// PollIntervalForTimeframe picks how often a candle subscription should poll
// upstream. Short timeframes poll aggressively, long ones lazily, so a 1d
// subscription does not hammer the provider.
func PollIntervalForTimeframe(tf string) time.Duration {
	d, err := ParseTimeframe(tf)
	if err != nil {
		return 30 * time.Second
	}

	switch {
	case d <= time.Minute:
		return 10 * time.Second
	case d <= 5*time.Minute:
		return 30 * time.Second
	case d <= 15*time.Minute:
		return time.Minute
	case d <= time.Hour:
		return 2 * time.Minute
	case d <= 4*time.Hour:
		return 5 * time.Minute
	default:
		return 30 * time.Minute
	}
}
