package utils

import (
	"time"

	"mcp/src/models"

	"github.com/scmhub/calendar"
)

// -----------------------------------------------------------------------------
// Market-hours gating per asset class. Polling adapters consult this to skip
// upstream fetches while the relevant market is closed.
// -----------------------------------------------------------------------------

// MarketHours answers whether an asset class trades at a given instant.
// Equities use the exchange calendar (holidays included), crypto is always
// open, forex and futures use the Sunday 22:00 to Friday 22:00 UTC session.
type MarketHours struct {
	equities *calendar.Calendar
	nyLoc    *time.Location
}

// -----------------------------------------------------------------------------

func NewMarketHours() *MarketHours {
	mh := &MarketHours{}

	mh.equities = calendar.GetCalendar("xnys")

	nyLoc, err := time.LoadLocation("America/New_York")
	if err != nil {
		nyLoc = time.UTC
	}
	mh.nyLoc = nyLoc

	return mh
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the market for the asset class trades at t.
func (mh *MarketHours) IsOpen(ac models.AssetClass, t time.Time) bool {
	switch ac {
	case models.AssetCrypto:
		return true
	case models.AssetForex, models.AssetFutures:
		return isWeeklySessionOpen(t)
	default:
		return mh.isEquityOpen(t)
	}
}

// -----------------------------------------------------------------------------

func (mh *MarketHours) isEquityOpen(t time.Time) bool {
	if mh.equities != nil {
		return mh.equities.IsOpen(t)
	}

	// Calendar unavailable, fall back to Mon-Fri 09:30-16:00 New York time.
	t = t.In(mh.nyLoc)
	weekday := t.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}
	hour, minute := t.Hour(), t.Minute()
	return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
}

// -----------------------------------------------------------------------------

// isWeeklySessionOpen implements the continuous Sunday 22:00 UTC to
// Friday 22:00 UTC session used by spot forex and most futures.
func isWeeklySessionOpen(t time.Time) bool {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return t.Hour() >= 22
	case time.Friday:
		return t.Hour() < 22
	default:
		return true
	}
}
