package interfaces

import (
	"context"
	"time"

	"mcp/src/models"
)

// -----------------------------------------------------------------------------

// MarketDataCallback receives one update per completed poll on a
// subscription. Deliveries for a given subscription are chronological.
type MarketDataCallback func(update models.MMarketUpdate)

// -----------------------------------------------------------------------------
// IMarketDataProvider is the common contract implemented by every
// market-data adapter (TradingView, CME Group, ...).
// -----------------------------------------------------------------------------

type IMarketDataProvider interface {

	// ID returns the unique provider identifier used by the registry.
	ID() string

	// -----------------------------------------------------------------------------

	// Name returns the human-readable adapter name.
	Name() string

	// -----------------------------------------------------------------------------

	// Connect prepares the provider (OAuth handshake, token refresh loop).
	// Idempotent.
	Connect(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Disconnect cancels all live subscriptions, then releases credentials.
	Disconnect() error

	// -----------------------------------------------------------------------------

	// Capabilities advertises supported asset classes, timeframes,
	// subscription types and the provider rate limit.
	Capabilities() models.MProviderCapabilities

	// -----------------------------------------------------------------------------

	// GetHistoricalCandles fetches candles for [from, to].
	GetHistoricalCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// Subscribe starts recurring delivery and returns the provider-level
	// subscription id. The callback must not be invoked after Unsubscribe,
	// including for polls already in flight at cancellation time.
	Subscribe(req models.MSubscriptionRequest, cb MarketDataCallback) (string, error)

	// -----------------------------------------------------------------------------

	// Unsubscribe stops delivery for a provider-level subscription id.
	Unsubscribe(id string) error

	// -----------------------------------------------------------------------------

	// GetSymbolInfo fetches static instrument metadata.
	GetSymbolInfo(ctx context.Context, symbol string) (models.MSymbolInfo, error)

	// -----------------------------------------------------------------------------

	// SearchSymbols looks up instruments matching the query.
	SearchSymbols(ctx context.Context, query string) ([]models.MSymbolInfo, error)
}
