package models

import "time"

// -----------------------------------------------------------------------------
// Asset classes
// -----------------------------------------------------------------------------

type AssetClass string

const (
	AssetCrypto  AssetClass = "crypto"
	AssetStocks  AssetClass = "stocks"
	AssetForex   AssetClass = "forex"
	AssetFutures AssetClass = "futures"
)

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

type SubscriptionType string

const (
	SubscriptionCandles   SubscriptionType = "candles"
	SubscriptionTicks     SubscriptionType = "ticks"
	SubscriptionOrderBook SubscriptionType = "orderbook"
)

// MSubscriptionRequest asks a provider for recurring data delivery.
type MSubscriptionRequest struct {
	Type     SubscriptionType
	Symbol   string
	Interval string // candle timeframe, e.g. "1m", "1h", "1d"
	Depth    int    // order book depth
}

// -----------------------------------------------------------------------------

// MProviderCapabilities advertises what a market-data provider supports.
type MProviderCapabilities struct {
	AssetClasses       []AssetClass
	Timeframes         []string
	SubscriptionTypes  []SubscriptionType
	HistoricalData     bool
	RateLimitPerMinute int
}

func (c MProviderCapabilities) SupportsAssetClass(ac AssetClass) bool {
	for _, a := range c.AssetClasses {
		if a == ac {
			return true
		}
	}
	return false
}

func (c MProviderCapabilities) SupportsTimeframe(tf string) bool {
	for _, t := range c.Timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

func (c MProviderCapabilities) SupportsSubscription(st SubscriptionType) bool {
	for _, s := range c.SubscriptionTypes {
		if s == st {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Market data points
// -----------------------------------------------------------------------------

type MCandle struct {
	Symbol    string
	Interval  string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

type MTick struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

type MOrderBookLevel struct {
	Price float64
	Size  float64
}

type MOrderBook struct {
	Symbol    string
	Bids      []MOrderBookLevel
	Asks      []MOrderBookLevel
	Timestamp time.Time
}

// -----------------------------------------------------------------------------

// MMarketUpdate is one delivery on a subscription. Exactly one of Candle,
// Tick, Book is set, matching Type.
type MMarketUpdate struct {
	Type       SubscriptionType
	Symbol     string
	ProviderID string
	Candle     *MCandle
	Tick       *MTick
	Book       *MOrderBook
	Timestamp  time.Time
}

// -----------------------------------------------------------------------------

// MSymbolInfo is static instrument metadata, cached for the process lifetime.
type MSymbolInfo struct {
	Symbol      string
	Description string
	Category    AssetClass
	TickSize    float64
	MinQuantity float64
	MaxQuantity float64
}

// -----------------------------------------------------------------------------

// MProviderCredentials is a provider credential set resolved from the
// environment.
type MProviderCredentials struct {
	ID           string
	APIKey       string
	ClientID     string
	ClientSecret string
	BaseURL      string
}
