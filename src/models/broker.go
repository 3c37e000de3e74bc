package models

import "time"

// -----------------------------------------------------------------------------
// Broker connection state machine
// -----------------------------------------------------------------------------

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// -----------------------------------------------------------------------------

// MBrokerCapabilities advertises what a broker adapter can do, so callers can
// pre-filter brokers before attempting an order the broker cannot fulfill.
type MBrokerCapabilities struct {
	Crypto           bool
	Stocks           bool
	Forex            bool
	Futures          bool
	Options          bool
	StopLoss         bool
	TakeProfit       bool
	FractionalShares bool
}

// SupportsAssetClass reports whether the broker trades the given asset class.
func (c MBrokerCapabilities) SupportsAssetClass(ac AssetClass) bool {
	switch ac {
	case AssetCrypto:
		return c.Crypto
	case AssetStocks:
		return c.Stocks
	case AssetForex:
		return c.Forex
	case AssetFutures:
		return c.Futures
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeStop   OrderType = "stop"
	OrderTypeLimit  OrderType = "limit"
)

// MOrderRequest describes one order to place. StopLoss/TakeProfit, when
// non-zero, are placed as dependent child orders after the parent fills.
type MOrderRequest struct {
	Symbol     string
	Side       string // "buy" or "sell"
	Quantity   float64
	Type       OrderType
	Price      float64 // stop/limit price for child orders, ignored for market
	StopLoss   float64
	TakeProfit float64
}

// -----------------------------------------------------------------------------

// MOrderResult is the broker's answer for a placed order.
type MOrderResult struct {
	OrderID     string
	Symbol      string
	Side        string
	Quantity    float64
	FilledPrice float64
	Status      string
	ChildOrders []string
	CreatedAt   time.Time
}

// -----------------------------------------------------------------------------

// MAccountInfo is the normalized account snapshot across brokers.
type MAccountInfo struct {
	AccountID   string
	Currency    string
	Balance     float64
	Equity      float64
	BuyingPower float64
}

// -----------------------------------------------------------------------------

// MBrokerCredentials is a credential set resolved from the environment.
// An absent set simply skips that adapter's registration.
type MBrokerCredentials struct {
	ID      string
	APIKey  string
	Secret  string
	BaseURL string
}
