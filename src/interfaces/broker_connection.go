package interfaces

import (
	"context"

	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// IBrokerConnection is the common contract implemented by every broker
// adapter (Alpaca, TradeHybrid, NinjaTrader, ...).
// -----------------------------------------------------------------------------

type IBrokerConnection interface {

	// ID returns the unique broker identifier used by the registry.
	ID() string

	// -----------------------------------------------------------------------------

	// Name returns the human-readable adapter name.
	Name() string

	// -----------------------------------------------------------------------------

	// Connect establishes the broker session. Calling Connect on an already
	// connected adapter is a no-op: the handshake is not re-issued.
	Connect(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Disconnect tears down the session and releases credentials.
	Disconnect() error

	// -----------------------------------------------------------------------------

	// Status reports the connection state machine position.
	Status() models.ConnectionStatus

	// -----------------------------------------------------------------------------

	// Capabilities advertises what this broker can trade and which order
	// features it supports.
	Capabilities() models.MBrokerCapabilities

	// -----------------------------------------------------------------------------

	// GetAccountInfo returns the account snapshot, lazily connecting first
	// if needed.
	GetAccountInfo(ctx context.Context) (models.MAccountInfo, error)

	// -----------------------------------------------------------------------------

	// ExecuteMarketOrder places one order, lazily connecting first if
	// needed. Order execution is never retried by callers.
	ExecuteMarketOrder(ctx context.Context, req models.MOrderRequest) (models.MOrderResult, error)
}
