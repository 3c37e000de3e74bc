package ninjatrader

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// NinjaTrader broker adapter for futures. Talks to a local gateway process
// rather than a hosted API, so connection failures usually mean the desktop
// platform is not running.
// -----------------------------------------------------------------------------

const brokerID = "ninjatrader"

type NinjaTraderBroker struct {
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	baseURL string
	apiKey  string

	statusMu sync.Mutex
	status   models.ConnectionStatus
}

// -----------------------------------------------------------------------------

func NewNinjaTraderBroker(baseURL string, creds models.MBrokerCredentials, netMgr interfaces.INetworkManager) *NinjaTraderBroker {
	return &NinjaTraderBroker{
		Network: netMgr,
		Logger:  logger.NewLogger("", "NinjaTraderBroker"),
		baseURL: baseURL,
		apiKey:  creds.APIKey,
		status:  models.StatusDisconnected,
	}
}

// -----------------------------------------------------------------------------

func (b *NinjaTraderBroker) ID() string { return brokerID }
func (b *NinjaTraderBroker) Name() string { return "NinjaTrader" }

func (b *NinjaTraderBroker) Capabilities() models.MBrokerCapabilities {
	return models.MBrokerCapabilities{
		Futures:    true,
		StopLoss:   true,
		TakeProfit: true,
	}
}

// -----------------------------------------------------------------------------

func (b *NinjaTraderBroker) headers() map[string]string {
	return map[string]string{
		"X-Api-Key": b.apiKey,
		"Accept":    "application/json",
	}
}

// -----------------------------------------------------------------------------

func (b *NinjaTraderBroker) Connect(ctx context.Context) error {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	if b.status == models.StatusConnected {
		return nil
	}
	b.status = models.StatusConnecting

	if _, err := b.Network.Get(ctx, b.baseURL+"/gateway/ping", nil, b.headers()); err != nil {
		b.status = models.StatusDisconnected
		return helpers.NewConnectionError("ninjatrader gateway unreachable", err)
	}

	b.status = models.StatusConnected
	b.Logger.Info("Connected to NinjaTrader gateway at %s", b.baseURL)
	return nil
}

func (b *NinjaTraderBroker) Disconnect() error {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	b.status = models.StatusDisconnected
	b.Logger.Info("Disconnected from NinjaTrader gateway")
	return nil
}

func (b *NinjaTraderBroker) Status() models.ConnectionStatus {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status
}

func (b *NinjaTraderBroker) ensureConnected(ctx context.Context) error {
	if b.Status() == models.StatusConnected {
		return nil
	}
	return b.Connect(ctx)
}

// -----------------------------------------------------------------------------
// Account
// -----------------------------------------------------------------------------

type accountResponse struct {
	Account      string  `json:"account"`
	Currency     string  `json:"currency"`
	CashValue    float64 `json:"cashValue"`
	NetLiq       float64 `json:"netLiquidation"`
	ExcessMargin float64 `json:"excessIntradayMargin"`
}

func (b *NinjaTraderBroker) GetAccountInfo(ctx context.Context) (models.MAccountInfo, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return models.MAccountInfo{}, err
	}

	body, err := b.Network.Get(ctx, b.baseURL+"/gateway/account", nil, b.headers())
	if err != nil {
		return models.MAccountInfo{}, fmt.Errorf("account request failed: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MAccountInfo{}, fmt.Errorf("account unmarshal failed: %w", err)
	}

	return models.MAccountInfo{
		AccountID:   resp.Account,
		Currency:    resp.Currency,
		Balance:     resp.CashValue,
		Equity:      resp.NetLiq,
		BuyingPower: resp.ExcessMargin,
	}, nil
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

type orderRequest struct {
	Instrument string  `json:"instrument"`
	Action     string  `json:"action"` // "BUY" or "SELL"
	Quantity   int     `json:"quantity"`
	OrderType  string  `json:"orderType"`
	Price      float64 `json:"price,omitempty"`
}

type orderResponse struct {
	OrderID    string  `json:"orderId"`
	Instrument string  `json:"instrument"`
	Action     string  `json:"action"`
	Quantity   int     `json:"quantity"`
	AvgPrice   float64 `json:"avgFillPrice"`
	State      string  `json:"state"`
}

// ntOrderType maps the order type to NinjaTrader's vocabulary.
func ntOrderType(t models.OrderType) string {
	switch t {
	case models.OrderTypeStop:
		return "STOPMARKET"
	case models.OrderTypeLimit:
		return "LIMIT"
	default:
		return "MARKET"
	}
}

func ntAction(side string) string {
	if side == "sell" {
		return "SELL"
	}
	return "BUY"
}

func (b *NinjaTraderBroker) ExecuteMarketOrder(ctx context.Context, req models.MOrderRequest) (models.MOrderResult, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return models.MOrderResult{}, err
	}

	// Futures contracts are whole units only.
	qty := int(req.Quantity)
	if qty <= 0 || float64(qty) != req.Quantity {
		return models.MOrderResult{}, helpers.NewCapabilityError("ninjatrader requires a whole contract quantity, got %v", req.Quantity)
	}

	payload := orderRequest{
		Instrument: req.Symbol,
		Action:     ntAction(req.Side),
		Quantity:   qty,
		OrderType:  ntOrderType(req.Type),
	}
	if req.Type == models.OrderTypeLimit || req.Type == models.OrderTypeStop {
		payload.Price = req.Price
	}

	body, err := b.Network.PostJSONOnce(ctx, b.baseURL+"/gateway/orders", payload, b.headers())
	if err != nil {
		return models.MOrderResult{}, fmt.Errorf("order request failed for %s: %w", req.Symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MOrderResult{}, fmt.Errorf("order unmarshal failed: %w", err)
	}

	return models.MOrderResult{
		OrderID:     resp.OrderID,
		Symbol:      resp.Instrument,
		Side:        req.Side,
		Quantity:    float64(resp.Quantity),
		FilledPrice: resp.AvgPrice,
		Status:      resp.State,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
