package tradehybrid

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
// TradeHybrid broker adapter. Bearer-token REST API covering crypto, stocks
// and forex.
// -----------------------------------------------------------------------------

const brokerID = "tradehybrid"

type TradeHybridBroker struct {
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	baseURL string
	token   string

	statusMu sync.Mutex
	status   models.ConnectionStatus
}

// -----------------------------------------------------------------------------

func NewTradeHybridBroker(baseURL string, creds models.MBrokerCredentials, netMgr interfaces.INetworkManager) *TradeHybridBroker {
	return &TradeHybridBroker{
		Network: netMgr,
		Logger:  logger.NewLogger("", "TradeHybridBroker"),
		baseURL: baseURL,
		token:   creds.APIKey,
		status:  models.StatusDisconnected,
	}
}

// -----------------------------------------------------------------------------

func (b *TradeHybridBroker) ID() string { return brokerID }
func (b *TradeHybridBroker) Name() string { return "TradeHybrid" }

func (b *TradeHybridBroker) Capabilities() models.MBrokerCapabilities {
	return models.MBrokerCapabilities{
		Crypto:           true,
		Stocks:           true,
		Forex:            true,
		StopLoss:         true,
		TakeProfit:       true,
		FractionalShares: true,
	}
}

// -----------------------------------------------------------------------------

func (b *TradeHybridBroker) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + b.token,
		"Accept":        "application/json",
	}
}

// -----------------------------------------------------------------------------

func (b *TradeHybridBroker) Connect(ctx context.Context) error {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	if b.status == models.StatusConnected {
		return nil
	}
	b.status = models.StatusConnecting

	if _, err := b.Network.Get(ctx, b.baseURL+"/api/v1/me", nil, b.headers()); err != nil {
		b.status = models.StatusDisconnected
		return helpers.NewConnectionError("tradehybrid handshake failed", err)
	}

	b.status = models.StatusConnected
	b.Logger.Info("Connected to TradeHybrid at %s", b.baseURL)
	return nil
}

func (b *TradeHybridBroker) Disconnect() error {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	b.status = models.StatusDisconnected
	b.Logger.Info("Disconnected from TradeHybrid")
	return nil
}

func (b *TradeHybridBroker) Status() models.ConnectionStatus {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status
}

func (b *TradeHybridBroker) ensureConnected(ctx context.Context) error {
	if b.Status() == models.StatusConnected {
		return nil
	}
	return b.Connect(ctx)
}

// -----------------------------------------------------------------------------
// Account
// -----------------------------------------------------------------------------

type accountResponse struct {
	AccountID   string  `json:"accountId"`
	Currency    string  `json:"currency"`
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buyingPower"`
}

func (b *TradeHybridBroker) GetAccountInfo(ctx context.Context) (models.MAccountInfo, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return models.MAccountInfo{}, err
	}

	body, err := b.Network.Get(ctx, b.baseURL+"/api/v1/account", nil, b.headers())
	if err != nil {
		return models.MAccountInfo{}, fmt.Errorf("account request failed: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MAccountInfo{}, fmt.Errorf("account unmarshal failed: %w", err)
	}

	return models.MAccountInfo{
		AccountID:   resp.AccountID,
		Currency:    resp.Currency,
		Balance:     resp.Balance,
		Equity:      resp.Equity,
		BuyingPower: resp.BuyingPower,
	}, nil
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

type orderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Type     string  `json:"type"`
	Price    float64 `json:"price,omitempty"`
}

type orderResponse struct {
	OrderID     string  `json:"orderId"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	FilledPrice float64 `json:"filledPrice"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"createdAt"`
}

func (b *TradeHybridBroker) ExecuteMarketOrder(ctx context.Context, req models.MOrderRequest) (models.MOrderResult, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return models.MOrderResult{}, err
	}

	payload := orderRequest{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Type:     string(req.Type),
	}
	if req.Type == models.OrderTypeLimit || req.Type == models.OrderTypeStop {
		payload.Price = req.Price
	}

	body, err := b.Network.PostJSONOnce(ctx, b.baseURL+"/api/v1/orders", payload, b.headers())
	if err != nil {
		return models.MOrderResult{}, fmt.Errorf("order request failed for %s: %w", req.Symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MOrderResult{}, fmt.Errorf("order unmarshal failed: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339, resp.CreatedAt)
	return models.MOrderResult{
		OrderID:     resp.OrderID,
		Symbol:      resp.Symbol,
		Side:        resp.Side,
		Quantity:    resp.Quantity,
		FilledPrice: resp.FilledPrice,
		Status:      resp.Status,
		CreatedAt:   createdAt,
	}, nil
}
