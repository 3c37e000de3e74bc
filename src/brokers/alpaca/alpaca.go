package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// Alpaca broker adapter. Paper and live trading share the same REST surface,
// only the base URL differs.
// -----------------------------------------------------------------------------

const brokerID = "alpaca"

type AlpacaBroker struct {
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	baseURL   string
	apiKey    string
	apiSecret string

	statusMu sync.Mutex
	status   models.ConnectionStatus
}

// -----------------------------------------------------------------------------

func NewAlpacaBroker(baseURL string, creds models.MBrokerCredentials, netMgr interfaces.INetworkManager) *AlpacaBroker {
	return &AlpacaBroker{
		Network:   netMgr,
		Logger:    logger.NewLogger("", "AlpacaBroker"),
		baseURL:   baseURL,
		apiKey:    creds.APIKey,
		apiSecret: creds.Secret,
		status:    models.StatusDisconnected,
	}
}

// -----------------------------------------------------------------------------

func (b *AlpacaBroker) ID() string { return brokerID }
func (b *AlpacaBroker) Name() string { return "Alpaca" }

func (b *AlpacaBroker) Capabilities() models.MBrokerCapabilities {
	return models.MBrokerCapabilities{
		Crypto:           true,
		Stocks:           true,
		StopLoss:         true,
		TakeProfit:       true,
		FractionalShares: true,
	}
}

// -----------------------------------------------------------------------------

func (b *AlpacaBroker) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     b.apiKey,
		"APCA-API-SECRET-KEY": b.apiSecret,
		"Accept":              "application/json",
	}
}

// -----------------------------------------------------------------------------

// Connect validates the credentials against the account endpoint. Already
// connected adapters return immediately without a second handshake.
func (b *AlpacaBroker) Connect(ctx context.Context) error {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	if b.status == models.StatusConnected {
		return nil
	}
	b.status = models.StatusConnecting

	if _, err := b.Network.Get(ctx, b.baseURL+"/v2/account", nil, b.headers()); err != nil {
		b.status = models.StatusDisconnected
		return helpers.NewConnectionError("alpaca handshake failed", err)
	}

	b.status = models.StatusConnected
	b.Logger.Info("Connected to Alpaca at %s", b.baseURL)
	return nil
}

func (b *AlpacaBroker) Disconnect() error {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	b.status = models.StatusDisconnected
	b.Logger.Info("Disconnected from Alpaca")
	return nil
}

func (b *AlpacaBroker) Status() models.ConnectionStatus {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	return b.status
}

func (b *AlpacaBroker) ensureConnected(ctx context.Context) error {
	if b.Status() == models.StatusConnected {
		return nil
	}
	return b.Connect(ctx)
}

// -----------------------------------------------------------------------------
// Account
// -----------------------------------------------------------------------------

// accountResponse carries Alpaca's string-encoded decimals.
type accountResponse struct {
	AccountNumber string `json:"account_number"`
	Currency      string `json:"currency"`
	Cash          string `json:"cash"`
	Equity        string `json:"equity"`
	BuyingPower   string `json:"buying_power"`
}

func (b *AlpacaBroker) GetAccountInfo(ctx context.Context) (models.MAccountInfo, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return models.MAccountInfo{}, err
	}

	body, err := b.Network.Get(ctx, b.baseURL+"/v2/account", nil, b.headers())
	if err != nil {
		return models.MAccountInfo{}, fmt.Errorf("account request failed: %w", err)
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MAccountInfo{}, fmt.Errorf("account unmarshal failed: %w", err)
	}

	return models.MAccountInfo{
		AccountID:   resp.AccountNumber,
		Currency:    resp.Currency,
		Balance:     parseDecimal(resp.Cash),
		Equity:      parseDecimal(resp.Equity),
		BuyingPower: parseDecimal(resp.BuyingPower),
	}, nil
}

func parseDecimal(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

type orderRequest struct {
	Symbol      string `json:"symbol"`
	Qty         string `json:"qty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
	LimitPrice  string `json:"limit_price,omitempty"`
	StopPrice   string `json:"stop_price,omitempty"`
}

type orderResponse struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	Side           string `json:"side"`
	Status         string `json:"status"`
	FilledAvgPrice string `json:"filled_avg_price"`
	CreatedAt      string `json:"created_at"`
}

func (b *AlpacaBroker) ExecuteMarketOrder(ctx context.Context, req models.MOrderRequest) (models.MOrderResult, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return models.MOrderResult{}, err
	}

	payload := orderRequest{
		Symbol:      req.Symbol,
		Qty:         strconv.FormatFloat(req.Quantity, 'f', -1, 64),
		Side:        req.Side,
		Type:        string(req.Type),
		TimeInForce: "gtc",
	}
	switch req.Type {
	case models.OrderTypeLimit:
		payload.Type = "limit"
		payload.LimitPrice = strconv.FormatFloat(req.Price, 'f', -1, 64)
	case models.OrderTypeStop:
		payload.Type = "stop"
		payload.StopPrice = strconv.FormatFloat(req.Price, 'f', -1, 64)
	default:
		payload.Type = "market"
		payload.TimeInForce = "day"
	}

	body, err := b.Network.PostJSONOnce(ctx, b.baseURL+"/v2/orders", payload, b.headers())
	if err != nil {
		return models.MOrderResult{}, fmt.Errorf("order request failed for %s: %w", req.Symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MOrderResult{}, fmt.Errorf("order unmarshal failed: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339, resp.CreatedAt)
	return models.MOrderResult{
		OrderID:     resp.ID,
		Symbol:      resp.Symbol,
		Side:        resp.Side,
		Quantity:    parseDecimal(resp.Qty),
		FilledPrice: parseDecimal(resp.FilledAvgPrice),
		Status:      resp.Status,
		CreatedAt:   createdAt,
	}, nil
}
