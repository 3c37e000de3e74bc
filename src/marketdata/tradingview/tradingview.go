package tradingview

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/marketdata"
	"mcp/src/models"
	"mcp/src/utils"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// TradingView market-data provider. The upstream is a UDF-style REST API, so
// subscriptions are serviced by polling loops rather than a socket.
// -----------------------------------------------------------------------------

const providerID = "tradingview"

type TradingViewProvider struct {
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	baseURL string
	token   string

	statusMu sync.Mutex
	status   models.ConnectionStatus

	subMu sync.Mutex
	subs  map[string]*pollSubscription

	marketHours *utils.MarketHours
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
}

// pollSubscription is one live polling loop. The active flag is re-checked
// after each in-flight fetch returns so a cancelled subscription never
// delivers a late update.
type pollSubscription struct {
	id     string
	req    models.MSubscriptionRequest
	cb     interfaces.MarketDataCallback
	active atomic.Bool
	cancel context.CancelFunc
	lastTS int64
}

// -----------------------------------------------------------------------------

func NewTradingViewProvider(baseURL string, creds models.MProviderCredentials, netMgr interfaces.INetworkManager) *TradingViewProvider {
	ctx, cancel := context.WithCancel(context.Background())
	return &TradingViewProvider{
		Network:     netMgr,
		Logger:      logger.NewLogger("", "TradingViewProvider"),
		baseURL:     baseURL,
		token:       creds.APIKey,
		status:      models.StatusDisconnected,
		subs:        make(map[string]*pollSubscription),
		marketHours: utils.NewMarketHours(),
		ctx:         ctx,
		cancelFunc:  cancel,
	}
}

// -----------------------------------------------------------------------------

func (p *TradingViewProvider) ID() string { return providerID }
func (p *TradingViewProvider) Name() string { return "TradingView" }

func (p *TradingViewProvider) Capabilities() models.MProviderCapabilities {
	return models.MProviderCapabilities{
		AssetClasses:       []models.AssetClass{models.AssetStocks, models.AssetForex, models.AssetCrypto},
		Timeframes:         []string{"1m", "5m", "15m", "1h", "4h", "1d"},
		SubscriptionTypes:  []models.SubscriptionType{models.SubscriptionCandles, models.SubscriptionTicks},
		HistoricalData:     true,
		RateLimitPerMinute: 120,
	}
}

// -----------------------------------------------------------------------------

// Connect validates the token against the server clock endpoint. Calling it
// on an already connected provider is a no-op.
func (p *TradingViewProvider) Connect(ctx context.Context) error {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	if p.status == models.StatusConnected {
		return nil
	}
	p.status = models.StatusConnecting

	// A previous Disconnect cancelled the provider context. Recreate it so
	// new poll loops survive the reconnect.
	if p.ctx.Err() != nil {
		p.ctx, p.cancelFunc = context.WithCancel(context.Background())
	}

	if _, err := p.Network.Get(ctx, p.baseURL+"/time", nil, p.headers()); err != nil {
		p.status = models.StatusDisconnected
		return helpers.NewConnectionError("tradingview handshake failed", err)
	}

	p.status = models.StatusConnected
	p.Logger.Info("Connected to TradingView at %s", p.baseURL)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect cancels every live subscription, waits for the poll loops to
// drain, and resets the connection state.
func (p *TradingViewProvider) Disconnect() error {
	p.subMu.Lock()
	for id, sub := range p.subs {
		sub.active.Store(false)
		sub.cancel()
		delete(p.subs, id)
	}
	p.subMu.Unlock()

	p.statusMu.Lock()
	p.cancelFunc()
	p.status = models.StatusDisconnected
	p.statusMu.Unlock()
	p.wg.Wait()

	p.Logger.Info("Disconnected from TradingView")
	return nil
}

func (p *TradingViewProvider) Status() models.ConnectionStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

// -----------------------------------------------------------------------------

func (p *TradingViewProvider) headers() map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if p.token != "" {
		h["Authorization"] = "Bearer " + p.token
	}
	return h
}

func (p *TradingViewProvider) ensureConnected(ctx context.Context) error {
	if p.Status() == models.StatusConnected {
		return nil
	}
	return p.Connect(ctx)
}

// providerCtx returns the context poll loops derive from. Read under the
// status lock because Connect replaces it after a disconnect.
func (p *TradingViewProvider) providerCtx() context.Context {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.ctx
}

// -----------------------------------------------------------------------------
// Historical data
// -----------------------------------------------------------------------------

// historyResponse is the UDF history payload. Arrays are index-aligned.
type historyResponse struct {
	Status    string    `json:"s"`
	ErrMsg    string    `json:"errmsg"`
	Times     []int64   `json:"t"`
	Opens     []float64 `json:"o"`
	Highs     []float64 `json:"h"`
	Lows      []float64 `json:"l"`
	Closes    []float64 `json:"c"`
	Volumes   []float64 `json:"v"`
	NextTime  int64     `json:"nextTime"`
}

// udfResolution maps a timeframe to the UDF resolution string.
func udfResolution(tf string) (string, error) {
	switch tf {
	case "1m":
		return "1", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "1h":
		return "60", nil
	case "4h":
		return "240", nil
	case "1d":
		return "D", nil
	default:
		return "", helpers.NewCapabilityError("unsupported timeframe: %s", tf)
	}
}

func (p *TradingViewProvider) GetHistoricalCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.MCandle, error) {
	if err := p.ensureConnected(ctx); err != nil {
		return nil, err
	}

	resolution, err := udfResolution(interval)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"symbol":     symbol,
		"resolution": resolution,
		"from":       strconv.FormatInt(from.Unix(), 10),
		"to":         strconv.FormatInt(to.Unix(), 10),
	}

	body, err := p.Network.Get(ctx, p.baseURL+"/history", params, p.headers())
	if err != nil {
		return nil, fmt.Errorf("history request failed for %s: %w", symbol, err)
	}

	return parseHistory(symbol, interval, body)
}

func parseHistory(symbol, interval string, body []byte) ([]models.MCandle, error) {
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("history unmarshal failed: %w", err)
	}

	switch resp.Status {
	case "ok":
	case "no_data":
		return nil, nil
	default:
		return nil, fmt.Errorf("history error for %s: %s", symbol, resp.ErrMsg)
	}

	n := len(resp.Times)
	if len(resp.Opens) != n || len(resp.Highs) != n || len(resp.Lows) != n || len(resp.Closes) != n {
		return nil, fmt.Errorf("history alignment error for %s", symbol)
	}

	candles := make([]models.MCandle, 0, n)
	for i := 0; i < n; i++ {
		var volume float64
		if i < len(resp.Volumes) {
			volume = resp.Volumes[i]
		}
		candles = append(candles, models.MCandle{
			Symbol:    symbol,
			Interval:  interval,
			Timestamp: time.Unix(resp.Times[i], 0).UTC(),
			Open:      resp.Opens[i],
			High:      resp.Highs[i],
			Low:       resp.Lows[i],
			Close:     resp.Closes[i],
			Volume:    volume,
		})
	}
	return candles, nil
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func (p *TradingViewProvider) Subscribe(req models.MSubscriptionRequest, cb interfaces.MarketDataCallback) (string, error) {
	if err := p.ensureConnected(context.Background()); err != nil {
		return "", err
	}
	if !p.Capabilities().SupportsSubscription(req.Type) {
		return "", helpers.NewCapabilityError("tradingview does not support %s subscriptions", req.Type)
	}
	if req.Type == models.SubscriptionCandles && !p.Capabilities().SupportsTimeframe(req.Interval) {
		return "", helpers.NewCapabilityError("tradingview does not support %s candles", req.Interval)
	}

	subCtx, cancel := context.WithCancel(p.providerCtx())
	sub := &pollSubscription{
		id:     uuid.NewString(),
		req:    req,
		cb:     cb,
		cancel: cancel,
	}
	sub.active.Store(true)

	p.subMu.Lock()
	p.subs[sub.id] = sub
	p.subMu.Unlock()

	p.wg.Add(1)
	go p.pollLoop(subCtx, sub)

	p.Logger.Info("Subscribed %s to %s %s (%s)", sub.id, req.Symbol, req.Type, req.Interval)
	return sub.id, nil
}

func (p *TradingViewProvider) Unsubscribe(id string) error {
	p.subMu.Lock()
	sub, exists := p.subs[id]
	if exists {
		delete(p.subs, id)
	}
	p.subMu.Unlock()

	if !exists {
		return helpers.NewNotFoundError("subscription %s not found", id)
	}

	sub.active.Store(false)
	sub.cancel()
	p.Logger.Info("Unsubscribed %s", id)
	return nil
}

// -----------------------------------------------------------------------------

// pollLoop polls upstream on the subscription cadence. The first poll fires
// immediately so the subscriber does not wait a full interval for data.
func (p *TradingViewProvider) pollLoop(ctx context.Context, sub *pollSubscription) {
	defer p.wg.Done()

	interval := utils.PollIntervalForTimeframe(sub.req.Interval)
	if sub.req.Type == models.SubscriptionTicks {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	assetClass := marketdata.InferAssetClass(sub.req.Symbol)

	p.pollOnce(ctx, sub, assetClass)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, sub, assetClass)
		}
	}
}

func (p *TradingViewProvider) pollOnce(ctx context.Context, sub *pollSubscription, assetClass models.AssetClass) {
	if !sub.active.Load() {
		return
	}
	if !p.marketHours.IsOpen(assetClass, time.Now().UTC()) {
		p.Logger.Debug("Market closed for %s, skipping poll", sub.req.Symbol)
		return
	}

	switch sub.req.Type {
	case models.SubscriptionTicks:
		p.pollTick(ctx, sub)
	default:
		p.pollCandles(ctx, sub)
	}
}

func (p *TradingViewProvider) pollCandles(ctx context.Context, sub *pollSubscription) {
	tfDur, err := utils.ParseTimeframe(sub.req.Interval)
	if err != nil {
		tfDur = time.Minute
	}

	now := time.Now().UTC()
	candles, err := p.GetHistoricalCandles(ctx, sub.req.Symbol, sub.req.Interval, now.Add(-3*tfDur), now)
	if err != nil {
		p.Logger.Warning("Poll failed for %s: %v", sub.req.Symbol, err)
		return
	}

	// The subscription may have been cancelled while the fetch was in
	// flight. A late delivery after Unsubscribe returns is a contract
	// violation, so check again before invoking the callback.
	if !sub.active.Load() {
		return
	}

	for i := range candles {
		c := candles[i]
		ts := c.Timestamp.Unix()
		if ts <= sub.lastTS {
			continue
		}
		sub.lastTS = ts
		sub.cb(models.MMarketUpdate{
			Type:       models.SubscriptionCandles,
			Symbol:     sub.req.Symbol,
			ProviderID: providerID,
			Candle:     &c,
			Timestamp:  c.Timestamp,
		})
	}
}

// quoteResponse is the UDF quotes payload for a single symbol.
type quoteResponse struct {
	Status string `json:"s"`
	Data   []struct {
		Status string `json:"s"`
		Name   string `json:"n"`
		Values struct {
			LastPrice float64 `json:"lp"`
			Volume    float64 `json:"volume"`
		} `json:"v"`
	} `json:"d"`
}

func (p *TradingViewProvider) pollTick(ctx context.Context, sub *pollSubscription) {
	params := map[string]string{"symbols": sub.req.Symbol}
	body, err := p.Network.Get(ctx, p.baseURL+"/quotes", params, p.headers())
	if err != nil {
		p.Logger.Warning("Quote poll failed for %s: %v", sub.req.Symbol, err)
		return
	}

	if !sub.active.Load() {
		return
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.Logger.Warning("Quote unmarshal failed for %s: %v", sub.req.Symbol, err)
		return
	}
	if resp.Status != "ok" || len(resp.Data) == 0 {
		return
	}

	now := time.Now().UTC()
	tick := models.MTick{
		Symbol:    sub.req.Symbol,
		Price:     resp.Data[0].Values.LastPrice,
		Volume:    resp.Data[0].Values.Volume,
		Timestamp: now,
	}
	sub.cb(models.MMarketUpdate{
		Type:       models.SubscriptionTicks,
		Symbol:     sub.req.Symbol,
		ProviderID: providerID,
		Tick:       &tick,
		Timestamp:  now,
	})
}

// -----------------------------------------------------------------------------
// Symbol metadata
// -----------------------------------------------------------------------------

type symbolInfoResponse struct {
	Status      string  `json:"s"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	MinMov      float64 `json:"minmov"`
	PriceScale  float64 `json:"pricescale"`
}

func (p *TradingViewProvider) GetSymbolInfo(ctx context.Context, symbol string) (models.MSymbolInfo, error) {
	if err := p.ensureConnected(ctx); err != nil {
		return models.MSymbolInfo{}, err
	}

	body, err := p.Network.Get(ctx, p.baseURL+"/symbols", map[string]string{"symbol": symbol}, p.headers())
	if err != nil {
		return models.MSymbolInfo{}, fmt.Errorf("symbol info request failed for %s: %w", symbol, err)
	}

	var resp symbolInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.MSymbolInfo{}, fmt.Errorf("symbol info unmarshal failed: %w", err)
	}
	if resp.Status == "error" || resp.Name == "" {
		return models.MSymbolInfo{}, helpers.NewNotFoundError("symbol %s not found", symbol)
	}

	tickSize := 0.01
	if resp.PriceScale > 0 && resp.MinMov > 0 {
		tickSize = resp.MinMov / resp.PriceScale
	}

	return models.MSymbolInfo{
		Symbol:      resp.Name,
		Description: resp.Description,
		Category:    marketdata.InferAssetClass(resp.Name),
		TickSize:    tickSize,
	}, nil
}

type searchResult struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func (p *TradingViewProvider) SearchSymbols(ctx context.Context, query string) ([]models.MSymbolInfo, error) {
	if err := p.ensureConnected(ctx); err != nil {
		return nil, err
	}

	body, err := p.Network.Get(ctx, p.baseURL+"/search", map[string]string{"query": query, "limit": "30"}, p.headers())
	if err != nil {
		return nil, fmt.Errorf("symbol search failed for %q: %w", query, err)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("symbol search unmarshal failed: %w", err)
	}

	infos := make([]models.MSymbolInfo, 0, len(results))
	for _, r := range results {
		infos = append(infos, models.MSymbolInfo{
			Symbol:      r.Symbol,
			Description: r.Description,
			Category:    marketdata.InferAssetClass(r.Symbol),
		})
	}
	return infos, nil
}
