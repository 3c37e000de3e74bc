package cmegroup

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
	"mcp/src/models"
	"mcp/src/utils"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// CME Group market-data provider for futures. Authentication is OAuth client
// credentials with a background refresh so requests never carry a token that
// is about to expire.
// -----------------------------------------------------------------------------

const providerID = "cmegroup"

// refreshMargin is how long before expiry the token gets renewed.
const refreshMargin = 5 * time.Minute

type CMEGroupProvider struct {
	Network interfaces.INetworkManager
	Logger  *logger.Logger

	baseURL      string
	clientID     string
	clientSecret string

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	statusMu sync.Mutex
	status   models.ConnectionStatus

	subMu sync.Mutex
	subs  map[string]*pollSubscription

	marketHours *utils.MarketHours
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
}

type pollSubscription struct {
	id     string
	req    models.MSubscriptionRequest
	cb     interfaces.MarketDataCallback
	active atomic.Bool
	cancel context.CancelFunc
	lastTS int64
}

// -----------------------------------------------------------------------------

func NewCMEGroupProvider(baseURL string, creds models.MProviderCredentials, netMgr interfaces.INetworkManager) *CMEGroupProvider {
	ctx, cancel := context.WithCancel(context.Background())
	return &CMEGroupProvider{
		Network:      netMgr,
		Logger:       logger.NewLogger("", "CMEGroupProvider"),
		baseURL:      baseURL,
		clientID:     creds.ClientID,
		clientSecret: creds.ClientSecret,
		status:       models.StatusDisconnected,
		subs:         make(map[string]*pollSubscription),
		marketHours:  utils.NewMarketHours(),
		ctx:          ctx,
		cancelFunc:   cancel,
	}
}

// -----------------------------------------------------------------------------

func (p *CMEGroupProvider) ID() string { return providerID }
func (p *CMEGroupProvider) Name() string { return "CME Group" }

func (p *CMEGroupProvider) Capabilities() models.MProviderCapabilities {
	return models.MProviderCapabilities{
		AssetClasses:       []models.AssetClass{models.AssetFutures},
		Timeframes:         []string{"1m", "5m", "15m", "1h", "1d"},
		SubscriptionTypes:  []models.SubscriptionType{models.SubscriptionCandles},
		HistoricalData:     true,
		RateLimitPerMinute: 60,
	}
}

// -----------------------------------------------------------------------------

// Connect obtains the initial OAuth token and starts the refresh loop.
// Already connected providers return immediately.
func (p *CMEGroupProvider) Connect(ctx context.Context) error {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	if p.status == models.StatusConnected {
		return nil
	}
	p.status = models.StatusConnecting

	// A previous Disconnect cancelled the provider context. Recreate it so
	// the refresh loop and new poll loops survive the reconnect.
	if p.ctx.Err() != nil {
		p.ctx, p.cancelFunc = context.WithCancel(context.Background())
	}

	if err := p.fetchToken(ctx); err != nil {
		p.status = models.StatusDisconnected
		return helpers.NewConnectionError("cme oauth handshake failed", err)
	}

	p.status = models.StatusConnected
	p.wg.Add(1)
	go p.refreshLoop(p.ctx)

	p.Logger.Info("Connected to CME Group at %s", p.baseURL)
	return nil
}

// -----------------------------------------------------------------------------

func (p *CMEGroupProvider) Disconnect() error {
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

	p.tokenMu.Lock()
	p.accessToken = ""
	p.tokenExpiry = time.Time{}
	p.tokenMu.Unlock()

	p.Logger.Info("Disconnected from CME Group")
	return nil
}

func (p *CMEGroupProvider) Status() models.ConnectionStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.status
}

// -----------------------------------------------------------------------------
// OAuth
// -----------------------------------------------------------------------------

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (p *CMEGroupProvider) fetchToken(ctx context.Context) error {
	body, err := p.Network.PostJSON(ctx, p.baseURL+"/oauth/token", map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     p.clientID,
		"client_secret": p.clientSecret,
	}, nil)
	if err != nil {
		return err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("token unmarshal failed: %w", err)
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("empty access token in oauth response")
	}

	p.tokenMu.Lock()
	p.accessToken = resp.AccessToken
	p.tokenExpiry = time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second)
	p.tokenMu.Unlock()

	p.Logger.Debug("OAuth token refreshed, expires in %ds", resp.ExpiresIn)
	return nil
}

// refreshLoop renews the token when less than refreshMargin remains before
// expiry. Failed renewals retry on a short cadence while the old token is
// still valid.
func (p *CMEGroupProvider) refreshLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tokenMu.Lock()
			expiry := p.tokenExpiry
			p.tokenMu.Unlock()

			if !needsRefresh(expiry) {
				continue
			}
			if err := p.fetchToken(ctx); err != nil {
				p.Logger.Warning("OAuth token refresh failed: %v", err)
			}
		}
	}
}

// needsRefresh reports whether the token is inside the renewal margin.
func needsRefresh(expiry time.Time) bool {
	return time.Until(expiry) <= refreshMargin
}

func (p *CMEGroupProvider) headers() map[string]string {
	p.tokenMu.Lock()
	token := p.accessToken
	p.tokenMu.Unlock()

	h := map[string]string{"Accept": "application/json"}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

func (p *CMEGroupProvider) ensureConnected(ctx context.Context) error {
	if p.Status() == models.StatusConnected {
		return nil
	}
	return p.Connect(ctx)
}

// providerCtx returns the context poll loops derive from. Read under the
// status lock because Connect replaces it after a disconnect.
func (p *CMEGroupProvider) providerCtx() context.Context {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.ctx
}

// -----------------------------------------------------------------------------
// Historical data
// -----------------------------------------------------------------------------

type candleRow struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type candlesResponse struct {
	Symbol  string      `json:"symbol"`
	Candles []candleRow `json:"candles"`
}

func (p *CMEGroupProvider) GetHistoricalCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.MCandle, error) {
	if err := p.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if !p.Capabilities().SupportsTimeframe(interval) {
		return nil, helpers.NewCapabilityError("cme does not support %s candles", interval)
	}

	params := map[string]string{
		"symbol":   symbol,
		"interval": interval,
		"from":     strconv.FormatInt(from.Unix(), 10),
		"to":       strconv.FormatInt(to.Unix(), 10),
	}

	body, err := p.Network.Get(ctx, p.baseURL+"/v1/candles", params, p.headers())
	if err != nil {
		return nil, fmt.Errorf("candles request failed for %s: %w", symbol, err)
	}

	var resp candlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("candles unmarshal failed: %w", err)
	}

	candles := make([]models.MCandle, 0, len(resp.Candles))
	for _, row := range resp.Candles {
		candles = append(candles, models.MCandle{
			Symbol:    symbol,
			Interval:  interval,
			Timestamp: time.Unix(row.Timestamp, 0).UTC(),
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	return candles, nil
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func (p *CMEGroupProvider) Subscribe(req models.MSubscriptionRequest, cb interfaces.MarketDataCallback) (string, error) {
	if err := p.ensureConnected(context.Background()); err != nil {
		return "", err
	}
	if req.Type != models.SubscriptionCandles {
		return "", helpers.NewCapabilityError("cme does not support %s subscriptions", req.Type)
	}
	if !p.Capabilities().SupportsTimeframe(req.Interval) {
		return "", helpers.NewCapabilityError("cme does not support %s candles", req.Interval)
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

	p.Logger.Info("Subscribed %s to %s candles (%s)", sub.id, req.Symbol, req.Interval)
	return sub.id, nil
}

func (p *CMEGroupProvider) Unsubscribe(id string) error {
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

func (p *CMEGroupProvider) pollLoop(ctx context.Context, sub *pollSubscription) {
	defer p.wg.Done()

	ticker := time.NewTicker(utils.PollIntervalForTimeframe(sub.req.Interval))
	defer ticker.Stop()

	p.pollOnce(ctx, sub)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx, sub)
		}
	}
}

func (p *CMEGroupProvider) pollOnce(ctx context.Context, sub *pollSubscription) {
	if !sub.active.Load() {
		return
	}
	if !p.marketHours.IsOpen(models.AssetFutures, time.Now().UTC()) {
		p.Logger.Debug("Futures session closed, skipping poll for %s", sub.req.Symbol)
		return
	}

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

	// Re-check after the in-flight fetch so a cancelled subscription does
	// not deliver a late update.
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

// -----------------------------------------------------------------------------
// Symbol metadata
// -----------------------------------------------------------------------------

type productInfo struct {
	Symbol       string  `json:"symbol"`
	Description  string  `json:"description"`
	TickSize     float64 `json:"tickSize"`
	ContractSize float64 `json:"contractSize"`
}

func (p *CMEGroupProvider) GetSymbolInfo(ctx context.Context, symbol string) (models.MSymbolInfo, error) {
	if err := p.ensureConnected(ctx); err != nil {
		return models.MSymbolInfo{}, err
	}

	body, err := p.Network.Get(ctx, p.baseURL+"/v1/products/"+symbol, nil, p.headers())
	if err != nil {
		if helpers.IsUpstreamError(err) {
			return models.MSymbolInfo{}, helpers.NewNotFoundError("symbol %s not found", symbol)
		}
		return models.MSymbolInfo{}, fmt.Errorf("product request failed for %s: %w", symbol, err)
	}

	var info productInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return models.MSymbolInfo{}, fmt.Errorf("product unmarshal failed: %w", err)
	}
	if info.Symbol == "" {
		return models.MSymbolInfo{}, helpers.NewNotFoundError("symbol %s not found", symbol)
	}

	return models.MSymbolInfo{
		Symbol:      info.Symbol,
		Description: info.Description,
		Category:    models.AssetFutures,
		TickSize:    info.TickSize,
		MinQuantity: 1,
	}, nil
}

func (p *CMEGroupProvider) SearchSymbols(ctx context.Context, query string) ([]models.MSymbolInfo, error) {
	if err := p.ensureConnected(ctx); err != nil {
		return nil, err
	}

	body, err := p.Network.Get(ctx, p.baseURL+"/v1/products", map[string]string{"query": query}, p.headers())
	if err != nil {
		return nil, fmt.Errorf("product search failed for %q: %w", query, err)
	}

	var products []productInfo
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("product search unmarshal failed: %w", err)
	}

	infos := make([]models.MSymbolInfo, 0, len(products))
	for _, prod := range products {
		infos = append(infos, models.MSymbolInfo{
			Symbol:      prod.Symbol,
			Description: prod.Description,
			Category:    models.AssetFutures,
			TickSize:    prod.TickSize,
			MinQuantity: 1,
		})
	}
	return infos, nil
}
