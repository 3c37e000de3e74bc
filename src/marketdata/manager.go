package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Manager is the registry + facade over market-data providers. It selects a
// provider by asset class and capability when the caller names none, and
// falls back across providers on failure.
// -----------------------------------------------------------------------------

type Manager struct {
	Logger *logger.Logger

	mu        sync.RWMutex
	providers map[string]interfaces.IMarketDataProvider
	order     []string // registration order, the stable sort baseline

	subMu sync.Mutex
	subs  map[string]routedSubscription

	infoMu     sync.RWMutex
	symbolInfo map[string]models.MSymbolInfo
}

// routedSubscription maps a manager-level subscription id to the adapter
// that services it.
type routedSubscription struct {
	ProviderID    string
	ProviderSubID string
}

// -----------------------------------------------------------------------------

func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		Logger:     log,
		providers:  make(map[string]interfaces.IMarketDataProvider),
		subs:       make(map[string]routedSubscription),
		symbolInfo: make(map[string]models.MSymbolInfo),
	}
}

// -----------------------------------------------------------------------------

// RegisterProvider adds a provider. Fails if the id exists.
func (m *Manager) RegisterProvider(p interfaces.IMarketDataProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := p.ID()
	if _, exists := m.providers[id]; exists {
		return fmt.Errorf("provider %s already exists", id)
	}
	m.providers[id] = p
	m.order = append(m.order, id)
	m.Logger.Info("Registered market-data provider: %s", id)
	return nil
}

// -----------------------------------------------------------------------------

// GetProvider retrieves a provider by id.
func (m *Manager) GetProvider(id string) (interfaces.IMarketDataProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.providers[id]
	if !exists {
		return nil, helpers.NewNotFoundError("provider %s not found", id)
	}
	return p, nil
}

// -----------------------------------------------------------------------------

// GetAllProviders returns a snapshot in registration order, so in-progress
// iteration is never broken by a runtime registration.
func (m *Manager) GetAllProviders() []interfaces.IMarketDataProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.IMarketDataProvider, 0, len(m.order))
	for _, id := range m.order {
		list = append(list, m.providers[id])
	}
	return list
}

// -----------------------------------------------------------------------------

// requirement describes what a request needs from a provider.
type requirement struct {
	Subscription models.SubscriptionType
	Timeframe    string
	Historical   bool
}

// selectProviders filters to capable providers and sorts candidates whose
// supported asset classes include the inferred class first. The sort is
// stable: registration order is preserved otherwise.
func (m *Manager) selectProviders(symbol string, req requirement) []interfaces.IMarketDataProvider {
	assetClass := InferAssetClass(symbol)

	var candidates []interfaces.IMarketDataProvider
	for _, p := range m.GetAllProviders() {
		caps := p.Capabilities()
		if req.Historical && !caps.HistoricalData {
			continue
		}
		if req.Subscription != "" && !caps.SupportsSubscription(req.Subscription) {
			continue
		}
		if req.Timeframe != "" && !caps.SupportsTimeframe(req.Timeframe) {
			continue
		}
		candidates = append(candidates, p)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iMatch := candidates[i].Capabilities().SupportsAssetClass(assetClass)
		jMatch := candidates[j].Capabilities().SupportsAssetClass(assetClass)
		return iMatch && !jMatch
	})

	return candidates
}

// -----------------------------------------------------------------------------

// GetHistoricalCandles proxies to one provider. With an explicit providerID
// the request goes only there; otherwise candidates are tried in selection
// order and the first success wins (no merging across providers).
func (m *Manager) GetHistoricalCandles(ctx context.Context, symbol, interval string, from, to time.Time, providerID string) ([]models.MCandle, error) {
	if providerID != "" {
		p, err := m.GetProvider(providerID)
		if err != nil {
			return nil, err
		}
		caps := p.Capabilities()
		if !caps.HistoricalData || !caps.SupportsTimeframe(interval) {
			return nil, helpers.NewCapabilityError("provider %s does not support %s candles", providerID, interval)
		}
		return p.GetHistoricalCandles(ctx, symbol, interval, from, to)
	}

	candidates := m.selectProviders(symbol, requirement{Timeframe: interval, Historical: true})
	var lastErr error

	for _, p := range candidates {
		candles, err := p.GetHistoricalCandles(ctx, symbol, interval, from, to)
		if err != nil {
			m.Logger.Warning("Provider %s failed for %s %s candles, trying next: %v", p.ID(), symbol, interval, err)
			lastErr = err
			continue
		}
		return candles, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no provider available for %s %s candles: %w", symbol, interval, lastErr)
	}
	return nil, fmt.Errorf("no provider available for %s %s candles", symbol, interval)
}

// -----------------------------------------------------------------------------

// SubscribeToData multiplexes a subscription through the chosen provider and
// returns a manager-level id, distinct from the provider-level id, so the
// caller never needs to know which adapter serviced the request.
func (m *Manager) SubscribeToData(req models.MSubscriptionRequest, cb interfaces.MarketDataCallback, providerID string) (string, error) {
	var provider interfaces.IMarketDataProvider

	if providerID != "" {
		p, err := m.GetProvider(providerID)
		if err != nil {
			return "", err
		}
		if !p.Capabilities().SupportsSubscription(req.Type) {
			return "", helpers.NewCapabilityError("provider %s does not support %s subscriptions", providerID, req.Type)
		}
		provider = p
	} else {
		selection := requirement{Subscription: req.Type}
		if req.Type == models.SubscriptionCandles {
			selection.Timeframe = req.Interval
		}
		candidates := m.selectProviders(req.Symbol, selection)
		if len(candidates) == 0 {
			return "", fmt.Errorf("no provider available for %s %s subscription", req.Symbol, req.Type)
		}
		provider = candidates[0]
	}

	providerSubID, err := provider.Subscribe(req, cb)
	if err != nil {
		return "", err
	}

	managerID := uuid.NewString()
	m.subMu.Lock()
	m.subs[managerID] = routedSubscription{ProviderID: provider.ID(), ProviderSubID: providerSubID}
	m.subMu.Unlock()

	m.Logger.Info("Subscription %s -> provider %s (%s)", managerID, provider.ID(), providerSubID)
	return managerID, nil
}

// -----------------------------------------------------------------------------

// Unsubscribe routes the cancel to the adapter owning the subscription.
func (m *Manager) Unsubscribe(managerID string) error {
	m.subMu.Lock()
	routed, exists := m.subs[managerID]
	if exists {
		delete(m.subs, managerID)
	}
	m.subMu.Unlock()

	if !exists {
		return helpers.NewNotFoundError("subscription %s not found", managerID)
	}

	p, err := m.GetProvider(routed.ProviderID)
	if err != nil {
		return err
	}
	return p.Unsubscribe(routed.ProviderSubID)
}

// -----------------------------------------------------------------------------

// GetSymbolInfo serves from the instrument cache, populating it lazily on
// first request. Entries are never invalidated within the process lifetime
// (accepted staleness).
func (m *Manager) GetSymbolInfo(ctx context.Context, symbol, providerID string) (models.MSymbolInfo, error) {
	m.infoMu.RLock()
	info, cached := m.symbolInfo[symbol]
	m.infoMu.RUnlock()
	if cached {
		return info, nil
	}

	var lastErr error
	providers := m.GetAllProviders()
	if providerID != "" {
		p, err := m.GetProvider(providerID)
		if err != nil {
			return models.MSymbolInfo{}, err
		}
		providers = []interfaces.IMarketDataProvider{p}
	}

	for _, p := range providers {
		info, err := p.GetSymbolInfo(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		m.infoMu.Lock()
		m.symbolInfo[symbol] = info
		m.infoMu.Unlock()
		return info, nil
	}

	if lastErr != nil {
		return models.MSymbolInfo{}, fmt.Errorf("no provider available for symbol info %s: %w", symbol, lastErr)
	}
	return models.MSymbolInfo{}, fmt.Errorf("no provider available for symbol info %s", symbol)
}

// -----------------------------------------------------------------------------

// SearchSymbols queries providers in registration order and returns the
// first non-empty result, caching the instruments it saw.
func (m *Manager) SearchSymbols(ctx context.Context, query string) ([]models.MSymbolInfo, error) {
	var lastErr error
	for _, p := range m.GetAllProviders() {
		infos, err := p.SearchSymbols(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		if len(infos) == 0 {
			continue
		}
		m.infoMu.Lock()
		for _, info := range infos {
			m.symbolInfo[info.Symbol] = info
		}
		m.infoMu.Unlock()
		return infos, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no provider available for symbol search %q: %w", query, lastErr)
	}
	return nil, fmt.Errorf("no provider available for symbol search %q", query)
}

// -----------------------------------------------------------------------------

// DisconnectAll tears down every provider. Each provider cancels its live
// subscriptions before releasing credentials.
func (m *Manager) DisconnectAll() {
	for _, p := range m.GetAllProviders() {
		if err := p.Disconnect(); err != nil {
			m.Logger.Error("Error disconnecting provider %s: %v", p.ID(), err)
		}
	}

	m.subMu.Lock()
	m.subs = make(map[string]routedSubscription)
	m.subMu.Unlock()
}
