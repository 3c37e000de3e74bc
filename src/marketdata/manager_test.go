package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// fakeProvider is a scriptable IMarketDataProvider.
// -----------------------------------------------------------------------------

type fakeProvider struct {
	id           string
	caps         models.MProviderCapabilities
	candleErr    error
	candles      []models.MCandle
	candleCalls  int
	subs         map[string]models.MSubscriptionRequest
	unsubCalls   []string
	disconnected bool
}

func newFakeProvider(id string, classes ...models.AssetClass) *fakeProvider {
	return &fakeProvider{
		id: id,
		caps: models.MProviderCapabilities{
			AssetClasses:      classes,
			Timeframes:        []string{"1m", "1h", "1d"},
			SubscriptionTypes: []models.SubscriptionType{models.SubscriptionCandles, models.SubscriptionTicks},
			HistoricalData:    true,
		},
		subs: make(map[string]models.MSubscriptionRequest),
	}
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) Name() string { return f.id }

func (f *fakeProvider) Connect(ctx context.Context) error { return nil }

func (f *fakeProvider) Capabilities() models.MProviderCapabilities { return f.caps }

func (f *fakeProvider) Disconnect() error {
	f.disconnected = true
	return nil
}

func (f *fakeProvider) GetHistoricalCandles(ctx context.Context, symbol, interval string, from, to time.Time) ([]models.MCandle, error) {
	f.candleCalls++
	if f.candleErr != nil {
		return nil, f.candleErr
	}
	return f.candles, nil
}

func (f *fakeProvider) Subscribe(req models.MSubscriptionRequest, cb interfaces.MarketDataCallback) (string, error) {
	id := f.id + "-sub"
	f.subs[id] = req
	return id, nil
}

func (f *fakeProvider) Unsubscribe(id string) error {
	if _, ok := f.subs[id]; !ok {
		return helpers.NewNotFoundError("subscription %s not found", id)
	}
	delete(f.subs, id)
	f.unsubCalls = append(f.unsubCalls, id)
	return nil
}

func (f *fakeProvider) GetSymbolInfo(ctx context.Context, symbol string) (models.MSymbolInfo, error) {
	return models.MSymbolInfo{Symbol: symbol, Description: f.id}, nil
}

func (f *fakeProvider) SearchSymbols(ctx context.Context, query string) ([]models.MSymbolInfo, error) {
	return []models.MSymbolInfo{{Symbol: query, Description: f.id}}, nil
}

func newTestManager() *Manager {
	return NewManager(logger.NewLogger("", "test"))
}

// -----------------------------------------------------------------------------

func TestRegisterAndGetProvider(t *testing.T) {
	m := newTestManager()
	p := newFakeProvider("p1", models.AssetStocks)

	require.NoError(t, m.RegisterProvider(p))
	assert.Error(t, m.RegisterProvider(p))

	got, err := m.GetProvider("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID())

	_, err = m.GetProvider("missing")
	assert.True(t, helpers.IsNotFound(err))
}

// -----------------------------------------------------------------------------

func TestGetHistoricalCandlesFallsOverToNextProvider(t *testing.T) {
	m := newTestManager()

	failing := newFakeProvider("p1", models.AssetStocks)
	failing.candleErr = errors.New("upstream down")

	working := newFakeProvider("p2", models.AssetStocks)
	working.candles = []models.MCandle{{Symbol: "AAPL", Close: 190}}

	require.NoError(t, m.RegisterProvider(failing))
	require.NoError(t, m.RegisterProvider(working))

	candles, err := m.GetHistoricalCandles(context.Background(), "AAPL", "1h", time.Unix(0, 0), time.Now(), "")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 1, failing.candleCalls)
	assert.Equal(t, 1, working.candleCalls)
}

func TestGetHistoricalCandlesPrefersAssetClassMatch(t *testing.T) {
	m := newTestManager()

	stocksOnly := newFakeProvider("stocks-first", models.AssetStocks)
	stocksOnly.candles = []models.MCandle{{Symbol: "EURUSD", Close: 1.0}}

	forexCapable := newFakeProvider("forex-second", models.AssetForex)
	forexCapable.candles = []models.MCandle{{Symbol: "EURUSD", Close: 1.1}}

	// Registration order favors the stocks provider, but the forex symbol
	// must route to the forex-capable provider first.
	require.NoError(t, m.RegisterProvider(stocksOnly))
	require.NoError(t, m.RegisterProvider(forexCapable))

	candles, err := m.GetHistoricalCandles(context.Background(), "EURUSD", "1h", time.Unix(0, 0), time.Now(), "")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 1.1, candles[0].Close)
	assert.Equal(t, 0, stocksOnly.candleCalls)
}

func TestGetHistoricalCandlesAggregateError(t *testing.T) {
	m := newTestManager()

	failing := newFakeProvider("p1", models.AssetStocks)
	failing.candleErr = errors.New("upstream down")
	require.NoError(t, m.RegisterProvider(failing))

	_, err := m.GetHistoricalCandles(context.Background(), "AAPL", "1h", time.Unix(0, 0), time.Now(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider available")
	assert.ErrorIs(t, err, failing.candleErr)
}

func TestGetHistoricalCandlesExplicitProvider(t *testing.T) {
	m := newTestManager()

	p1 := newFakeProvider("p1", models.AssetStocks)
	p1.candleErr = errors.New("upstream down")
	p2 := newFakeProvider("p2", models.AssetStocks)

	require.NoError(t, m.RegisterProvider(p1))
	require.NoError(t, m.RegisterProvider(p2))

	// Explicit provider means no fallback.
	_, err := m.GetHistoricalCandles(context.Background(), "AAPL", "1h", time.Unix(0, 0), time.Now(), "p1")
	require.Error(t, err)
	assert.Equal(t, 0, p2.candleCalls)

	_, err = m.GetHistoricalCandles(context.Background(), "AAPL", "1h", time.Unix(0, 0), time.Now(), "absent")
	assert.True(t, helpers.IsNotFound(err))
}

func TestGetHistoricalCandlesUnsupportedTimeframe(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.RegisterProvider(newFakeProvider("p1", models.AssetStocks)))

	_, err := m.GetHistoricalCandles(context.Background(), "AAPL", "3h", time.Unix(0, 0), time.Now(), "p1")
	assert.True(t, helpers.IsCapabilityError(err))
}

// -----------------------------------------------------------------------------

func TestSubscriptionRouting(t *testing.T) {
	m := newTestManager()
	p := newFakeProvider("p1", models.AssetCrypto)
	require.NoError(t, m.RegisterProvider(p))

	req := models.MSubscriptionRequest{Type: models.SubscriptionCandles, Symbol: "BTCUSDT", Interval: "1m"}
	managerID, err := m.SubscribeToData(req, func(models.MMarketUpdate) {}, "")
	require.NoError(t, err)
	require.NotEmpty(t, managerID)

	// The manager id is its own namespace, not the provider's id.
	assert.NotEqual(t, "p1-sub", managerID)
	assert.Len(t, p.subs, 1)

	require.NoError(t, m.Unsubscribe(managerID))
	assert.Equal(t, []string{"p1-sub"}, p.unsubCalls)

	// Second cancel is a not-found, the routing entry is gone.
	err = m.Unsubscribe(managerID)
	assert.True(t, helpers.IsNotFound(err))
}

func TestSubscribeNoCapableProvider(t *testing.T) {
	m := newTestManager()
	p := newFakeProvider("p1", models.AssetStocks)
	p.caps.SubscriptionTypes = []models.SubscriptionType{models.SubscriptionCandles}
	require.NoError(t, m.RegisterProvider(p))

	_, err := m.SubscribeToData(models.MSubscriptionRequest{Type: models.SubscriptionOrderBook, Symbol: "AAPL"}, func(models.MMarketUpdate) {}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider available")
}

// -----------------------------------------------------------------------------

func TestSymbolInfoCache(t *testing.T) {
	m := newTestManager()
	p := newFakeProvider("p1", models.AssetStocks)
	require.NoError(t, m.RegisterProvider(p))

	info, err := m.GetSymbolInfo(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", info.Symbol)

	// Second lookup is served from cache even if the provider goes away.
	require.NoError(t, p.Disconnect())
	cached, err := m.GetSymbolInfo(context.Background(), "AAPL", "")
	require.NoError(t, err)
	assert.Equal(t, info, cached)
}

// -----------------------------------------------------------------------------

func TestDisconnectAll(t *testing.T) {
	m := newTestManager()
	p1 := newFakeProvider("p1", models.AssetStocks)
	p2 := newFakeProvider("p2", models.AssetCrypto)
	require.NoError(t, m.RegisterProvider(p1))
	require.NoError(t, m.RegisterProvider(p2))

	_, err := m.SubscribeToData(models.MSubscriptionRequest{Type: models.SubscriptionTicks, Symbol: "BTCUSDT"}, func(models.MMarketUpdate) {}, "p2")
	require.NoError(t, err)

	m.DisconnectAll()
	assert.True(t, p1.disconnected)
	assert.True(t, p2.disconnected)
}
