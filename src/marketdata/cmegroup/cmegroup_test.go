package cmegroup

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"mcp/src/helpers"
	"mcp/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// stubNetwork scripts the OAuth endpoint and the data endpoints separately so
// tests can count token fetches and inspect the headers data requests carry.
// -----------------------------------------------------------------------------

type stubNetwork struct {
	mu          sync.Mutex
	tokenCalls  int
	tokenErr    error
	tokenBody   []byte
	responses   map[string][]byte
	lastHeaders map[string]string
}

func newStubNetwork() *stubNetwork {
	body, _ := json.Marshal(map[string]any{
		"access_token": "tok-1",
		"token_type":   "bearer",
		"expires_in":   3600,
	})
	return &stubNetwork{
		tokenBody: body,
		responses: make(map[string][]byte),
	}
}

func (s *stubNetwork) respond(path string, v any) {
	body, _ := json.Marshal(v)
	s.mu.Lock()
	s.responses[path] = body
	s.mu.Unlock()
}

func (s *stubNetwork) Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeaders = headers
	for path, body := range s.responses {
		if len(url) >= len(path) && url[len(url)-len(path):] == path {
			return body, nil
		}
	}
	return []byte(`{}`), nil
}

func (s *stubNetwork) PostJSON(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenCalls++
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	return s.tokenBody, nil
}

func (s *stubNetwork) PostJSONOnce(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	return []byte(`{}`), nil
}

func newTestProvider(net *stubNetwork) *CMEGroupProvider {
	creds := models.MProviderCredentials{ClientID: "id", ClientSecret: "secret"}
	return NewCMEGroupProvider("https://example.test", creds, net)
}

// -----------------------------------------------------------------------------
// OAuth
// -----------------------------------------------------------------------------

func TestConnectFetchesToken(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, models.StatusConnected, p.Status())
	assert.Equal(t, 1, net.tokenCalls)

	// Data requests carry the token obtained during the handshake.
	_, err := p.GetHistoricalCandles(context.Background(), "ESZ5", "1h",
		time.Unix(1700000000, 0), time.Unix(1700003600, 0))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", net.lastHeaders["Authorization"])

	require.NoError(t, p.Disconnect())
}

func TestConnectFailureResetsStatus(t *testing.T) {
	net := newStubNetwork()
	net.tokenErr = helpers.NewUpstreamError("denied", 401, "")
	p := newTestProvider(net)

	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, helpers.IsConnectionError(err))
	assert.Equal(t, models.StatusDisconnected, p.Status())
}

func TestConnectRejectsEmptyToken(t *testing.T) {
	net := newStubNetwork()
	net.tokenBody, _ = json.Marshal(map[string]any{"access_token": "", "expires_in": 3600})
	p := newTestProvider(net)

	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.StatusDisconnected, p.Status())
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Now().UTC()

	// Plenty of lifetime left: no refresh.
	assert.False(t, needsRefresh(now.Add(time.Hour)))
	assert.False(t, needsRefresh(now.Add(refreshMargin+time.Minute)))

	// Inside the margin or already expired: refresh.
	assert.True(t, needsRefresh(now.Add(refreshMargin-time.Minute)))
	assert.True(t, needsRefresh(now.Add(-time.Minute)))
}

func TestFetchTokenUpdatesExpiry(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	require.NoError(t, p.fetchToken(context.Background()))

	p.tokenMu.Lock()
	expiry := p.tokenExpiry
	p.tokenMu.Unlock()

	// A fresh one-hour token is well outside the renewal margin.
	assert.False(t, needsRefresh(expiry))
	assert.InDelta(t, time.Hour.Seconds(), time.Until(expiry).Seconds(), 5)
}

// -----------------------------------------------------------------------------
// Reconnect lifecycle
// -----------------------------------------------------------------------------

func TestReconnectAfterDisconnect(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Disconnect())
	assert.Error(t, p.providerCtx().Err())

	// Reconnecting performs a fresh handshake and revives the provider
	// context so refresh and poll loops keep running.
	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, models.StatusConnected, p.Status())
	assert.Equal(t, 2, net.tokenCalls)
	assert.NoError(t, p.providerCtx().Err())

	require.NoError(t, p.Disconnect())
}

// -----------------------------------------------------------------------------
// Data
// -----------------------------------------------------------------------------

func TestGetHistoricalCandlesParsesRows(t *testing.T) {
	net := newStubNetwork()
	net.respond("/v1/candles", map[string]any{
		"symbol": "ESZ5",
		"candles": []map[string]any{
			{"timestamp": 1700000000, "open": 4500.25, "high": 4510.5, "low": 4498.0, "close": 4505.75, "volume": 1200},
			{"timestamp": 1700003600, "open": 4505.75, "high": 4520.0, "low": 4504.25, "close": 4518.5, "volume": 1900},
		},
	})
	p := newTestProvider(net)

	candles, err := p.GetHistoricalCandles(context.Background(), "ESZ5", "1h",
		time.Unix(1700000000, 0), time.Unix(1700007200, 0))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "ESZ5", candles[0].Symbol)
	assert.Equal(t, 4500.25, candles[0].Open)
	assert.Equal(t, int64(1700003600), candles[1].Timestamp.Unix())

	require.NoError(t, p.Disconnect())
}

func TestGetHistoricalCandlesRejectsUnknownTimeframe(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	_, err := p.GetHistoricalCandles(context.Background(), "ESZ5", "2m",
		time.Unix(1700000000, 0), time.Unix(1700003600, 0))
	require.Error(t, err)
	assert.True(t, helpers.IsCapabilityError(err))

	require.NoError(t, p.Disconnect())
}

func TestSubscribeRejectsUnsupported(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	_, err := p.Subscribe(models.MSubscriptionRequest{
		Symbol: "ESZ5", Type: models.SubscriptionTicks, Interval: "1m",
	}, func(models.MMarketUpdate) {})
	require.Error(t, err)
	assert.True(t, helpers.IsCapabilityError(err))

	_, err = p.Subscribe(models.MSubscriptionRequest{
		Symbol: "ESZ5", Type: models.SubscriptionCandles, Interval: "2m",
	}, func(models.MMarketUpdate) {})
	require.Error(t, err)
	assert.True(t, helpers.IsCapabilityError(err))

	require.NoError(t, p.Disconnect())
}

func TestUnsubscribeUnknown(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	err := p.Unsubscribe("missing")
	require.Error(t, err)
	assert.True(t, helpers.IsNotFound(err))
}
