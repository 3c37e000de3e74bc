package tradingview

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
// stubNetwork answers scripted responses per URL suffix. fetchStarted and
// fetchRelease make in-flight requests controllable from the test body.
// -----------------------------------------------------------------------------

type stubNetwork struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error

	fetchStarted chan struct{}
	fetchRelease chan struct{}
}

func newStubNetwork() *stubNetwork {
	return &stubNetwork{
		responses: make(map[string][]byte),
		errs:      make(map[string]error),
	}
}

func (s *stubNetwork) respond(path string, v any) {
	body, _ := json.Marshal(v)
	s.mu.Lock()
	s.responses[path] = body
	s.mu.Unlock()
}

func (s *stubNetwork) Get(ctx context.Context, url string, params map[string]string, headers map[string]string) ([]byte, error) {
	if s.fetchStarted != nil {
		select {
		case s.fetchStarted <- struct{}{}:
		default:
		}
	}
	if s.fetchRelease != nil {
		select {
		case <-s.fetchRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for path, err := range s.errs {
		if len(url) >= len(path) && url[len(url)-len(path):] == path {
			return nil, err
		}
	}
	for path, body := range s.responses {
		if len(url) >= len(path) && url[len(url)-len(path):] == path {
			return body, nil
		}
	}
	return []byte(`{}`), nil
}

func (s *stubNetwork) PostJSON(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	return []byte(`{}`), nil
}

func (s *stubNetwork) PostJSONOnce(ctx context.Context, url string, body any, headers map[string]string) ([]byte, error) {
	return []byte(`{}`), nil
}

func newTestProvider(net *stubNetwork) *TradingViewProvider {
	return NewTradingViewProvider("https://example.test", models.MProviderCredentials{APIKey: "token"}, net)
}

// -----------------------------------------------------------------------------

func TestConnectIsIdempotent(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, models.StatusConnected, p.Status())

	// Second connect is a no-op.
	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, models.StatusConnected, p.Status())
}

func TestConnectFailureResetsStatus(t *testing.T) {
	net := newStubNetwork()
	net.errs["/time"] = helpers.NewUpstreamError("denied", 401, "")
	p := newTestProvider(net)

	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, helpers.IsConnectionError(err))
	assert.Equal(t, models.StatusDisconnected, p.Status())
}

func TestReconnectAfterDisconnect(t *testing.T) {
	net := newStubNetwork()
	p := newTestProvider(net)

	require.NoError(t, p.Connect(context.Background()))
	require.NoError(t, p.Disconnect())
	assert.Error(t, p.providerCtx().Err())

	// Reconnecting revives the provider context so new poll loops keep
	// running instead of exiting after their first iteration.
	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, models.StatusConnected, p.Status())
	assert.NoError(t, p.providerCtx().Err())

	require.NoError(t, p.Disconnect())
}

// -----------------------------------------------------------------------------

func TestParseHistory(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"s": "ok",
		"t": []int64{1700000000, 1700003600},
		"o": []float64{100, 101},
		"h": []float64{102, 103},
		"l": []float64{99, 100},
		"c": []float64{101, 102},
		"v": []float64{1000, 1100},
	})

	candles, err := parseHistory("AAPL", "1h", body)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, "AAPL", candles[0].Symbol)
	assert.Equal(t, "1h", candles[0].Interval)
	assert.Equal(t, int64(1700000000), candles[0].Timestamp.Unix())
	assert.Equal(t, 101.0, candles[0].Close)
}

func TestParseHistoryNoData(t *testing.T) {
	candles, err := parseHistory("AAPL", "1h", []byte(`{"s":"no_data"}`))
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestParseHistoryErrorAndMisalignment(t *testing.T) {
	_, err := parseHistory("AAPL", "1h", []byte(`{"s":"error","errmsg":"unknown symbol"}`))
	assert.Error(t, err)

	_, err = parseHistory("AAPL", "1h", []byte(`{"s":"ok","t":[1,2],"o":[1],"h":[1,2],"l":[1,2],"c":[1,2]}`))
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestSubscribeRejectsUnsupported(t *testing.T) {
	p := newTestProvider(newStubNetwork())

	_, err := p.Subscribe(models.MSubscriptionRequest{Type: models.SubscriptionOrderBook, Symbol: "AAPL"}, func(models.MMarketUpdate) {})
	assert.True(t, helpers.IsCapabilityError(err))

	_, err = p.Subscribe(models.MSubscriptionRequest{Type: models.SubscriptionCandles, Symbol: "AAPL", Interval: "3h"}, func(models.MMarketUpdate) {})
	assert.True(t, helpers.IsCapabilityError(err))
}

func TestUnsubscribeUnknown(t *testing.T) {
	p := newTestProvider(newStubNetwork())
	assert.True(t, helpers.IsNotFound(p.Unsubscribe("nope")))
}

// -----------------------------------------------------------------------------

// A fetch that is in flight when Unsubscribe is called must not deliver its
// result after the cancel returns.
func TestUnsubscribeDuringInFlightFetchSuppressesDelivery(t *testing.T) {
	net := newStubNetwork()
	net.respond("/history", map[string]any{
		"s": "ok",
		"t": []int64{time.Now().Unix()},
		"o": []float64{100},
		"h": []float64{101},
		"l": []float64{99},
		"c": []float64{100.5},
		"v": []float64{10},
	})
	p := newTestProvider(net)
	require.NoError(t, p.Connect(context.Background()))

	// Gate subsequent fetches so the first poll blocks inside Get.
	net.fetchStarted = make(chan struct{}, 1)
	net.fetchRelease = make(chan struct{})

	var mu sync.Mutex
	var delivered []models.MMarketUpdate
	id, err := p.Subscribe(
		models.MSubscriptionRequest{Type: models.SubscriptionCandles, Symbol: "BTCUSDT", Interval: "1m"},
		func(u models.MMarketUpdate) {
			mu.Lock()
			delivered = append(delivered, u)
			mu.Unlock()
		},
	)
	require.NoError(t, err)

	// The immediate first poll is now blocked inside the stub.
	<-net.fetchStarted

	require.NoError(t, p.Unsubscribe(id))
	close(net.fetchRelease)

	// Give the poll goroutine time to (incorrectly) deliver.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, delivered)

	p.Disconnect()
}
