package brokers

import (
	"context"
	"testing"

	"mcp/src/helpers"
	"mcp/src/logger"
	"mcp/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

type fakeBroker struct {
	id           string
	caps         models.MBrokerCapabilities
	status       models.ConnectionStatus
	connectCalls int
	orderErr     error
	lastOrder    models.MOrderRequest
	disconnected bool
}

func (b *fakeBroker) ID() string { return b.id }

func (b *fakeBroker) Name() string { return "Fake " + b.id }

func (b *fakeBroker) Connect(ctx context.Context) error {
	if b.status == models.StatusConnected {
		return nil
	}
	b.connectCalls++
	b.status = models.StatusConnected
	return nil
}

func (b *fakeBroker) Disconnect() error {
	b.disconnected = true
	b.status = models.StatusDisconnected
	return nil
}

func (b *fakeBroker) Status() models.ConnectionStatus { return b.status }

func (b *fakeBroker) Capabilities() models.MBrokerCapabilities { return b.caps }

func (b *fakeBroker) GetAccountInfo(ctx context.Context) (models.MAccountInfo, error) {
	if err := b.Connect(ctx); err != nil {
		return models.MAccountInfo{}, err
	}
	return models.MAccountInfo{AccountID: b.id + "-acct", Balance: 1000}, nil
}

func (b *fakeBroker) ExecuteMarketOrder(ctx context.Context, req models.MOrderRequest) (models.MOrderResult, error) {
	if err := b.Connect(ctx); err != nil {
		return models.MOrderResult{}, err
	}
	if b.orderErr != nil {
		return models.MOrderResult{}, b.orderErr
	}
	b.lastOrder = req
	return models.MOrderResult{OrderID: "ord-1", Symbol: req.Symbol, Side: req.Side, Quantity: req.Quantity, Status: "filled"}, nil
}

func testService() *Service {
	return NewService(logger.NewLogger("", "test"))
}

// -----------------------------------------------------------------------------

func TestRegisterBrokerRejectsDuplicate(t *testing.T) {
	svc := testService()

	require.NoError(t, svc.RegisterBroker(&fakeBroker{id: "b1"}))
	assert.Error(t, svc.RegisterBroker(&fakeBroker{id: "b1"}))
}

func TestGetBrokerNotFound(t *testing.T) {
	svc := testService()

	_, err := svc.GetBroker("ghost")
	assert.True(t, helpers.IsNotFound(err))
}

func TestGetAllBrokersKeepsRegistrationOrder(t *testing.T) {
	svc := testService()
	require.NoError(t, svc.RegisterBroker(&fakeBroker{id: "zeta"}))
	require.NoError(t, svc.RegisterBroker(&fakeBroker{id: "alpha"}))

	all := svc.GetAllBrokers()
	require.Len(t, all, 2)
	assert.Equal(t, "zeta", all[0].ID())
	assert.Equal(t, "alpha", all[1].ID())
}

func TestBrokersSupportingFiltersByAssetClass(t *testing.T) {
	svc := testService()
	require.NoError(t, svc.RegisterBroker(&fakeBroker{id: "stocks", caps: models.MBrokerCapabilities{Stocks: true}}))
	require.NoError(t, svc.RegisterBroker(&fakeBroker{id: "futures", caps: models.MBrokerCapabilities{Futures: true}}))

	matched := svc.BrokersSupporting(models.AssetFutures)
	require.Len(t, matched, 1)
	assert.Equal(t, "futures", matched[0].ID())

	assert.Empty(t, svc.BrokersSupporting(models.AssetForex))
}

// -----------------------------------------------------------------------------

func TestTestBrokerConnectionLeavesSessionOpen(t *testing.T) {
	svc := testService()
	b := &fakeBroker{id: "b1"}
	require.NoError(t, svc.RegisterBroker(b))

	require.NoError(t, svc.TestBrokerConnection(context.Background(), "b1"))
	assert.Equal(t, models.StatusConnected, b.Status())

	// A second test call does not re-handshake.
	require.NoError(t, svc.TestBrokerConnection(context.Background(), "b1"))
	assert.Equal(t, 1, b.connectCalls)
}

func TestGetAccountInfoConnectsLazily(t *testing.T) {
	svc := testService()
	b := &fakeBroker{id: "b1"}
	require.NoError(t, svc.RegisterBroker(b))

	info, err := svc.GetAccountInfo(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1-acct", info.AccountID)
	assert.Equal(t, 1, b.connectCalls)
}

func TestExecuteMarketOrderRoutesToBroker(t *testing.T) {
	svc := testService()
	b := &fakeBroker{id: "b1"}
	require.NoError(t, svc.RegisterBroker(b))

	req := models.MOrderRequest{Symbol: "AAPL", Side: "buy", Quantity: 2, Type: models.OrderTypeMarket}
	result, err := svc.ExecuteMarketOrder(context.Background(), "b1", req)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", result.OrderID)
	assert.Equal(t, req, b.lastOrder)
}

func TestExecuteMarketOrderPropagatesFailure(t *testing.T) {
	svc := testService()
	b := &fakeBroker{id: "b1", orderErr: helpers.NewCapabilityError("fractional quantity rejected")}
	require.NoError(t, svc.RegisterBroker(b))

	_, err := svc.ExecuteMarketOrder(context.Background(), "b1", models.MOrderRequest{Symbol: "ESZ5", Side: "buy", Quantity: 1.5})
	assert.True(t, helpers.IsCapabilityError(err))
}

func TestDisconnectAll(t *testing.T) {
	svc := testService()
	b1 := &fakeBroker{id: "b1"}
	b2 := &fakeBroker{id: "b2"}
	require.NoError(t, svc.RegisterBroker(b1))
	require.NoError(t, svc.RegisterBroker(b2))

	svc.DisconnectAll()
	assert.True(t, b1.disconnected)
	assert.True(t, b2.disconnected)
}
