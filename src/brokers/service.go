package brokers

import (
	"context"
	"fmt"
	"sync"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------
// Service is the broker registry. It holds the adapter instances and exposes
// the operations callers route through a broker id.
// -----------------------------------------------------------------------------

type Service struct {
	Logger *logger.Logger

	mu      sync.RWMutex
	brokers map[string]interfaces.IBrokerConnection
	order   []string // registration order
}

// -----------------------------------------------------------------------------

func NewService(log *logger.Logger) *Service {
	return &Service{
		Logger:  log,
		brokers: make(map[string]interfaces.IBrokerConnection),
	}
}

// -----------------------------------------------------------------------------

// RegisterBroker adds a broker adapter. Fails if the id exists.
func (s *Service) RegisterBroker(b interfaces.IBrokerConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := b.ID()
	if _, exists := s.brokers[id]; exists {
		return fmt.Errorf("broker %s already exists", id)
	}
	s.brokers[id] = b
	s.order = append(s.order, id)
	s.Logger.Info("Registered broker: %s (%s)", id, b.Name())
	return nil
}

// -----------------------------------------------------------------------------

// GetBroker retrieves a broker by id.
func (s *Service) GetBroker(id string) (interfaces.IBrokerConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.brokers[id]
	if !exists {
		return nil, helpers.NewNotFoundError("broker %s not found", id)
	}
	return b, nil
}

// -----------------------------------------------------------------------------

// GetAllBrokers returns a snapshot in registration order.
func (s *Service) GetAllBrokers() []interfaces.IBrokerConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]interfaces.IBrokerConnection, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.brokers[id])
	}
	return list
}

// -----------------------------------------------------------------------------

// BrokersSupporting filters registered brokers by asset class.
func (s *Service) BrokersSupporting(ac models.AssetClass) []interfaces.IBrokerConnection {
	var matched []interfaces.IBrokerConnection
	for _, b := range s.GetAllBrokers() {
		if b.Capabilities().SupportsAssetClass(ac) {
			matched = append(matched, b)
		}
	}
	return matched
}

// -----------------------------------------------------------------------------

// TestBrokerConnection connects the broker and reports success. The session
// stays open for subsequent calls.
func (s *Service) TestBrokerConnection(ctx context.Context, id string) error {
	b, err := s.GetBroker(id)
	if err != nil {
		return err
	}
	return b.Connect(ctx)
}

// -----------------------------------------------------------------------------

// GetAccountInfo proxies the account snapshot request to the broker.
func (s *Service) GetAccountInfo(ctx context.Context, id string) (models.MAccountInfo, error) {
	b, err := s.GetBroker(id)
	if err != nil {
		return models.MAccountInfo{}, err
	}
	return b.GetAccountInfo(ctx)
}

// -----------------------------------------------------------------------------

// ExecuteMarketOrder routes an order to the broker. Failed orders are never
// retried here: the caller decides what a failed execution means.
func (s *Service) ExecuteMarketOrder(ctx context.Context, id string, req models.MOrderRequest) (models.MOrderResult, error) {
	b, err := s.GetBroker(id)
	if err != nil {
		return models.MOrderResult{}, err
	}

	result, err := b.ExecuteMarketOrder(ctx, req)
	if err != nil {
		s.Logger.Error("Order execution failed on %s for %s: %v", id, req.Symbol, err)
		return models.MOrderResult{}, err
	}

	s.Logger.Info("Order %s executed on %s: %s %s x%.4f", result.OrderID, id, req.Side, req.Symbol, req.Quantity)
	return result, nil
}

// -----------------------------------------------------------------------------

// DisconnectAll tears down every broker session.
func (s *Service) DisconnectAll() {
	for _, b := range s.GetAllBrokers() {
		if err := b.Disconnect(); err != nil {
			s.Logger.Error("Error disconnecting broker %s: %v", b.ID(), err)
		}
	}
}
