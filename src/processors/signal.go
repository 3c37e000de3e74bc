package processors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------

// Publisher is the slice of the message bus the processors need.
type Publisher interface {
	Publish(topic string, msg models.MMessage) error
}

// -----------------------------------------------------------------------------
// SignalStore holds signal lifecycle state for the process's uptime.
// -----------------------------------------------------------------------------

type SignalStore struct {
	mu      sync.RWMutex
	signals map[string]*models.MSignal
}

func NewSignalStore() *SignalStore {
	return &SignalStore{signals: make(map[string]*models.MSignal)}
}

// -----------------------------------------------------------------------------

func (s *SignalStore) Put(sig *models.MSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[sig.ID] = sig
}

// -----------------------------------------------------------------------------

func (s *SignalStore) Get(id string) (*models.MSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signals[id]
	if !ok {
		return nil, helpers.NewNotFoundError("signal %s not found", id)
	}
	copied := *sig
	return &copied, nil
}

// -----------------------------------------------------------------------------

// SetStatus transitions a signal and returns the updated copy.
func (s *SignalStore) SetStatus(id string, status models.SignalStatus) (*models.MSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return nil, helpers.NewNotFoundError("signal %s not found", id)
	}
	sig.Status = status
	sig.UpdatedAt = time.Now().UTC()
	copied := *sig
	return &copied, nil
}

// -----------------------------------------------------------------------------

func (s *SignalStore) All() []models.MSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MSignal, 0, len(s.signals))
	for _, sig := range s.signals {
		out = append(out, *sig)
	}
	return out
}

// -----------------------------------------------------------------------------
// SignalProcessor derives signal lifecycle state and forwards a notification
// for each transition. Stateless between calls except for the store.
// -----------------------------------------------------------------------------

type SignalProcessor struct {
	Store   *SignalStore
	Bus     Publisher
	Journal interfaces.IDatabase
	Logger  *logger.Logger
}

func NewSignalProcessor(store *SignalStore, bus Publisher, journal interfaces.IDatabase, log *logger.Logger) *SignalProcessor {
	return &SignalProcessor{Store: store, Bus: bus, Journal: journal, Logger: log}
}

// -----------------------------------------------------------------------------

func (p *SignalProcessor) Process(ctx context.Context, msg models.MMessage) error {
	switch payload := msg.Payload.(type) {
	case *models.MSignalPayload:
		return p.handleNewSignal(payload)
	case *models.MSignalUpdatePayload:
		return p.handleUpdate(payload)
	default:
		return fmt.Errorf("unexpected payload %T for signal processor", msg.Payload)
	}
}

// -----------------------------------------------------------------------------

func (p *SignalProcessor) handleNewSignal(payload *models.MSignalPayload) error {
	now := time.Now().UTC()
	sig := &models.MSignal{
		ID:         payload.SignalID,
		Symbol:     payload.Symbol,
		Side:       payload.Side,
		EntryPrice: payload.EntryPrice,
		StopLoss:   payload.StopLoss,
		TakeProfit: payload.TakeProfit,
		Quantity:   payload.Quantity,
		Source:     payload.Source,
		Status:     models.SignalPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.Store.Put(sig)
	p.journal(sig, "signal received")

	// Forward to the notification processor via the notifications topic.
	err := p.Bus.Publish(models.TopicNotifications, models.MMessage{
		Type:     models.MessageNotification,
		Priority: models.PriorityHigh,
		Payload: &models.MNotificationPayload{
			Title:  fmt.Sprintf("New signal: %s %s", payload.Side, payload.Symbol),
			Body:   fmt.Sprintf("Entry %.5f, SL %.5f, TP %.5f", payload.EntryPrice, payload.StopLoss, payload.TakeProfit),
			Level:  "info",
			Symbol: payload.Symbol,
			Data:   map[string]any{"signal_id": sig.ID, "source": payload.Source},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to forward signal %s: %w", sig.ID, err)
	}

	if sig, err := p.Store.SetStatus(sig.ID, models.SignalNotified); err == nil {
		p.journal(sig, "clients notified")
	}
	return nil
}

// -----------------------------------------------------------------------------

func (p *SignalProcessor) handleUpdate(payload *models.MSignalUpdatePayload) error {
	sig, err := p.Store.SetStatus(payload.SignalID, payload.Status)
	if err != nil {
		return err
	}
	p.journal(sig, payload.Reason)

	return p.Bus.Publish(models.TopicNotifications, models.MMessage{
		Type:     models.MessageNotification,
		Priority: models.PriorityNormal,
		Payload: &models.MNotificationPayload{
			Title:  fmt.Sprintf("Signal %s %s", sig.Symbol, sig.Status),
			Body:   payload.Reason,
			Level:  "info",
			Symbol: sig.Symbol,
			Data:   map[string]any{"signal_id": sig.ID, "status": string(sig.Status)},
		},
	})
}

// -----------------------------------------------------------------------------

func (p *SignalProcessor) journal(sig *models.MSignal, detail string) {
	if p.Journal == nil {
		return
	}
	err := p.Journal.SaveSignalEvent(models.MSignalEvent{
		SignalID:  sig.ID,
		Symbol:    sig.Symbol,
		Status:    sig.Status,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		p.Logger.Warning("Failed to journal signal %s: %v", sig.ID, err)
	}
}
