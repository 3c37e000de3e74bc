package processors

import (
	"context"
	"fmt"
	"time"

	"mcp/src/helpers"
	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/marketdata"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------

// BrokerRegistry is the slice of the broker service the processor needs.
type BrokerRegistry interface {
	GetBroker(id string) (interfaces.IBrokerConnection, error)
}

// -----------------------------------------------------------------------------
// TradeExecutionProcessor resolves the target broker and places the order.
// On success it places dependent stop-loss/take-profit child orders; a child
// failure does not roll back the parent, it is logged and surfaced as a
// partial-failure notification. Order placement is never retried.
// -----------------------------------------------------------------------------

type TradeExecutionProcessor struct {
	Brokers BrokerRegistry
	Bus     Publisher
	Journal interfaces.IDatabase
	Logger  *logger.Logger
}

func NewTradeExecutionProcessor(brokers BrokerRegistry, bus Publisher, journal interfaces.IDatabase, log *logger.Logger) *TradeExecutionProcessor {
	return &TradeExecutionProcessor{Brokers: brokers, Bus: bus, Journal: journal, Logger: log}
}

// -----------------------------------------------------------------------------

func (p *TradeExecutionProcessor) Process(ctx context.Context, msg models.MMessage) error {
	payload, ok := msg.Payload.(*models.MOrderRequestPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for trade-execution processor", msg.Payload)
	}

	conn, err := p.Brokers.GetBroker(payload.BrokerID)
	if err != nil {
		return err
	}

	if err := p.checkCapabilities(conn, payload.Order); err != nil {
		return err
	}

	parent := payload.Order
	parent.Type = models.OrderTypeMarket

	result, err := conn.ExecuteMarketOrder(ctx, parent)
	if err != nil {
		p.notify("error", fmt.Sprintf("Order failed: %s %s", parent.Side, parent.Symbol), err.Error(), parent.Symbol, payload.SignalID)
		return fmt.Errorf("order execution failed on broker %s: %w", payload.BrokerID, err)
	}

	p.journalOrder(payload, result, result.Status)
	p.Logger.Info("Order %s filled: %s %s qty=%.4f", result.OrderID, result.Side, result.Symbol, result.Quantity)

	childErrs := p.placeChildOrders(ctx, conn, payload, result)

	if payload.SignalID != "" {
		err := p.Bus.Publish(models.TopicTradingSignals, models.MMessage{
			Type:     models.MessageSignalUpdate,
			Priority: models.PriorityHigh,
			Payload: &models.MSignalUpdatePayload{
				SignalID: payload.SignalID,
				Status:   models.SignalExecuted,
				Reason:   fmt.Sprintf("order %s filled", result.OrderID),
			},
		})
		if err != nil {
			p.Logger.Warning("Failed to publish signal update for %s: %v", payload.SignalID, err)
		}
	}

	if len(childErrs) > 0 {
		p.notify("warning",
			fmt.Sprintf("Partial failure for %s", parent.Symbol),
			fmt.Sprintf("parent order %s filled, %d child order(s) failed", result.OrderID, len(childErrs)),
			parent.Symbol, payload.SignalID)
	}
	return nil
}

// -----------------------------------------------------------------------------

// checkCapabilities pre-filters before attempting an order the broker
// cannot fulfill.
func (p *TradeExecutionProcessor) checkCapabilities(conn interfaces.IBrokerConnection, order models.MOrderRequest) error {
	caps := conn.Capabilities()

	assetClass := marketdata.InferAssetClass(order.Symbol)
	if !caps.SupportsAssetClass(assetClass) {
		return helpers.NewCapabilityError("broker %s does not trade %s (%s)", conn.ID(), assetClass, order.Symbol)
	}
	if order.StopLoss > 0 && !caps.StopLoss {
		return helpers.NewCapabilityError("broker %s does not support stop-loss orders", conn.ID())
	}
	if order.TakeProfit > 0 && !caps.TakeProfit {
		return helpers.NewCapabilityError("broker %s does not support take-profit orders", conn.ID())
	}
	if order.Quantity != float64(int64(order.Quantity)) && !caps.FractionalShares {
		return helpers.NewCapabilityError("broker %s does not support fractional quantities", conn.ID())
	}
	return nil
}

// -----------------------------------------------------------------------------

// placeChildOrders places the dependent stop-loss/take-profit orders. Errors
// are collected, not propagated: the parent is already filled.
func (p *TradeExecutionProcessor) placeChildOrders(ctx context.Context, conn interfaces.IBrokerConnection, payload *models.MOrderRequestPayload, parent models.MOrderResult) []error {
	var errs []error
	exitSide := "sell"
	if payload.Order.Side == "sell" {
		exitSide = "buy"
	}

	if payload.Order.StopLoss > 0 {
		child := models.MOrderRequest{
			Symbol:   payload.Order.Symbol,
			Side:     exitSide,
			Quantity: payload.Order.Quantity,
			Type:     models.OrderTypeStop,
			Price:    payload.Order.StopLoss,
		}
		if res, err := conn.ExecuteMarketOrder(ctx, child); err != nil {
			p.Logger.Error("Stop-loss order failed for %s (parent %s): %v", child.Symbol, parent.OrderID, err)
			errs = append(errs, err)
		} else {
			p.journalOrder(payload, res, "stop_loss_placed")
		}
	}

	if payload.Order.TakeProfit > 0 {
		child := models.MOrderRequest{
			Symbol:   payload.Order.Symbol,
			Side:     exitSide,
			Quantity: payload.Order.Quantity,
			Type:     models.OrderTypeLimit,
			Price:    payload.Order.TakeProfit,
		}
		if res, err := conn.ExecuteMarketOrder(ctx, child); err != nil {
			p.Logger.Error("Take-profit order failed for %s (parent %s): %v", child.Symbol, parent.OrderID, err)
			errs = append(errs, err)
		} else {
			p.journalOrder(payload, res, "take_profit_placed")
		}
	}

	return errs
}

// -----------------------------------------------------------------------------

func (p *TradeExecutionProcessor) notify(level, title, body, symbol, signalID string) {
	err := p.Bus.Publish(models.TopicNotifications, models.MMessage{
		Type:     models.MessageNotification,
		Priority: models.PriorityHigh,
		Payload: &models.MNotificationPayload{
			Title:  title,
			Body:   body,
			Level:  level,
			Symbol: symbol,
			Data:   map[string]any{"signal_id": signalID},
		},
	})
	if err != nil {
		p.Logger.Warning("Failed to publish notification: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (p *TradeExecutionProcessor) journalOrder(payload *models.MOrderRequestPayload, res models.MOrderResult, status string) {
	if p.Journal == nil {
		return
	}
	err := p.Journal.SaveOrderEvent(models.MOrderEvent{
		OrderID:   res.OrderID,
		BrokerID:  payload.BrokerID,
		SignalID:  payload.SignalID,
		Symbol:    res.Symbol,
		Side:      res.Side,
		Quantity:  res.Quantity,
		Price:     res.FilledPrice,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		p.Logger.Warning("Failed to journal order %s: %v", res.OrderID, err)
	}
}
