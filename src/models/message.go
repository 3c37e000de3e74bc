package models

import "time"

// -----------------------------------------------------------------------------
// Message Types
// -----------------------------------------------------------------------------

type MessageType string

const (
	MessageNewSignal      MessageType = "NEW_SIGNAL"
	MessageSignalUpdate   MessageType = "SIGNAL_UPDATE"
	MessageNotification   MessageType = "NOTIFICATION"
	MessageTradeExecution MessageType = "TRADE_EXECUTION"
)

// -----------------------------------------------------------------------------
// Priorities (0 is highest)
// -----------------------------------------------------------------------------

const (
	PriorityCritical = 0
	PriorityHigh     = 1
	PriorityNormal   = 2
	PriorityLow      = 3
)

// -----------------------------------------------------------------------------
// Well-known topics
// -----------------------------------------------------------------------------

const (
	TopicTradingSignals = "trading-signals"
	TopicNotifications  = "notifications"
	TopicTasks          = "tasks"
)

// -----------------------------------------------------------------------------
// MessagePayload is a closed union keyed by MessageType. Each payload struct
// reports the one message type it is valid for.
// -----------------------------------------------------------------------------

type MessagePayload interface {
	Kind() MessageType
}

// -----------------------------------------------------------------------------

// MMessage is the unit routed through the bus. Immutable once enqueued.
type MMessage struct {
	Type      MessageType
	Priority  int
	Timestamp time.Time
	Payload   MessagePayload
}

// -----------------------------------------------------------------------------
// Payload variants
// -----------------------------------------------------------------------------

// MSignalPayload carries an inbound trading signal (webhook ingestion).
type MSignalPayload struct {
	SignalID   string
	Symbol     string
	Side       string // "buy" or "sell"
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Quantity   float64
	Source     string
	Token      string
}

func (p *MSignalPayload) Kind() MessageType { return MessageNewSignal }

// -----------------------------------------------------------------------------

// MSignalUpdatePayload transitions an existing signal's lifecycle state.
type MSignalUpdatePayload struct {
	SignalID string
	Status   SignalStatus
	Reason   string
}

func (p *MSignalUpdatePayload) Kind() MessageType { return MessageSignalUpdate }

// -----------------------------------------------------------------------------

// MNotificationPayload fans out to connected client sessions.
type MNotificationPayload struct {
	Title  string
	Body   string
	Level  string // "info", "warning", "error"
	Symbol string
	Data   map[string]any
}

func (p *MNotificationPayload) Kind() MessageType { return MessageNotification }

// -----------------------------------------------------------------------------

// MOrderRequestPayload asks the trade-execution processor to place an order
// through a specific broker.
type MOrderRequestPayload struct {
	BrokerID string
	SignalID string
	Order    MOrderRequest
}

func (p *MOrderRequestPayload) Kind() MessageType { return MessageTradeExecution }
