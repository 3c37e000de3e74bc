package models

import "time"

// -----------------------------------------------------------------------------
// Signal lifecycle: pending -> notified -> executed | cancelled
// -----------------------------------------------------------------------------

type SignalStatus string

const (
	SignalPending   SignalStatus = "pending"
	SignalNotified  SignalStatus = "notified"
	SignalExecuted  SignalStatus = "executed"
	SignalCancelled SignalStatus = "cancelled"
)

// -----------------------------------------------------------------------------

// MSignal is the in-memory lifecycle state of one trading signal. Held for
// process uptime only; the journal is the durable trail.
type MSignal struct {
	ID         string
	Symbol     string
	Side       string
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Quantity   float64
	Source     string
	Status     SignalStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// -----------------------------------------------------------------------------

// MNotification is the transformed message broadcast to connected sessions.
type MNotification struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Level     string         `json:"level"`
	Symbol    string         `json:"symbol,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// -----------------------------------------------------------------------------
// Journal rows
// -----------------------------------------------------------------------------

type MSignalEvent struct {
	SignalID  string
	Symbol    string
	Status    SignalStatus
	Detail    string
	CreatedAt time.Time
}

type MOrderEvent struct {
	OrderID   string
	BrokerID  string
	SignalID  string
	Symbol    string
	Side      string
	Quantity  float64
	Price     float64
	Status    string
	CreatedAt time.Time
}
