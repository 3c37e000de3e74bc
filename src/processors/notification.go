package processors

import (
	"context"
	"fmt"
	"time"

	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// NotificationProcessor transforms a notification message and fans it out to
// all currently-connected client sessions via the exchanger.
// -----------------------------------------------------------------------------

type NotificationProcessor struct {
	Exchanger interfaces.IDataExchanger
	Logger    *logger.Logger
}

func NewNotificationProcessor(exchanger interfaces.IDataExchanger, log *logger.Logger) *NotificationProcessor {
	return &NotificationProcessor{Exchanger: exchanger, Logger: log}
}

// -----------------------------------------------------------------------------

func (p *NotificationProcessor) Process(ctx context.Context, msg models.MMessage) error {
	payload, ok := msg.Payload.(*models.MNotificationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for notification processor", msg.Payload)
	}

	n := &models.MNotification{
		ID:        uuid.NewString(),
		Title:     payload.Title,
		Body:      payload.Body,
		Level:     payload.Level,
		Symbol:    payload.Symbol,
		Data:      payload.Data,
		CreatedAt: time.Now().UTC(),
	}

	p.Exchanger.Broadcast(n)
	p.Logger.Debug("Broadcast notification %s: %s", n.ID, n.Title)
	return nil
}
