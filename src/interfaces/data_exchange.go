package interfaces

import "mcp/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for pushing notifications to the
// connected client sessions (the real-time connection manager).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast fans the notification out to every connected session.
	Broadcast(n *models.MNotification)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
