package interfaces

import "mcp/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the signal/order journal.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSignalEvent appends one signal lifecycle transition.
	SaveSignalEvent(event models.MSignalEvent) error

	// -----------------------------------------------------------------------------

	// SaveOrderEvent appends one order execution record.
	SaveOrderEvent(event models.MOrderEvent) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes rows older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
