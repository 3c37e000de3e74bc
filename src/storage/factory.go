package storage

import (
	"fmt"

	"mcp/src/interfaces"
	"mcp/src/logger"
	"mcp/src/models"
)

// -----------------------------------------------------------------------------

// NewJournal returns the journal backend selected by the storage config.
// Disabled storage yields the no-op journal so callers never nil-check.
func NewJournal(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	if !cfg.Storage.Enabled {
		return &NoopJournal{}, nil
	}

	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteJournal(cfg, log), nil
	case "postgres":
		return NewPostgresJournal(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown storage db_type: %q", cfg.Storage.DBType)
	}
}

// -----------------------------------------------------------------------------

// NoopJournal drops every event. Used when storage is disabled.
type NoopJournal struct{}

func (n *NoopJournal) Initialize() error { return nil }

func (n *NoopJournal) SaveSignalEvent(event models.MSignalEvent) error { return nil }

func (n *NoopJournal) SaveOrderEvent(event models.MOrderEvent) error { return nil }

func (n *NoopJournal) CleanupOldData() error { return nil }

func (n *NoopJournal) Close() error { return nil }
