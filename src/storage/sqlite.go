package storage

import (
	"database/sql"
	"fmt"
	"time"

	"mcp/src/logger"
	"mcp/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------
// SQLite journal. The journal is append-only: signal lifecycle transitions
// and order executions, pruned by retention age.
// -----------------------------------------------------------------------------

type SQLiteJournal struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteJournal(cfg *models.MConfig, log *logger.Logger) *SQLiteJournal {
	return &SQLiteJournal{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) Initialize() error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS signal_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id TEXT NOT NULL,
			symbol TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create signal_events: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			broker_id TEXT NOT NULL,
			signal_id TEXT,
			symbol TEXT,
			side TEXT,
			quantity REAL,
			price REAL,
			status TEXT,
			created_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create order_events: %w", err)
	}

	if _, err := d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_signal_events_signal ON signal_events (signal_id)"); err != nil {
		return fmt.Errorf("failed to create signal_events index: %w", err)
	}
	if _, err := d.DB.Exec("CREATE INDEX IF NOT EXISTS idx_order_events_signal ON order_events (signal_id)"); err != nil {
		return fmt.Errorf("failed to create order_events index: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) SaveSignalEvent(event models.MSignalEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := d.DB.Exec(
		"INSERT INTO signal_events (signal_id, symbol, status, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		event.SignalID, event.Symbol, string(event.Status), event.Detail, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save signal event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) SaveOrderEvent(event models.MOrderEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := d.DB.Exec(
		"INSERT INTO order_events (order_id, broker_id, signal_id, symbol, side, quantity, price, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		event.OrderID, event.BrokerID, event.SignalID, event.Symbol, event.Side, event.Quantity, event.Price, event.Status, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save order event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	res, err := d.DB.Exec("DELETE FROM signal_events WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup signal_events: %w", err)
	}
	signalRows, _ := res.RowsAffected()

	res, err = d.DB.Exec("DELETE FROM order_events WHERE created_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup order_events: %w", err)
	}
	orderRows, _ := res.RowsAffected()

	if signalRows > 0 || orderRows > 0 {
		d.Logger.Info("Journal cleanup removed %d signal events and %d order events", signalRows, orderRows)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
