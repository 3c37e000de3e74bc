package storage

import (
	"database/sql"
	"fmt"
	"time"

	"mcp/src/logger"
	"mcp/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------
// Postgres journal. Same schema as SQLite, with SERIAL ids and timestamptz.
// -----------------------------------------------------------------------------

type PostgresJournal struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresJournal(cfg *models.MConfig, log *logger.Logger) *PostgresJournal {
	return &PostgresJournal{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db
	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS signal_events (
			id SERIAL PRIMARY KEY,
			signal_id TEXT NOT NULL,
			symbol TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create signal_events: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS order_events (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL,
			broker_id TEXT NOT NULL,
			signal_id TEXT,
			symbol TEXT,
			side TEXT,
			quantity DOUBLE PRECISION,
			price DOUBLE PRECISION,
			status TEXT,
			created_at TIMESTAMPTZ NOT NULL
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

func (d *PostgresJournal) SaveSignalEvent(event models.MSignalEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := d.DB.Exec(
		"INSERT INTO signal_events (signal_id, symbol, status, detail, created_at) VALUES ($1, $2, $3, $4, $5)",
		event.SignalID, event.Symbol, string(event.Status), event.Detail, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save signal event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) SaveOrderEvent(event models.MOrderEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := d.DB.Exec(
		"INSERT INTO order_events (order_id, broker_id, signal_id, symbol, side, quantity, price, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		event.OrderID, event.BrokerID, event.SignalID, event.Symbol, event.Side, event.Quantity, event.Price, event.Status, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save order event: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	res, err := d.DB.Exec("DELETE FROM signal_events WHERE created_at < $1", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup signal_events: %w", err)
	}
	signalRows, _ := res.RowsAffected()

	res, err = d.DB.Exec("DELETE FROM order_events WHERE created_at < $1", cutoff)
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

func (d *PostgresJournal) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
