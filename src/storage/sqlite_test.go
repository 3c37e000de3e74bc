package storage

import (
	"path/filepath"
	"testing"
	"time"

	"mcp/src/logger"
	"mcp/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T, retentionDays int) *SQLiteJournal {
	t.Helper()

	cfg := &models.MConfig{
		Storage: models.MStorageConfig{
			Enabled:       true,
			DBType:        "sqlite",
			DBPath:        filepath.Join(t.TempDir(), "journal.db"),
			RetentionDays: retentionDays,
		},
	}
	j := NewSQLiteJournal(cfg, logger.NewLogger("", "test"))
	require.NoError(t, j.Initialize())
	t.Cleanup(func() { j.Close() })
	return j
}

func countRows(t *testing.T, j *SQLiteJournal, table string) int {
	t.Helper()
	var n int
	require.NoError(t, j.DB.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// -----------------------------------------------------------------------------

func TestJournalPersistsEvents(t *testing.T) {
	j := newTestJournal(t, 30)

	require.NoError(t, j.SaveSignalEvent(models.MSignalEvent{
		SignalID: "sig-1",
		Symbol:   "EURUSD",
		Status:   models.SignalPending,
		Detail:   "signal received",
	}))
	require.NoError(t, j.SaveOrderEvent(models.MOrderEvent{
		OrderID:  "ord-1",
		BrokerID: "alpaca",
		SignalID: "sig-1",
		Symbol:   "EURUSD",
		Side:     "buy",
		Quantity: 1,
		Price:    1.085,
		Status:   "filled",
	}))

	assert.Equal(t, 1, countRows(t, j, "signal_events"))
	assert.Equal(t, 1, countRows(t, j, "order_events"))

	var status string
	require.NoError(t, j.DB.QueryRow("SELECT status FROM signal_events WHERE signal_id = ?", "sig-1").Scan(&status))
	assert.Equal(t, "pending", status)
}

func TestJournalCleanupRemovesExpiredRows(t *testing.T) {
	j := newTestJournal(t, 7)

	old := time.Now().UTC().AddDate(0, 0, -30)
	require.NoError(t, j.SaveSignalEvent(models.MSignalEvent{SignalID: "old", Status: models.SignalPending, CreatedAt: old}))
	require.NoError(t, j.SaveSignalEvent(models.MSignalEvent{SignalID: "fresh", Status: models.SignalPending}))

	require.NoError(t, j.CleanupOldData())

	assert.Equal(t, 1, countRows(t, j, "signal_events"))

	var id string
	require.NoError(t, j.DB.QueryRow("SELECT signal_id FROM signal_events").Scan(&id))
	assert.Equal(t, "fresh", id)
}

func TestJournalCleanupDisabledRetention(t *testing.T) {
	j := newTestJournal(t, 0)

	old := time.Now().UTC().AddDate(0, 0, -365)
	require.NoError(t, j.SaveSignalEvent(models.MSignalEvent{SignalID: "ancient", Status: models.SignalPending, CreatedAt: old}))

	require.NoError(t, j.CleanupOldData())
	assert.Equal(t, 1, countRows(t, j, "signal_events"))
}

// -----------------------------------------------------------------------------

func TestNewJournalFactory(t *testing.T) {
	log := logger.NewLogger("", "test")

	disabled := &models.MConfig{Storage: models.MStorageConfig{Enabled: false}}
	j, err := NewJournal(disabled, log)
	require.NoError(t, err)
	assert.IsType(t, &NoopJournal{}, j)

	unknown := &models.MConfig{Storage: models.MStorageConfig{Enabled: true, DBType: "mongo"}}
	_, err = NewJournal(unknown, log)
	assert.Error(t, err)

	sqliteCfg := &models.MConfig{Storage: models.MStorageConfig{Enabled: true, DBType: "sqlite", DBPath: "x.db"}}
	j, err = NewJournal(sqliteCfg, log)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteJournal{}, j)
}
