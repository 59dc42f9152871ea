package interfaces

import "signal-hub/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates missing tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveIngestReceipt records a receipt. inserted is false when the receipt id
	// was already present (a duplicate delivery).
	SaveIngestReceipt(receipt models.MIngestReceipt) (inserted bool, err error)

	// DeleteIngestReceipt releases a receipt whose update was not stored, so a
	// producer retry is ingested instead of reported as a duplicate.
	DeleteIngestReceipt(receiptID string) error

	// -----------------------------------------------------------------------------
	// SaveTrailPoint upserts the per-update history row.
	SaveTrailPoint(point models.MTrailPoint) error

	// -----------------------------------------------------------------------------
	// UpsertLatest replaces the latest state for a ticker.
	UpsertLatest(latest models.MLatest) error

	// -----------------------------------------------------------------------------
	// GetLatestStage returns the recorded kanban stage, or "" when none.
	GetLatestStage(ticker string) (string, error)

	// -----------------------------------------------------------------------------
	// HasOpenPosition reports whether the ledger holds an open position.
	HasOpenPosition(ticker string) (bool, error)

	// -----------------------------------------------------------------------------
	// SaveCandles upserts bars by (ticker, tf, ts).
	SaveCandles(ticker string, bars []models.MCandleBar) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Ping checks the connection is alive.
	Ping() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
