package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signal-hub/src/logger"
	"signal-hub/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	sqlCore
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*SQLiteDB, error) {
	if cfg.Storage.DBPath == "" {
		return nil, fmt.Errorf("sqlite: db_path is required")
	}
	return &SQLiteDB{
		sqlCore: sqlCore{
			Config: cfg,
			Logger: log,
			now:    time.Now,
		},
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize() error {
	if dir := filepath.Dir(d.Config.Storage.DBPath); dir != "." && !strings.HasPrefix(d.Config.Storage.DBPath, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	// modernc serializes writers per connection; one writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	// Connections do not survive a restart, so neither do their filters.
	if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s", tableSubscriptions)); err != nil {
		return fmt.Errorf("failed to reset %s: %w", tableSubscriptions, err)
	}

	d.Logger.Info("SQLiteDB initialized successfully (%s)", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	tables := map[string]string{
		tableReceipts: `
			CREATE TABLE IF NOT EXISTS ingest_receipts (
				receipt_id TEXT PRIMARY KEY,
				ticker TEXT NOT NULL,
				kind TEXT NOT NULL,
				ts INTEGER NOT NULL,
				bucket_5m INTEGER NOT NULL,
				received_ts INTEGER NOT NULL,
				payload_hash TEXT NOT NULL,
				payload_json TEXT
			);
		`,
		tableTrail: `
			CREATE TABLE IF NOT EXISTS timed_trail (
				ticker TEXT NOT NULL,
				ts INTEGER NOT NULL,
				kind TEXT NOT NULL,
				price REAL,
				htf_score REAL,
				ltf_score REAL,
				state TEXT,
				kanban_stage TEXT,
				payload_json TEXT,
				PRIMARY KEY (ticker, ts, kind)
			);
		`,
		tableLatest: `
			CREATE TABLE IF NOT EXISTS ticker_latest (
				ticker TEXT PRIMARY KEY,
				ts INTEGER NOT NULL,
				kanban_stage TEXT,
				payload_json TEXT,
				updated_at INTEGER NOT NULL
			);
		`,
		tableCandles: `
			CREATE TABLE IF NOT EXISTS ticker_candles (
				ticker TEXT NOT NULL,
				tf TEXT NOT NULL,
				ts INTEGER NOT NULL,
				o REAL,
				h REAL,
				l REAL,
				c REAL,
				v REAL,
				PRIMARY KEY (ticker, tf, ts)
			);
		`,
		tablePositions: `
			CREATE TABLE IF NOT EXISTS positions (
				position_id TEXT PRIMARY KEY,
				ticker TEXT NOT NULL,
				direction TEXT,
				status TEXT NOT NULL,
				opened_ts INTEGER,
				closed_ts INTEGER
			);
		`,
		tableSubscriptions: `
			CREATE TABLE IF NOT EXISTS ws_subscriptions (
				conn_id TEXT PRIMARY KEY,
				tickers_json TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			);
		`,
	}

	for _, name := range []string{tableReceipts, tableTrail, tableLatest, tableCandles, tablePositions, tableSubscriptions} {
		if _, err := d.DB.Exec(tables[name]); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}

	if _, err := d.DB.Exec(`CREATE INDEX IF NOT EXISTS idx_positions_ticker_status ON positions (ticker, status)`); err != nil {
		return fmt.Errorf("failed to create positions index: %w", err)
	}
	return nil
}
