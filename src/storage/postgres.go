package storage

import (
	"database/sql"
	"fmt"
	"time"

	"signal-hub/src/helpers"
	"signal-hub/src/logger"
	"signal-hub/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	sqlCore
	Schema string
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres: db_connection_string is required")
	}
	schema := cfg.Storage.Schema
	if schema == "" {
		schema = "signal_hub"
	}

	return &PostgresDB{
		sqlCore: sqlCore{
			Config:   cfg,
			Logger:   log,
			schema:   schema,
			numbered: true,
			now:      time.Now,
		},
		Schema: schema,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return err
	}

	// The database container is often still starting when we come up.
	err = helpers.RetryWithBackoff("postgres ping", 5, 500*time.Millisecond, db.Ping)
	if err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s`, d.table(tableSubscriptions))); err != nil {
		return fmt.Errorf("failed to reset %s: %w", tableSubscriptions, err)
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	queries := []struct {
		name  string
		query string
	}{
		{tableReceipts, `
			CREATE TABLE IF NOT EXISTS %s (
				receipt_id TEXT PRIMARY KEY,
				ticker TEXT NOT NULL,
				kind TEXT NOT NULL,
				ts BIGINT NOT NULL,
				bucket_5m BIGINT NOT NULL,
				received_ts BIGINT NOT NULL,
				payload_hash TEXT NOT NULL,
				payload_json TEXT
			);
		`},
		{tableTrail, `
			CREATE TABLE IF NOT EXISTS %s (
				ticker TEXT NOT NULL,
				ts BIGINT NOT NULL,
				kind TEXT NOT NULL,
				price DOUBLE PRECISION,
				htf_score DOUBLE PRECISION,
				ltf_score DOUBLE PRECISION,
				state TEXT,
				kanban_stage TEXT,
				payload_json TEXT,
				PRIMARY KEY (ticker, ts, kind)
			);
		`},
		{tableLatest, `
			CREATE TABLE IF NOT EXISTS %s (
				ticker TEXT PRIMARY KEY,
				ts BIGINT NOT NULL,
				kanban_stage TEXT,
				payload_json TEXT,
				updated_at BIGINT NOT NULL
			);
		`},
		{tableCandles, `
			CREATE TABLE IF NOT EXISTS %s (
				ticker TEXT NOT NULL,
				tf TEXT NOT NULL,
				ts BIGINT NOT NULL,
				o DOUBLE PRECISION,
				h DOUBLE PRECISION,
				l DOUBLE PRECISION,
				c DOUBLE PRECISION,
				v DOUBLE PRECISION,
				PRIMARY KEY (ticker, tf, ts)
			);
		`},
		{tablePositions, `
			CREATE TABLE IF NOT EXISTS %s (
				position_id TEXT PRIMARY KEY,
				ticker TEXT NOT NULL,
				direction TEXT,
				status TEXT NOT NULL,
				opened_ts BIGINT,
				closed_ts BIGINT
			);
		`},
		{tableSubscriptions, `
			CREATE TABLE IF NOT EXISTS %s (
				conn_id TEXT PRIMARY KEY,
				tickers_json TEXT NOT NULL,
				updated_at BIGINT NOT NULL
			);
		`},
	}

	for _, q := range queries {
		if _, err := d.DB.Exec(fmt.Sprintf(q.query, d.table(q.name))); err != nil {
			return fmt.Errorf("failed to create %s: %w", q.name, err)
		}
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_positions_ticker_status ON %s (ticker, status)`, d.table(tablePositions))
	if _, err := d.DB.Exec(index); err != nil {
		return fmt.Errorf("failed to create positions index: %w", err)
	}
	return nil
}
