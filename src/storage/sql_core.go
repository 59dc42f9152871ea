package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signal-hub/src/logger"
	"signal-hub/src/models"
)

// Table names shared by both backends.
const (
	tableReceipts      = "ingest_receipts"
	tableTrail         = "timed_trail"
	tableLatest        = "ticker_latest"
	tableCandles       = "ticker_candles"
	tablePositions     = "positions"
	tableSubscriptions = "ws_subscriptions"
)

// -----------------------------------------------------------------------------

// sqlCore holds the queries SQLite and Postgres have in common. Queries are
// written with ? placeholders and rebound to $n for Postgres.
type sqlCore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger

	schema   string
	numbered bool
	now      func() time.Time
}

// -----------------------------------------------------------------------------

func (d *sqlCore) table(name string) string {
	if d.schema == "" {
		return name
	}
	return fmt.Sprintf(`"%s"."%s"`, d.schema, name)
}

// -----------------------------------------------------------------------------

func (d *sqlCore) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (d *sqlCore) exec(query string, args ...interface{}) (sql.Result, error) {
	return d.DB.Exec(d.rebind(query), args...)
}

// -----------------------------------------------------------------------------

func (d *sqlCore) SaveIngestReceipt(r models.MIngestReceipt) (bool, error) {
	res, err := d.exec(fmt.Sprintf(`
		INSERT INTO %s (receipt_id, ticker, kind, ts, bucket_5m, received_ts, payload_hash, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (receipt_id) DO NOTHING
	`, d.table(tableReceipts)),
		r.ReceiptID, r.Ticker, r.Kind, r.Ts, r.Bucket5m, r.ReceivedTs, r.PayloadHash, nullString(r.PayloadJSON))
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// -----------------------------------------------------------------------------

func (d *sqlCore) DeleteIngestReceipt(receiptID string) error {
	_, err := d.exec(fmt.Sprintf(`DELETE FROM %s WHERE receipt_id = ?`, d.table(tableReceipts)), receiptID)
	return err
}

// -----------------------------------------------------------------------------

func (d *sqlCore) SaveTrailPoint(p models.MTrailPoint) error {
	_, err := d.exec(fmt.Sprintf(`
		INSERT INTO %s (ticker, ts, kind, price, htf_score, ltf_score, state, kanban_stage, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, ts, kind) DO UPDATE SET
			price = excluded.price,
			htf_score = excluded.htf_score,
			ltf_score = excluded.ltf_score,
			state = excluded.state,
			kanban_stage = excluded.kanban_stage,
			payload_json = excluded.payload_json
	`, d.table(tableTrail)),
		p.Ticker, p.Ts, p.Kind, p.Price, p.HTFScore, p.LTFScore,
		nullString(p.State), nullString(p.KanbanStage), nullString(p.PayloadJSON))
	return err
}

// -----------------------------------------------------------------------------

func (d *sqlCore) UpsertLatest(l models.MLatest) error {
	_, err := d.exec(fmt.Sprintf(`
		INSERT INTO %s (ticker, ts, kanban_stage, payload_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			ts = excluded.ts,
			kanban_stage = excluded.kanban_stage,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at
	`, d.table(tableLatest)),
		l.Ticker, l.Ts, nullString(l.KanbanStage), nullString(l.PayloadJSON), d.now().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *sqlCore) GetLatestStage(ticker string) (string, error) {
	var stage sql.NullString
	err := d.DB.QueryRow(
		d.rebind(fmt.Sprintf(`SELECT kanban_stage FROM %s WHERE ticker = ?`, d.table(tableLatest))),
		ticker,
	).Scan(&stage)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return stage.String, nil
}

// -----------------------------------------------------------------------------

func (d *sqlCore) HasOpenPosition(ticker string) (bool, error) {
	var n int
	err := d.DB.QueryRow(
		d.rebind(fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE ticker = ? AND status = 'OPEN'`, d.table(tablePositions))),
		ticker,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// -----------------------------------------------------------------------------

func (d *sqlCore) SaveCandles(ticker string, bars []models.MCandleBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(d.rebind(fmt.Sprintf(`
		INSERT INTO %s (ticker, tf, ts, o, h, l, c, v)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, tf, ts) DO UPDATE SET
			o = excluded.o,
			h = excluded.h,
			l = excluded.l,
			c = excluded.c,
			v = excluded.v
	`, d.table(tableCandles))))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(ticker, b.TF, b.Ts, b.O, b.H, b.L, b.C, b.V); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

// CleanupOldData drops trail points, receipts and intraday candles past retention.
// Daily, weekly and monthly candles are kept.
func (d *sqlCore) CleanupOldData() error {
	retentionDays := d.Config.Storage.DataRetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := d.now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up data older than %d days (ts < %d)", retentionDays, cutoff)

	var firstErr error
	for _, q := range []string{
		fmt.Sprintf(`DELETE FROM %s WHERE ts < ?`, d.table(tableTrail)),
		fmt.Sprintf(`DELETE FROM %s WHERE ts < ?`, d.table(tableReceipts)),
		fmt.Sprintf(`DELETE FROM %s WHERE ts < ? AND tf NOT IN ('D', 'W', 'M')`, d.table(tableCandles)),
	} {
		if _, err := d.exec(q, cutoff); err != nil {
			d.Logger.Error("Cleanup error: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// -----------------------------------------------------------------------------
// Subscription store
// -----------------------------------------------------------------------------

func (d *sqlCore) SaveSubscription(connID string, tickers []string) error {
	data, err := json.Marshal(tickers)
	if err != nil {
		return err
	}
	_, err = d.exec(fmt.Sprintf(`
		INSERT INTO %s (conn_id, tickers_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conn_id) DO UPDATE SET
			tickers_json = excluded.tickers_json,
			updated_at = excluded.updated_at
	`, d.table(tableSubscriptions)), connID, string(data), d.now().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (d *sqlCore) LoadSubscription(connID string) ([]string, error) {
	var raw string
	err := d.DB.QueryRow(
		d.rebind(fmt.Sprintf(`SELECT tickers_json FROM %s WHERE conn_id = ?`, d.table(tableSubscriptions))),
		connID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tickers []string
	if err := json.Unmarshal([]byte(raw), &tickers); err != nil {
		return nil, fmt.Errorf("corrupt subscription for %s: %w", connID, err)
	}
	return tickers, nil
}

// -----------------------------------------------------------------------------

func (d *sqlCore) DeleteSubscription(connID string) error {
	_, err := d.exec(fmt.Sprintf(`DELETE FROM %s WHERE conn_id = ?`, d.table(tableSubscriptions)), connID)
	return err
}

// -----------------------------------------------------------------------------

func (d *sqlCore) Ping() error {
	if d.DB == nil {
		return errors.New("database not initialized")
	}
	return d.DB.Ping()
}

// -----------------------------------------------------------------------------

func (d *sqlCore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
