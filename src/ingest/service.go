// Package ingest turns validated producer updates into stored rows and hub
// notifications.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"signal-hub/src/helpers"
	"signal-hub/src/interfaces"
	"signal-hub/src/logger"
	"signal-hub/src/metrics"
	"signal-hub/src/models"
	"signal-hub/src/stage"
	"signal-hub/src/storage"
	"signal-hub/src/utils"
	"signal-hub/src/validator"
)

// Receipts are bucketed to five minutes for the dashboards' ingest coverage view.
const bucketMillis = 5 * 60 * 1000

const dbRetries = 3

// -----------------------------------------------------------------------------

type Service struct {
	Config *models.MConfig
	Logger *logger.Logger

	db         interfaces.IDatabase
	notifier   interfaces.INotifier
	calendar   interfaces.ISessionCalendar
	errHandler *helpers.ErrorHandler
	now        func() time.Time
}

// -----------------------------------------------------------------------------

// NewService wires the ingest pipeline. notifier and calendar may be nil, which
// disables broadcasts and session stamping respectively.
func NewService(cfg *models.MConfig, log *logger.Logger, db interfaces.IDatabase, notifier interfaces.INotifier, calendar interfaces.ISessionCalendar) *Service {
	return &Service{
		Config:     cfg,
		Logger:     log,
		db:         db,
		notifier:   notifier,
		calendar:   calendar,
		errHandler: helpers.NewErrorHandler(log),
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// Failures tracks storage failures across ingest calls.
func (s *Service) Failures() *helpers.ErrorHandler {
	return s.errHandler
}

// -----------------------------------------------------------------------------

// Ingest validates body as kind, drops repeats, stores it and notifies the hub.
// Validation failures are returned as *validator.Rejection.
func (s *Service) Ingest(ctx context.Context, kind string, body map[string]interface{}) (*models.MIngestResult, error) {
	var (
		result *models.MIngestResult
		err    error
	)

	switch kind {
	case models.IngestKindScore:
		result, err = s.ingestScore(ctx, body)
	case models.IngestKindCapture:
		result, err = s.ingestCapture(ctx, body)
	case models.IngestKindCandles:
		result, err = s.ingestCandles(body)
	default:
		return nil, fmt.Errorf("unknown ingest kind %q", kind)
	}

	metrics.IngestTotal.WithLabelValues(kind, outcome(result, err)).Inc()
	return result, err
}

// -----------------------------------------------------------------------------

func outcome(result *models.MIngestResult, err error) string {
	switch {
	case err != nil:
		var rejection *validator.Rejection
		if errors.As(err, &rejection) {
			return "rejected"
		}
		return "error"
	case result.Deduped:
		return "deduped"
	default:
		return "ok"
	}
}

// -----------------------------------------------------------------------------
// Score updates
// -----------------------------------------------------------------------------

func (s *Service) ingestScore(ctx context.Context, body map[string]interface{}) (*models.MIngestResult, error) {
	update, err := validator.ValidateScoreUpdate(body)
	if err != nil {
		return nil, err
	}

	payload := update.Payload()
	result := &models.MIngestResult{Ticker: update.Ticker, Kind: models.IngestKindScore}

	receiptID, fresh, err := s.recordReceipt(models.IngestKindScore, update.Ticker, update.Ts, payload)
	if err != nil {
		return nil, err
	}
	if !fresh {
		result.Deduped = true
		return result, nil
	}
	stored := false
	defer s.releaseReceipt(receiptID, &stored)

	recorded, held, err := s.reconcileStage(update.Ticker, payload)
	if err != nil {
		return nil, err
	}
	result.KanbanStage = recorded
	result.StageHeld = held

	s.stampDirection(payload)
	s.stampSession(update.Ticker, update.Ts, payload)

	encoded, err := storage.EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	state, _ := payload["state"].(string)
	point := models.MTrailPoint{
		Ticker:      update.Ticker,
		Ts:          update.Ts,
		Kind:        models.IngestKindScore,
		Price:       numberField(payload, "price"),
		HTFScore:    &update.HTFScore,
		LTFScore:    &update.LTFScore,
		State:       state,
		KanbanStage: recorded,
		PayloadJSON: encoded,
	}
	if err := s.persist(point, models.MLatest{Ticker: update.Ticker, Ts: update.Ts, KanbanStage: recorded, PayloadJSON: encoded}); err != nil {
		return nil, err
	}
	stored = true

	s.notify(ctx, update.Ticker, payload)
	return result, nil
}

// -----------------------------------------------------------------------------

// reconcileStage applies the forward-only rule to the proposed kanban_stage and
// rewrites payload accordingly. It returns the stage to record for the ticker.
func (s *Service) reconcileStage(ticker string, payload map[string]interface{}) (string, bool, error) {
	var previousRaw string
	err := s.errHandler.ExecuteWithRetry("database load stage", func() error {
		var err error
		previousRaw, err = s.db.GetLatestStage(ticker)
		return err
	}, dbRetries)
	if err != nil {
		return "", false, err
	}

	previous, err := stage.Parse(previousRaw)
	if err != nil {
		s.Logger.Warning("Stored stage %q for %s is not a known stage, ignoring it", previousRaw, ticker)
		previous = stage.Unset
	}
	if previous.Valid() {
		payload["prev_kanban_stage"] = previous.String()
	}

	raw, _ := payload["kanban_stage"].(string)
	proposed, err := stage.Parse(raw)
	if err != nil {
		s.Logger.Warning("Unknown kanban_stage %q for %s, keeping %q", raw, ticker, previous.String())
		return previous.String(), false, nil
	}
	if !proposed.Valid() {
		return previous.String(), false, nil
	}

	var open bool
	if previous.Valid() {
		err = s.errHandler.ExecuteWithRetry("database load position", func() error {
			var err error
			open, err = s.db.HasOpenPosition(ticker)
			return err
		}, dbRetries)
		if err != nil {
			return "", false, err
		}
	}

	recorded := stage.Reconcile(proposed, previous, open)
	payload["kanban_stage"] = recorded.String()
	if recorded != proposed {
		s.Logger.Info("Held %s at %s (proposed %s, open position)", ticker, recorded, proposed)
		return recorded.String(), true, nil
	}
	return recorded.String(), false, nil
}

// -----------------------------------------------------------------------------

func (s *Service) stampDirection(payload map[string]interface{}) {
	if _, ok := payload["trade_direction"]; ok {
		return
	}
	state, _ := payload["state"].(string)
	if dir := stage.DeriveDirection(state); dir != stage.DirectionNone {
		payload["trade_direction"] = string(dir)
	}
}

// -----------------------------------------------------------------------------

func (s *Service) stampSession(ticker string, ts int64, payload map[string]interface{}) {
	if s.calendar == nil {
		return
	}
	if _, ok := payload["is_rth"]; ok {
		return
	}
	session := s.calendar.Session(ticker, time.UnixMilli(ts))
	payload["is_rth"] = session == utils.SessionRegular
	if _, ok := payload["session"]; !ok {
		payload["session"] = session
	}
}

// -----------------------------------------------------------------------------
// Capture updates
// -----------------------------------------------------------------------------

func (s *Service) ingestCapture(ctx context.Context, body map[string]interface{}) (*models.MIngestResult, error) {
	update, err := validator.ValidateCaptureUpdate(body)
	if err != nil {
		return nil, err
	}

	payload := update.Payload()
	result := &models.MIngestResult{Ticker: update.Ticker, Kind: models.IngestKindCapture}

	receiptID, fresh, err := s.recordReceipt(models.IngestKindCapture, update.Ticker, update.Ts, payload)
	if err != nil {
		return nil, err
	}
	if !fresh {
		result.Deduped = true
		return result, nil
	}
	stored := false
	defer s.releaseReceipt(receiptID, &stored)

	s.stampSession(update.Ticker, update.Ts, payload)

	encoded, err := storage.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	point := models.MTrailPoint{
		Ticker:      update.Ticker,
		Ts:          update.Ts,
		Kind:        models.IngestKindCapture,
		Price:       update.Price,
		PayloadJSON: encoded,
	}
	if err := s.persistTrail(point); err != nil {
		return nil, err
	}
	stored = true

	s.notify(ctx, update.Ticker, payload)
	return result, nil
}

// -----------------------------------------------------------------------------
// Candles
// -----------------------------------------------------------------------------

func (s *Service) ingestCandles(body map[string]interface{}) (*models.MIngestResult, error) {
	batch, err := validator.ValidateCandleBatch(body, s.now())
	if err != nil {
		return nil, err
	}

	result := &models.MIngestResult{Ticker: batch.Ticker, Kind: models.IngestKindCandles, Candles: batch.Accepted()}

	receiptID, fresh, err := s.recordReceipt(models.IngestKindCandles, batch.Ticker, batch.Ts, batch.Payload())
	if err != nil {
		return nil, err
	}
	if !fresh {
		result.Deduped = true
		return result, nil
	}
	stored := false
	defer s.releaseReceipt(receiptID, &stored)

	err = s.errHandler.ExecuteWithRetry("database save candles", func() error {
		return s.db.SaveCandles(batch.Ticker, batch.Bars())
	}, dbRetries)
	if err != nil {
		return nil, err
	}
	stored = true
	return result, nil
}

// -----------------------------------------------------------------------------
// Persistence
// -----------------------------------------------------------------------------

// recordReceipt claims the receipt for an update and reports whether it is new.
// The receipt id is TICKER:ts:hash of the validated payload.
func (s *Service) recordReceipt(kind, ticker string, ts int64, payload map[string]interface{}) (string, bool, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode payload for %s: %w", ticker, err)
	}
	hash := storage.StableHash(string(canonical))

	encoded, err := storage.EncodePayload(payload)
	if err != nil {
		return "", false, err
	}

	receipt := models.MIngestReceipt{
		ReceiptID:   ticker + ":" + strconv.FormatInt(ts, 10) + ":" + hash,
		Ticker:      ticker,
		Kind:        kind,
		Ts:          ts,
		Bucket5m:    bucket(ts),
		ReceivedTs:  s.now().UnixMilli(),
		PayloadHash: hash,
		PayloadJSON: encoded,
	}

	var inserted bool
	err = s.errHandler.ExecuteWithRetry("database save receipt", func() error {
		var err error
		inserted, err = s.db.SaveIngestReceipt(receipt)
		return err
	}, dbRetries)
	if err != nil {
		return "", false, err
	}
	if !inserted {
		s.Logger.Debug("Duplicate %s update for %s at %d", kind, ticker, ts)
	}
	return receipt.ReceiptID, inserted, nil
}

// -----------------------------------------------------------------------------

// releaseReceipt drops a claimed receipt when the update behind it was not
// stored. It runs deferred, so a panic while persisting releases it too.
func (s *Service) releaseReceipt(receiptID string, stored *bool) {
	if *stored {
		return
	}
	err := s.errHandler.ExecuteWithRetry("database release receipt", func() error {
		return s.db.DeleteIngestReceipt(receiptID)
	}, dbRetries)
	if err != nil {
		s.Logger.Error("Receipt %s kept for an unstored update, retries will be deduped: %v", receiptID, err)
	}
}

// -----------------------------------------------------------------------------

func (s *Service) persist(point models.MTrailPoint, latest models.MLatest) error {
	if err := s.persistTrail(point); err != nil {
		return err
	}
	return s.errHandler.ExecuteWithRetry("database save latest", func() error {
		return s.db.UpsertLatest(latest)
	}, dbRetries)
}

// -----------------------------------------------------------------------------

func (s *Service) persistTrail(point models.MTrailPoint) error {
	return s.errHandler.ExecuteWithRetry("database save trail", func() error {
		return s.db.SaveTrailPoint(point)
	}, dbRetries)
}

// -----------------------------------------------------------------------------

// notify pushes {type:"prices", data:{ticker: payload}, ts}. Failures are
// logged; the update is already stored.
func (s *Service) notify(ctx context.Context, ticker string, payload map[string]interface{}) {
	if s.notifier == nil || s.Config.Ingest.NoBroadcast {
		return
	}

	msg := map[string]interface{}{
		"type": models.MessageTypePrices,
		"data": map[string]interface{}{ticker: payload},
		"ts":   s.now().UnixMilli(),
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		metrics.NotifyFailuresTotal.Inc()
		s.Logger.Warning("Hub notify failed for %s: %v", ticker, err)
	}
}

// -----------------------------------------------------------------------------

func bucket(ts int64) int64 {
	return ts - ts%bucketMillis
}

// -----------------------------------------------------------------------------

// numberField reads an optional finite number from an untyped payload.
func numberField(payload map[string]interface{}, key string) *float64 {
	var f float64
	switch v := payload[key].(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
