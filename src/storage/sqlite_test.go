package storage

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"signal-hub/src/logger"
	"signal-hub/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()

	cfg := &models.MConfig{
		Storage: models.MStorageConfig{
			DBType:            "sqlite",
			DBPath:            filepath.Join(t.TempDir(), "hub.db"),
			DataRetentionDays: 30,
		},
	}
	log := logger.NewLogger(nil, "storage-test")
	log.SetOutput(io.Discard)

	db, err := NewSQLiteDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(f float64) *float64 { return &f }

func TestSaveIngestReceiptDedupes(t *testing.T) {
	db := newTestDB(t)

	r := models.MIngestReceipt{
		ReceiptID:   "AAPL:1700000000000:1a2b3c",
		Ticker:      "AAPL",
		Kind:        models.IngestKindScore,
		Ts:          1700000000000,
		Bucket5m:    1700000000000 / 300000 * 300000,
		ReceivedTs:  1700000000100,
		PayloadHash: "1a2b3c",
	}

	inserted, err := db.SaveIngestReceipt(r)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = db.SaveIngestReceipt(r)
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, db.DeleteIngestReceipt(r.ReceiptID))
	inserted, err = db.SaveIngestReceipt(r)
	require.NoError(t, err)
	assert.True(t, inserted, "a released receipt can be claimed again")
}

func TestLatestStageRoundTrip(t *testing.T) {
	db := newTestDB(t)

	stage, err := db.GetLatestStage("AAPL")
	require.NoError(t, err)
	assert.Empty(t, stage)

	require.NoError(t, db.UpsertLatest(models.MLatest{Ticker: "AAPL", Ts: 1, KanbanStage: "hold", PayloadJSON: `{"ticker":"AAPL"}`}))
	require.NoError(t, db.UpsertLatest(models.MLatest{Ticker: "AAPL", Ts: 2, KanbanStage: "trim"}))

	stage, err = db.GetLatestStage("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "trim", stage)
}

func TestHasOpenPosition(t *testing.T) {
	db := newTestDB(t)

	open, err := db.HasOpenPosition("MSFT")
	require.NoError(t, err)
	assert.False(t, open)

	_, err = db.DB.Exec(`INSERT INTO positions (position_id, ticker, direction, status) VALUES ('p1', 'MSFT', 'LONG', 'CLOSED')`)
	require.NoError(t, err)
	open, err = db.HasOpenPosition("MSFT")
	require.NoError(t, err)
	assert.False(t, open)

	_, err = db.DB.Exec(`INSERT INTO positions (position_id, ticker, direction, status) VALUES ('p2', 'MSFT', 'LONG', 'OPEN')`)
	require.NoError(t, err)
	open, err = db.HasOpenPosition("MSFT")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestSaveTrailPointUpserts(t *testing.T) {
	db := newTestDB(t)

	p := models.MTrailPoint{Ticker: "AAPL", Ts: 10, Kind: models.IngestKindScore, HTFScore: ptr(1), LTFScore: ptr(2), State: "HTF_BULL_LTF_BULL"}
	require.NoError(t, db.SaveTrailPoint(p))
	p.HTFScore = ptr(5)
	require.NoError(t, db.SaveTrailPoint(p))

	var n int
	var htf float64
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(1), MAX(htf_score) FROM timed_trail WHERE ticker = 'AAPL'`).Scan(&n, &htf))
	assert.Equal(t, 1, n)
	assert.Equal(t, 5.0, htf)
}

func TestSaveCandlesUpsertsByKey(t *testing.T) {
	db := newTestDB(t)

	bars := []models.MCandleBar{
		{TF: "5", Ts: 100, O: 1, H: 2, L: 0.5, C: 1.5},
		{TF: "5", Ts: 200, O: 1.5, H: 2, L: 1, C: 1.8, V: ptr(900)},
		{TF: "D", Ts: 100, O: 1, H: 3, L: 0.5, C: 2},
	}
	require.NoError(t, db.SaveCandles("AAPL", bars))

	bars[0].C = 1.6
	require.NoError(t, db.SaveCandles("AAPL", bars[:1]))

	var n int
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(1) FROM ticker_candles WHERE ticker = 'AAPL'`).Scan(&n))
	assert.Equal(t, 3, n)

	var c float64
	require.NoError(t, db.DB.QueryRow(`SELECT c FROM ticker_candles WHERE ticker = 'AAPL' AND tf = '5' AND ts = 100`).Scan(&c))
	assert.Equal(t, 1.6, c)
}

func TestCleanupOldDataKeepsHigherTimeframes(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	old := now.AddDate(0, 0, -60).UnixMilli()
	fresh := now.AddDate(0, 0, -1).UnixMilli()

	require.NoError(t, db.SaveTrailPoint(models.MTrailPoint{Ticker: "AAPL", Ts: old, Kind: "score"}))
	require.NoError(t, db.SaveTrailPoint(models.MTrailPoint{Ticker: "AAPL", Ts: fresh, Kind: "score"}))
	require.NoError(t, db.SaveCandles("AAPL", []models.MCandleBar{
		{TF: "5", Ts: old, O: 1, H: 1, L: 1, C: 1},
		{TF: "D", Ts: old, O: 1, H: 1, L: 1, C: 1},
	}))

	require.NoError(t, db.CleanupOldData())

	var trail, candles int
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(1) FROM timed_trail`).Scan(&trail))
	require.NoError(t, db.DB.QueryRow(`SELECT COUNT(1) FROM ticker_candles`).Scan(&candles))
	assert.Equal(t, 1, trail)
	assert.Equal(t, 1, candles)
}

func TestSubscriptionStores(t *testing.T) {
	stores := map[string]interface {
		SaveSubscription(string, []string) error
		LoadSubscription(string) ([]string, error)
		DeleteSubscription(string) error
	}{
		"memory": NewMemorySubscriptionStore(),
		"sqlite": newTestDB(t),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			subs, err := store.LoadSubscription("c1")
			require.NoError(t, err)
			assert.Empty(t, subs)

			require.NoError(t, store.SaveSubscription("c1", []string{"AAPL", "MSFT"}))
			subs, err = store.LoadSubscription("c1")
			require.NoError(t, err)
			assert.Equal(t, []string{"AAPL", "MSFT"}, subs)

			require.NoError(t, store.SaveSubscription("c1", []string{}))
			subs, err = store.LoadSubscription("c1")
			require.NoError(t, err)
			assert.Empty(t, subs)

			require.NoError(t, store.DeleteSubscription("c1"))
			require.NoError(t, store.DeleteSubscription("c1"))
			subs, err = store.LoadSubscription("c1")
			require.NoError(t, err)
			assert.Nil(t, subs)
		})
	}
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	core := sqlCore{numbered: true}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", core.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	core = sqlCore{schema: "hub"}
	assert.Equal(t, `"hub"."ticker_latest"`, core.table(tableLatest))
	assert.Equal(t, "a = ?", core.rebind("a = ?"))
}

func TestEncodePayload(t *testing.T) {
	payload := map[string]interface{}{
		"ticker":       "AAPL",
		"htf_score":    1.5,
		"fundamentals": map[string]interface{}{"pe": 30},
		"nested":       map[string]interface{}{"raw": "x", "keep": 1},
	}

	out, err := EncodePayload(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"AAPL","htf_score":1.5,"nested":{"keep":1}}`, out)

	big := map[string]interface{}{"ticker": "AAPL", "ts": 1, "blob": strings.Repeat("x", 60000)}
	out, err = EncodePayload(big)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"AAPL","ts":1}`, out)
}

func TestStableHash(t *testing.T) {
	// FNV-1a offset basis for the empty input.
	assert.Equal(t, "811c9dc5", StableHash(""))
	assert.Equal(t, StableHash(`{"a":1}`), StableHash(`{"a":1}`))
	assert.NotEqual(t, StableHash(`{"a":1}`), StableHash(`{"a":2}`))

	testCases := []struct {
		input string
		want  string
	}{
		{"a", "e40c292c"},
		{`{"a":1}`, "8b9e4511"},
		{"é", "6c0b6c44"},
		{"€", "a93e2c4b"},
		{"😀", "cb31c4b8"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, StableHash(tc.input))
		})
	}
}
