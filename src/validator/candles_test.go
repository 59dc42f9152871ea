package validator

import (
	"errors"
	"testing"
	"time"

	"signal-hub/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1_700_000_123_000)

func bar(ts, o, h, l, c float64) map[string]interface{} {
	return map[string]interface{}{"ts": ts, "o": o, "h": h, "l": l, "c": c, "v": 100.0}
}

func TestValidateCandleBatchDropsInvalidBars(t *testing.T) {
	broken := bar(2, 1, 2, 0.5, 1.5)
	delete(broken, "h")

	batch, err := ValidateCandleBatch(map[string]interface{}{
		"ticker":     "aapl",
		"ts":         1000.0,
		"tf_candles": map[string]interface{}{"5m": []interface{}{bar(1, 1, 2, 0.5, 1.5), broken}},
	}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Accepted())
	assert.Equal(t, int64(1000), batch.Ts)

	payload := batch.Payload()
	tfCandles := payload["tf_candles"].(map[string]interface{})
	single, ok := tfCandles["5"].(models.MCandleBar)
	require.True(t, ok, "a lone surviving bar collapses to an object")
	assert.Equal(t, "5", single.TF)
	assert.Equal(t, "candles", payload["ingest_kind"])
}

func TestValidateCandleBatchArrayShape(t *testing.T) {
	first := bar(1, 1, 2, 0.5, 1.5)
	first["tf"] = "1H"
	second := bar(2, 1.5, 2.5, 1, 2)
	second["tf"] = "60"
	second["v"] = "lots"
	unknown := bar(3, 1, 1, 1, 1)
	unknown["tf"] = "2H"

	batch, err := ValidateCandleBatch(map[string]interface{}{
		"ticker":     "msft",
		"tf_candles": []interface{}{first, second, unknown, "junk"},
	}, fixedNow)
	require.NoError(t, err)

	require.Len(t, batch.Candles["60"], 2)
	assert.Nil(t, batch.Candles["60"][1].V)
	assert.Equal(t, 2, batch.Accepted())
	assert.Equal(t, fixedNow.UnixMilli(), batch.Ts, "ts defaults to now")

	_, isList := batch.Payload()["tf_candles"].(map[string]interface{})["60"].([]models.MCandleBar)
	assert.True(t, isList)
}

func TestValidateCandleBatchTimestampRange(t *testing.T) {
	batch, err := ValidateCandleBatch(map[string]interface{}{
		"ticker":     "aapl",
		"ts":         1e20,
		"tf_candles": map[string]interface{}{"5": []interface{}{bar(1e20, 1, 2, 0.5, 1.5), bar(1, 1, 2, 0.5, 1.5)}},
	}, fixedNow)
	require.NoError(t, err)
	require.Len(t, batch.Candles["5"], 1, "a bar whose ts overflows is dropped")
	assert.Equal(t, int64(1), batch.Candles["5"][0].Ts)
	assert.Equal(t, fixedNow.UnixMilli(), batch.Ts, "an unusable top-level ts falls back to now")

	_, err = ValidateCandleBatch(map[string]interface{}{
		"ticker":     "aapl",
		"tf_candles": map[string]interface{}{"5": bar(-1e19, 1, 2, 0.5, 1.5)},
	}, fixedNow)
	var rejection *Rejection
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, ReasonNoValidCandles, rejection.Reason)
}

func TestValidateCandleBatchMonthlyVersusMinute(t *testing.T) {
	batch, err := ValidateCandleBatch(map[string]interface{}{
		"ticker": "qqq",
		"tf_candles": map[string]interface{}{
			"1M":    bar(1, 1, 1, 1, 1),
			"MONTH": bar(2, 1, 1, 1, 1),
		},
	}, fixedNow)
	require.NoError(t, err)
	assert.Len(t, batch.Candles["1"], 1)
	assert.Len(t, batch.Candles["M"], 1)
}

func TestValidateCandleBatchRejections(t *testing.T) {
	allBad := bar(1, 1, 2, 0.5, 1.5)
	allBad["o"] = nil

	testCases := []struct {
		desc   string
		body   map[string]interface{}
		reason Reason
	}{
		{"missing ticker", map[string]interface{}{"tf_candles": map[string]interface{}{}}, ReasonMissingTicker},
		{"missing candles", map[string]interface{}{"ticker": "a"}, ReasonMissingCandles},
		{"scalar candles", map[string]interface{}{"ticker": "a", "tf_candles": "5m"}, ReasonMissingCandles},
		{"every bar invalid", map[string]interface{}{"ticker": "a", "tf_candles": map[string]interface{}{"5": allBad}}, ReasonNoValidCandles},
		{"only unknown timeframes", map[string]interface{}{"ticker": "a", "tf_candles": map[string]interface{}{"bogus": bar(1, 1, 1, 1, 1)}}, ReasonNoValidCandles},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := ValidateCandleBatch(tc.body, fixedNow)
			var rejection *Rejection
			require.True(t, errors.As(err, &rejection))
			assert.Equal(t, tc.reason, rejection.Reason)
		})
	}
}
