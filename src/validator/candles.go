package validator

import (
	"time"

	"signal-hub/src/models"
)

var candleEnvelope = []string{"ticker", "ts", "tf_candles", "ingest_kind"}

// ValidateCandleBatch checks a candle batch. tf_candles is either a list of
// {tf, ts, o, h, l, c, v} entries or a map of timeframe to one bar or a list of
// bars. Bars with an unknown timeframe or non-finite ts/o/h/l/c are dropped;
// the batch only fails when none survive.
func ValidateCandleBatch(body map[string]interface{}, now time.Time) (*models.MCandleBatch, error) {
	ticker := tickerOf(body["ticker"])
	if ticker == "" {
		return nil, &Rejection{Reason: ReasonMissingTicker}
	}

	raw, present := body["tf_candles"]
	if !present || raw == nil {
		return nil, &Rejection{Reason: ReasonMissingCandles}
	}

	candidates := make(map[TimeframeKey][]interface{})
	switch tfCandles := raw.(type) {
	case []interface{}:
		for _, item := range tfCandles {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			tf, ok := timeframeOf(entry["tf"])
			if !ok {
				continue
			}
			candidates[tf] = append(candidates[tf], entry)
		}
	case map[string]interface{}:
		for tfRaw, candleOrList := range tfCandles {
			tf, ok := NormalizeTimeframe(tfRaw)
			if !ok {
				continue
			}
			if list, isList := candleOrList.([]interface{}); isList {
				candidates[tf] = append(candidates[tf], list...)
			} else {
				candidates[tf] = append(candidates[tf], candleOrList)
			}
		}
	default:
		return nil, &Rejection{Reason: ReasonMissingCandles}
	}

	out := make(map[string][]models.MCandleBar, len(candidates))
	for tf, list := range candidates {
		for _, item := range list {
			if bar, ok := validBar(tf, item); ok {
				out[string(tf)] = append(out[string(tf)], bar)
			}
		}
	}

	batch := &models.MCandleBatch{
		Ticker:  ticker,
		Candles: out,
		Extra:   extraFields(body, candleEnvelope),
	}
	if batch.Accepted() == 0 {
		return nil, &Rejection{Reason: ReasonNoValidCandles}
	}

	if ts, ok := timestamp(body["ts"]); ok {
		batch.Ts = ts
	} else {
		batch.Ts = now.UnixMilli()
	}
	return batch, nil
}

func validBar(tf TimeframeKey, item interface{}) (models.MCandleBar, bool) {
	candle, ok := item.(map[string]interface{})
	if !ok {
		return models.MCandleBar{}, false
	}

	ts, ok := timestamp(candle["ts"])
	if !ok {
		return models.MCandleBar{}, false
	}
	var ohlc [4]float64
	for i, key := range [4]string{"o", "h", "l", "c"} {
		if ohlc[i], ok = finite(candle[key]); !ok {
			return models.MCandleBar{}, false
		}
	}

	bar := models.MCandleBar{
		TF: string(tf),
		Ts: ts,
		O:  ohlc[0],
		H:  ohlc[1],
		L:  ohlc[2],
		C:  ohlc[3],
	}
	if v, ok := finite(candle["v"]); ok {
		bar.V = &v
	}
	return bar, true
}
