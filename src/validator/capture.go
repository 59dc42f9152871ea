package validator

import "signal-hub/src/models"

var captureEnvelope = []string{"ticker", "ts", "price", "ingest_kind"}

// ValidateCaptureUpdate checks a price capture. A missing or non-numeric price
// is recorded as absent rather than rejected.
func ValidateCaptureUpdate(body map[string]interface{}) (*models.MCaptureUpdate, error) {
	ticker := tickerOf(body["ticker"])
	if ticker == "" {
		return nil, &Rejection{Reason: ReasonMissingTicker}
	}

	ts, ok := timestamp(body["ts"])
	if !ok {
		return nil, invalidField(body, "ts")
	}

	update := &models.MCaptureUpdate{
		Ticker: ticker,
		Ts:     ts,
		Extra:  extraFields(body, captureEnvelope),
	}
	if price, ok := finite(body["price"]); ok {
		update.Price = &price
	}
	return update, nil
}
