package validator

import "signal-hub/src/models"

var scoreEnvelope = []string{"ticker", "ts", "htf_score", "ltf_score"}

// ValidateScoreUpdate checks a score update. ts, htf_score and ltf_score must be
// finite numbers; every other field is carried through untouched.
func ValidateScoreUpdate(body map[string]interface{}) (*models.MScoreUpdate, error) {
	ticker := tickerOf(body["ticker"])
	if ticker == "" {
		return nil, &Rejection{Reason: ReasonMissingTicker}
	}

	ts, ok := timestamp(body["ts"])
	if !ok {
		return nil, invalidField(body, "ts")
	}
	htf, ok := finite(body["htf_score"])
	if !ok {
		return nil, invalidField(body, "htf_score")
	}
	ltf, ok := finite(body["ltf_score"])
	if !ok {
		return nil, invalidField(body, "ltf_score")
	}

	return &models.MScoreUpdate{
		Ticker:   ticker,
		Ts:       ts,
		HTFScore: htf,
		LTFScore: ltf,
		Extra:    extraFields(body, scoreEnvelope),
	}, nil
}

// extraFields copies body without the envelope keys the validator owns.
func extraFields(body map[string]interface{}, envelope []string) map[string]interface{} {
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		out[k] = v
	}
	for _, k := range envelope {
		delete(out, k)
	}
	return out
}
