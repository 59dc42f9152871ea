package validator

import "fmt"

// Reason classifies why an update was rejected.
type Reason string

const (
	ReasonMissingTicker  Reason = "missing_ticker"
	ReasonInvalidField   Reason = "invalid_field"
	ReasonMissingCandles Reason = "missing_candles"
	ReasonNoValidCandles Reason = "no_valid_candles"
)

// Rejection is returned for any update that fails validation. Nothing is
// persisted or broadcast for a rejected update.
type Rejection struct {
	Reason Reason
	// Field, Received and Type are set for ReasonInvalidField only.
	Field    string
	Received interface{}
	Type     string
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonMissingTicker:
		return "missing ticker"
	case ReasonInvalidField:
		return fmt.Sprintf("missing/invalid %s", r.Field)
	case ReasonMissingCandles:
		return "missing tf_candles"
	case ReasonNoValidCandles:
		return "no_valid_candles"
	}
	return string(r.Reason)
}

// Details is the diagnostic block echoed back to the producer.
func (r *Rejection) Details() map[string]interface{} {
	if r.Reason != ReasonInvalidField {
		return nil
	}
	return map[string]interface{}{
		"field":    r.Field,
		"received": r.Received,
		"type":     r.Type,
	}
}

func invalidField(body map[string]interface{}, field string) *Rejection {
	raw, present := body[field]
	return &Rejection{
		Reason:   ReasonInvalidField,
		Field:    field,
		Received: raw,
		Type:     typeName(raw, present),
	}
}
