package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"signal-hub/src/models"
	"signal-hub/src/validator"
)

// -----------------------------------------------------------------------------

// payloadType reads the message type, defaulting to prices.
func payloadType(payload map[string]interface{}) string {
	if t, ok := payload["type"].(string); ok && t != "" {
		return t
	}
	return models.MessageTypePrices
}

// -----------------------------------------------------------------------------

func pricesData(payload map[string]interface{}) (map[string]interface{}, bool) {
	data, ok := payload["data"].(map[string]interface{})
	return data, ok
}

// -----------------------------------------------------------------------------

// filterPrices keeps the entries whose ticker key is in tickers.
func filterPrices(data map[string]interface{}, tickers []string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, t := range tickers {
		if entry, ok := data[t]; ok {
			out[t] = entry
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// withData copies payload with its data field replaced.
func withData(payload map[string]interface{}, data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	out["data"] = data
	return out
}

// -----------------------------------------------------------------------------

// subscriptionTickers normalizes the first limit entries of a subscribe list.
// Anything other than a JSON array yields an empty list, which clears the filter.
func subscriptionTickers(raw json.RawMessage, limit int) []string {
	tickers := []string{}
	if len(raw) == 0 {
		return tickers
	}

	var entries []interface{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return tickers
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		var t string
		switch v := e.(type) {
		case string:
			t = validator.NormalizeTicker(v)
		case float64:
			t = validator.NormalizeTicker(fmt.Sprint(v))
		default:
			continue
		}
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tickers = append(tickers, t)
	}
	return tickers
}

// -----------------------------------------------------------------------------

// splitTickers parses a comma separated query value.
func splitTickers(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := validator.NormalizeTicker(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// decodeObject reads a JSON object, keeping numbers as json.Number so they are
// re-encoded exactly as received.
func decodeObject(r io.Reader) (map[string]interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return body, nil
}
