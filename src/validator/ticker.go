// Package validator normalizes and validates inbound score, capture and candle
// updates before anything is persisted or broadcast.
package validator

import "strings"

// NormalizeTicker trims and upper-cases a symbol and folds both Berkshire class B
// spellings onto BRK-B. An empty result means the ticker is missing.
func NormalizeTicker(raw string) string {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "BRK.B" || normalized == "BRK-B" {
		normalized = "BRK-B"
	}
	return normalized
}

// tickerOf reads a ticker from an untyped body field. null, booleans and zero
// count as missing; other numbers are taken as their decimal text.
func tickerOf(v interface{}) string {
	switch t := v.(type) {
	case nil, bool:
		return ""
	case string:
		return NormalizeTicker(t)
	default:
		if f, ok := finite(t); ok && f == 0 {
			return ""
		}
		return NormalizeTicker(stringify(t))
	}
}
