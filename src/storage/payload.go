package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf16"
)

// Rows carrying payload_json stay under this size; larger payloads are slimmed,
// then reduced to a minimal key set, then dropped.
const maxPayloadBytes = 50000

// Large optional blocks producers attach that are never needed for replay or UI.
var omitKeys = map[string]struct{}{
	"context": {}, "fundamentals": {}, "profile": {}, "company_profile": {}, "capture": {},
	"description": {}, "longBusinessSummary": {}, "business_summary": {}, "raw": {}, "meta": {},
}

var minimalKeys = []string{
	"ticker", "ts", "price", "close", "htf_score", "ltf_score", "completion", "phase_pct", "state", "rank",
	"flags", "trigger_reason", "trigger_dir", "trigger_price", "sl", "tp", "trigger_ts", "ingest_ts",
	"kanban_stage", "kanban_meta", "entry_ts", "entry_price", "prev_kanban_stage", "move_status",
	"rr", "score", "tp_levels", "pattern_match",
	"prev_close", "day_change", "day_change_pct", "change", "change_pct",
	"is_rth", "session", "ingest_kind", "trade_direction",
}

// -----------------------------------------------------------------------------

// SlimPayload drops the omitted keys at every nesting level.
func SlimPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if _, skip := omitKeys[k]; skip {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = SlimPayload(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// MinimalPayload keeps only the keys replay and the dashboards read.
func MinimalPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(minimalKeys))
	for _, k := range minimalKeys {
		if v, ok := payload[k]; ok {
			out[k] = v
		}
	}
	return out
}

// EncodePayload renders payload_json, returning "" when even the minimal form
// does not fit.
func EncodePayload(payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(SlimPayload(payload))
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	if len(data) <= maxPayloadBytes {
		return string(data), nil
	}

	data, err = json.Marshal(MinimalPayload(payload))
	if err != nil {
		return "", fmt.Errorf("failed to encode minimal payload: %w", err)
	}
	if len(data) <= maxPayloadBytes {
		return string(data), nil
	}
	return "", nil
}

// -----------------------------------------------------------------------------

const (
	fnvOffset32 = 2166136261
	fnvPrime32  = 16777619
)

// StableHash is the 32-bit FNV-1a digest of s in hex, used for dedupe keys.
// It folds in UTF-16 code units rather than bytes so receipt ids match the
// ones producers already compute for the same payload text.
func StableHash(s string) string {
	var h uint32 = fnvOffset32
	for _, unit := range utf16.Encode([]rune(s)) {
		h ^= uint32(unit)
		h *= fnvPrime32
	}
	return strconv.FormatUint(uint64(h), 16)
}
