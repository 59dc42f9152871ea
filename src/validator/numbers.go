package validator

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// finite coerces a decoded JSON value to a finite float64. Numbers and numeric
// strings qualify; null, booleans, objects and empty strings do not.
func finite(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxTimestamp is the largest integer a float64 holds exactly (2^53).
const maxTimestamp = 1 << 53

// timestamp coerces v to epoch milliseconds. Beyond 2^53 a float64 no longer
// holds an exact integer, so such values are rejected rather than truncated.
func timestamp(v interface{}) (int64, bool) {
	f, ok := finite(v)
	if !ok || math.Abs(f) > maxTimestamp {
		return 0, false
	}
	return int64(f), true
}

// typeName reports a value's JSON type for rejection diagnostics.
func typeName(v interface{}, present bool) string {
	if !present {
		return "undefined"
	}
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return "number"
	case []interface{}:
		return "array"
	default:
		return "object"
	}
}
