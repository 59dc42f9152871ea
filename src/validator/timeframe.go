package validator

import (
	"fmt"
	"strings"
)

// TimeframeKey is a canonical candle timeframe.
type TimeframeKey string

const (
	TF1m  TimeframeKey = "1"
	TF3m  TimeframeKey = "3"
	TF5m  TimeframeKey = "5"
	TF10m TimeframeKey = "10"
	TF30m TimeframeKey = "30"
	TF1h  TimeframeKey = "60"
	TF4h  TimeframeKey = "240"
	TF1D  TimeframeKey = "D"
	TF1W  TimeframeKey = "W"
	TF1Mo TimeframeKey = "M"
)

// "1M" is one minute. Monthly is only reachable through M, MONTH, MONTHLY, 1MONTH.
var timeframeAliases = map[string]TimeframeKey{
	"1": TF1m, "1M": TF1m,
	"3": TF3m, "3M": TF3m,
	"5": TF5m, "5M": TF5m,
	"10": TF10m, "10M": TF10m,
	"30": TF30m, "30M": TF30m,
	"60": TF1h, "1H": TF1h, "1HR": TF1h,
	"240": TF4h, "4H": TF4h, "4HR": TF4h,
	"D": TF1D, "1D": TF1D, "DAY": TF1D,
	"W": TF1W, "1W": TF1W, "WEEK": TF1W, "WEEKLY": TF1W,
	"M": TF1Mo, "MONTH": TF1Mo, "MONTHLY": TF1Mo, "1MONTH": TF1Mo,
}

// NormalizeTimeframe maps an alias onto its canonical key. ok is false for
// anything outside the alias table.
func NormalizeTimeframe(raw string) (TimeframeKey, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	tf, ok := timeframeAliases[key]
	return tf, ok
}

func timeframeOf(v interface{}) (TimeframeKey, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return NormalizeTimeframe(t)
	default:
		return NormalizeTimeframe(stringify(t))
	}
}

func stringify(v interface{}) string {
	return fmt.Sprint(v)
}
