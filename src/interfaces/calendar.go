package interfaces

import "time"

// -----------------------------------------------------------------------------
// ISessionCalendar classifies a timestamp into a trading session for a ticker
// (PM, RTH, AH, CLOSED or 24H).
// -----------------------------------------------------------------------------

type ISessionCalendar interface {
	Session(ticker string, t time.Time) string
}
