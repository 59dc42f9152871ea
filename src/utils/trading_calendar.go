package utils

import (
	"strings"
	"sync"
	"time"

	"signal-hub/src/logger"

	"github.com/scmhub/calendar"
)

// Session labels stamped on ingested payloads.
const (
	SessionPreMarket  = "PM"
	SessionRegular    = "RTH"
	SessionAfterHours = "AH"
	SessionClosed     = "CLOSED"
	SessionAlwaysOn   = "24H"
)

// Extended-hours bounds for US equities, minutes after midnight New York time.
const (
	preMarketStart = 4 * 60
	regularOpen    = 9*60 + 30
	regularClose   = 16 * 60
	afterHoursEnd  = 20 * 60
)

// -----------------------------------------------------------------------------

// TradingCalendar calculates trading days using scmhub/calendar.
type TradingCalendar struct {
	MIC      string
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// NewTradingCalendar loads the calendar for an ISO 10383 MIC, falling back to
// xnys and then to a plain Mon-Fri 09:30-16:00 New York session.
func NewTradingCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(mic)
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		mic = "xnys"
		cal = calendar.GetCalendar(mic)
	}

	if cal == nil {
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{MIC: mic, Calendar: cal, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// covers reports whether the loaded calendar has holiday data for t's year.
// scmhub/calendar panics outside that range, so every lookup goes through here.
func (tc *TradingCalendar) covers(t time.Time) bool {
	if tc.Fallback || tc.Calendar == nil {
		return false
	}
	start, end := tc.Calendar.Years()
	year := t.Year()
	return year >= start && year <= end
}

// -----------------------------------------------------------------------------

// IsTradingDay uses the exchange calendar where it has data and plain Mon-Fri
// rules for any other year.
func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if !tc.covers(date) {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the regular session is open at t, early closes included.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if !tc.covers(t) {
		if !tc.IsTradingDay(t) {
			return false
		}
		mins := t.Hour()*60 + t.Minute()
		return mins >= regularOpen && mins < regularClose
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// Session classifies t. Pre-market and after-hours are only reported for US
// venues; elsewhere anything outside the regular session is closed.
func (tc *TradingCalendar) Session(t time.Time) string {
	if tc.IsOpenOnMinute(t) {
		return SessionRegular
	}
	if !tc.IsTradingDay(t) || (tc.MIC != "xnys" && tc.MIC != "xnas") {
		return SessionClosed
	}

	local := t
	if tc.Timezone != nil {
		local = t.In(tc.Timezone)
	}
	mins := local.Hour()*60 + local.Minute()
	switch {
	case mins >= preMarketStart && mins < regularOpen:
		return SessionPreMarket
	case mins >= regularClose && mins < afterHoursEnd:
		return SessionAfterHours
	default:
		return SessionClosed
	}
}

// -----------------------------------------------------------------------------
// MarketScheduler
// -----------------------------------------------------------------------------

// MarketScheduler picks a calendar per ticker from its exchange suffix and
// caches one calendar per MIC.
type MarketScheduler struct {
	DefaultMIC string
	Logger     *logger.Logger

	mu        sync.Mutex
	calendars map[string]*TradingCalendar
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(defaultMIC string, l *logger.Logger) *MarketScheduler {
	if defaultMIC == "" {
		defaultMIC = "xnys"
	}
	return &MarketScheduler{
		DefaultMIC: strings.ToLower(defaultMIC),
		Logger:     l,
		calendars:  make(map[string]*TradingCalendar),
	}
}

// -----------------------------------------------------------------------------

// Suffix to MIC (ISO 10383), as used by Yahoo-style tickers.
var suffixMIC = []struct {
	suffix string
	mic    string
}{
	{".L", "xlon"}, {".PA", "xpar"}, {".DE", "xfra"}, {".AS", "xams"},
	{".BR", "xbru"}, {".MI", "xmil"}, {".MC", "xmad"}, {".ST", "xsto"},
	{".CO", "xcse"}, {".HE", "xhel"}, {".VI", "xwbo"}, {".SW", "xswx"},
	{".TO", "xtse"}, {".V", "xtsx"}, {".T", "xtks"}, {".HK", "xhkg"},
	{".AX", "xasx"}, {".KS", "xkrx"}, {".TW", "xtai"}, {".SS", "xshg"},
	{".SZ", "xshe"},
}

// -----------------------------------------------------------------------------

func (ms *MarketScheduler) CalendarFor(ticker string) *TradingCalendar {
	mic := ms.DefaultMIC
	upper := strings.ToUpper(ticker)
	for _, m := range suffixMIC {
		if strings.HasSuffix(upper, m.suffix) {
			mic = m.mic
			break
		}
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if cal, ok := ms.calendars[mic]; ok {
		return cal
	}
	cal := NewTradingCalendar(mic)
	if cal.Fallback && ms.Logger != nil {
		ms.Logger.Warning("No calendar for MIC '%s', using Mon-Fri 09:30-16:00 New York", mic)
	}
	ms.calendars[mic] = cal
	return cal
}

// -----------------------------------------------------------------------------

// Session classifies t for ticker. Crypto pairs trade around the clock.
func (ms *MarketScheduler) Session(ticker string, t time.Time) string {
	if IsCrypto(ticker) {
		return SessionAlwaysOn
	}
	return ms.CalendarFor(ticker).Session(t)
}

// -----------------------------------------------------------------------------

// IsCrypto matches USD and USDT quoted pairs such as BTCUSD.
func IsCrypto(ticker string) bool {
	upper := strings.ToUpper(ticker)
	return strings.HasSuffix(upper, "USDT") || (strings.HasSuffix(upper, "USD") && len(upper) > 3)
}
