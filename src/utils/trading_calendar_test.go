package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nyTime(t *testing.T, year int, month time.Month, day, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func TestTradingCalendarSessions(t *testing.T) {
	cal := NewTradingCalendar("XNYS")
	require.NotNil(t, cal)

	testCases := []struct {
		desc string
		at   time.Time
		want string
	}{
		{"regular open", nyTime(t, 2024, time.June, 10, 10, 0), SessionRegular},
		{"pre-market", nyTime(t, 2024, time.June, 10, 7, 0), SessionPreMarket},
		{"after hours", nyTime(t, 2024, time.June, 10, 17, 0), SessionAfterHours},
		{"overnight", nyTime(t, 2024, time.June, 10, 22, 0), SessionClosed},
		{"saturday", nyTime(t, 2024, time.June, 8, 11, 0), SessionClosed},
		{"independence day", nyTime(t, 2024, time.July, 4, 11, 0), SessionClosed},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, cal.Session(tc.at))
		})
	}
}

func TestSessionOutsideCalendarYears(t *testing.T) {
	cal := NewTradingCalendar("xnys")
	require.NotNil(t, cal.Calendar)

	testCases := []struct {
		desc string
		at   time.Time
		want string
	}{
		{"epoch evening", time.UnixMilli(1000), SessionAfterHours},
		{"far future open", nyTime(t, 2035, time.June, 11, 10, 0), SessionRegular},
		{"far future saturday", nyTime(t, 2035, time.June, 9, 11, 0), SessionClosed},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tc.want, cal.Session(tc.at))
			})
		})
	}
}

func TestUnknownMICFallsBackToNYSE(t *testing.T) {
	cal := NewTradingCalendar("nowhere")
	assert.Equal(t, "xnys", cal.MIC)
	assert.True(t, cal.IsOpenOnMinute(nyTime(t, 2024, time.June, 10, 10, 0)))
}

func TestMarketSchedulerCachesPerMIC(t *testing.T) {
	ms := NewMarketScheduler("", nil)

	us := ms.CalendarFor("AAPL")
	assert.Same(t, us, ms.CalendarFor("MSFT"))
	assert.Equal(t, "xnys", us.MIC)
	assert.Equal(t, "xlon", ms.CalendarFor("VOD.L").MIC)

	sunday := nyTime(t, 2024, time.June, 9, 12, 0)
	assert.Equal(t, SessionAlwaysOn, ms.Session("BTCUSD", sunday))
	assert.Equal(t, SessionClosed, ms.Session("AAPL", sunday))
}

func TestIsCrypto(t *testing.T) {
	assert.True(t, IsCrypto("ETHUSDT"))
	assert.True(t, IsCrypto("btcusd"))
	assert.False(t, IsCrypto("USD"))
	assert.False(t, IsCrypto("AAPL"))
}
