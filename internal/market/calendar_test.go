package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptoEveryDayIsTradingDay(t *testing.T) {
	cal := NewCalendar()
	saturday := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)
	springFestival := time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsTradingDay(saturday, KindCrypto))
	assert.True(t, cal.IsTradingDay(sunday, KindCrypto))
	assert.True(t, cal.IsTradingDay(springFestival, KindCrypto))
}

func TestStockWeekendsAndHolidays(t *testing.T) {
	cal := NewCalendar()

	saturday := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsTradingDay(saturday, KindAShare))
	assert.False(t, cal.IsTradingDay(saturday, KindUSStock))

	nationalDay := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsTradingDay(nationalDay, KindAShare))

	independenceDay := time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)
	assert.False(t, cal.IsTradingDay(independenceDay, KindUSStock))

	ordinaryFriday := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, cal.IsTradingDay(ordinaryFriday, KindAShare))
	assert.True(t, cal.IsTradingDay(ordinaryFriday, KindUSStock))
	assert.True(t, cal.IsTradingDay(ordinaryFriday, KindHKStock))
}

func TestTradingDaysRange(t *testing.T) {
	cal := NewCalendar()
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) // 周五
	end := time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)   // 周一
	days := cal.TradingDays(start, end, KindAShare)
	assert.Equal(t, []string{"2024-03-15", "2024-03-18"}, days)

	cryptoDays := cal.TradingDays(start, end, KindCrypto)
	assert.Len(t, cryptoDays, 4)
}

func TestCalendarLoadFileOverride(t *testing.T) {
	content := `markets:
  US_STOCK:
    holidays:
      - "2025-07-04"
`
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cal := NewCalendar()
	require.NoError(t, cal.LoadFile(path))

	assert.False(t, cal.IsTradingDay(time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), KindUSStock))
	// 覆盖后 2024 内置节假日不再生效
	assert.True(t, cal.IsTradingDay(time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), KindUSStock))
	// 周末规则保持默认
	assert.False(t, cal.IsTradingDay(time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC), KindUSStock))
}

func TestCalendarLoadFileRejectsBadDate(t *testing.T) {
	content := `markets:
  HK_STOCK:
    holidays:
      - "not-a-date"
`
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cal := NewCalendar()
	assert.Error(t, cal.LoadFile(path))
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindAShare, DetectKind("000001.XSHE"))
	assert.Equal(t, KindAShare, DetectKind("600000.XSHG"))
	assert.Equal(t, KindUSStock, DetectKind("AAPL.US"))
	assert.Equal(t, KindHKStock, DetectKind("00700.HK"))
	assert.Equal(t, KindCrypto, DetectKind("BTCUSDT"))
	assert.Equal(t, KindCrypto, DetectKind("BTC.USDT"))
	assert.Equal(t, KindUnknown, DetectKind(""))
}

func TestResolveKindPriority(t *testing.T) {
	// 显式配置优先于后缀推断
	assert.Equal(t, KindUSStock, ResolveKind("BTCUSDT", "US_STOCK"))
	// 非法显式配置回落到后缀
	assert.Equal(t, KindAShare, ResolveKind("000001.XSHE", "MOON_MARKET"))
	// 都没有则默认加密
	assert.Equal(t, KindCrypto, ResolveKind("", ""))
}
