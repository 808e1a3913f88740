package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar 为单根 K 线。价格与量用十进制字符串承载，避免二进制浮点误差。
type Bar struct {
	OpenTime  int64  `json:"open_time"`
	CloseTime int64  `json:"close_time"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
}

func (b Bar) CloseAt() time.Time {
	return time.UnixMilli(b.CloseTime).UTC()
}

func (b Bar) OpenDecimal() decimal.Decimal   { return parseDecimal(b.Open) }
func (b Bar) HighDecimal() decimal.Decimal   { return parseDecimal(b.High) }
func (b Bar) LowDecimal() decimal.Decimal    { return parseDecimal(b.Low) }
func (b Bar) CloseDecimal() decimal.Decimal  { return parseDecimal(b.Close) }
func (b Bar) VolumeDecimal() decimal.Decimal { return parseDecimal(b.Volume) }

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MarketDataBlock 是请求中携带的某个 (symbol, timeframe) 的历史窗口。
type MarketDataBlock struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Bars      []Bar  `json:"bars"`
}

// LatestBar 返回窗口内最后一根 K 线。
func (m MarketDataBlock) LatestBar() (Bar, bool) {
	if len(m.Bars) == 0 {
		return Bar{}, false
	}
	return m.Bars[len(m.Bars)-1], true
}
