package strategy

// 技术指标便捷层：输入 K 线序列，返回最新指标值。
// 计算交给 talib，这里只做取值与长度检查。

import (
	"github.com/markcheno/go-talib"

	"straton/internal/types"
)

// Closes 把 K 线序列转成收盘价序列。
func Closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.CloseDecimal().Float64()
	}
	return out
}

// SMA 返回最近一根的简单均线值，数据不足返回 0。
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	v := talib.Sma(closes, period)
	return v[len(v)-1]
}

// EMA 返回最近一根的指数均线值，数据不足返回 0。
func EMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	v := talib.Ema(closes, period)
	return v[len(v)-1]
}

// RSI 返回最近一根的相对强弱值，数据不足返回 0。
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) <= period {
		return 0
	}
	v := talib.Rsi(closes, period)
	return v[len(v)-1]
}

// MACD 返回最近一根的 MACD 线与信号线。
func MACD(closes []float64) (macd, signal float64) {
	if len(closes) < 34 {
		return 0, 0
	}
	m, s, _ := talib.Macd(closes, 12, 26, 9)
	return m[len(m)-1], s[len(s)-1]
}
