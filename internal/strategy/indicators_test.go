package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	closes := []float64{10, 10.2, 10.4, 10.6, 10.8}
	assert.InDelta(t, 10.4, SMA(closes, 5), 1e-9)
	// 数据不足
	assert.Zero(t, SMA(closes, 6))
	assert.Zero(t, SMA(nil, 5))
}

func TestRSIExtremes(t *testing.T) {
	// 连涨序列 RSI 接近 100
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Greater(t, RSI(up, 14), 90.0)

	down := make([]float64, 20)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	assert.Less(t, RSI(down, 14), 10.0)

	assert.Zero(t, RSI(up[:10], 14))
}

func TestRSIReversalParams(t *testing.T) {
	_, err := NewRSIReversal(map[string]string{"rsi_period": "1"})
	assert.Error(t, err)
	_, err = NewRSIReversal(map[string]string{"rsi_oversold": "40", "rsi_overbought": "30"})
	assert.Error(t, err)

	s, err := NewRSIReversal(map[string]string{"rsi_period": "7"})
	require.NoError(t, err)
	assert.Equal(t, 7, s.(*RSIReversal).period)
}
