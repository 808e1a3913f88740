package backtest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"straton/internal/engine"
	"straton/internal/strategy"
	"straton/internal/types"
)

func simBar(i int, close string) types.Bar {
	open := int64(i) * 3_600_000
	return types.Bar{
		OpenTime:  open,
		CloseTime: open + 3_599_999,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    "100",
	}
}

func simBars(closes ...string) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = simBar(i, c)
	}
	return bars
}

// scriptedStrategy 在指定 bar 序号下单，用于精确驱动成交模型。
type scriptedStrategy struct {
	orders map[int]func(ctx *engine.Context) error
	seen   int
}

func (s *scriptedStrategy) Initialize(ctx *engine.Context, sched engine.ScheduleRegistrar) error {
	return nil
}

func (s *scriptedStrategy) HandleBar(ctx *engine.Context, bar types.Bar) error {
	defer func() { s.seen++ }()
	if fn, ok := s.orders[s.seen]; ok {
		return fn(ctx)
	}
	return nil
}

func registerScripted(t *testing.T, name string, s *scriptedStrategy) {
	t.Helper()
	strategy.Register(name, func(params map[string]string) (engine.Strategy, error) {
		return s, nil
	})
}

func TestSimulatorBuyAndSell(t *testing.T) {
	s := &scriptedStrategy{orders: map[int]func(ctx *engine.Context) error{
		0: func(ctx *engine.Context) error {
			_, err := ctx.OrderBuy("BTCUSDT", 2, 0) // 市价，按收盘 100 成交
			return err
		},
		2: func(ctx *engine.Context) error {
			_, err := ctx.OrderSell("BTCUSDT", 2, 0) // 按收盘 120 成交
			return err
		},
	}}
	registerScripted(t, "scripted_buy_sell", s)

	sim := NewSimulator(nil, 0)
	result, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-1",
		Strategy:    "scripted_buy_sell",
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars("100", "110", "120"),
	})
	require.NoError(t, err)

	require.Len(t, result.Fills, 2)
	assert.Equal(t, "100", result.Fills[0].Price)
	assert.Equal(t, "120", result.Fills[1].Price)
	assert.Zero(t, result.DroppedOrders)
	// 1000 - 200 + 240 = 1040
	assert.Equal(t, "1040", result.FinalCash)
	assert.Equal(t, "1040", result.FinalEquity)
	// 持仓清零后不残留
	assert.Empty(t, result.Positions)
	assert.InDelta(t, 4.0, result.ReturnPct, 1e-9)
}

func TestSimulatorLimitPriceWins(t *testing.T) {
	s := &scriptedStrategy{orders: map[int]func(ctx *engine.Context) error{
		0: func(ctx *engine.Context) error {
			_, err := ctx.OrderBuy("BTCUSDT", 1, 95) // 限价 95 而不是收盘 100
			return err
		},
	}}
	registerScripted(t, "scripted_limit", s)

	sim := NewSimulator(nil, 0)
	result, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-2",
		Strategy:    "scripted_limit",
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars("100"),
	})
	require.NoError(t, err)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, "95", result.Fills[0].Price)
	assert.Equal(t, "905", result.FinalCash)
}

func TestSimulatorDropsUnaffordableBuy(t *testing.T) {
	s := &scriptedStrategy{orders: map[int]func(ctx *engine.Context) error{
		0: func(ctx *engine.Context) error {
			_, err := ctx.OrderBuy("BTCUSDT", 100, 0) // 需要 10000，只有 1000
			return err
		},
	}}
	registerScripted(t, "scripted_poor", s)

	sim := NewSimulator(nil, 0)
	result, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-3",
		Strategy:    "scripted_poor",
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars("100"),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Fills)
	assert.Equal(t, 1, result.DroppedOrders)
	assert.Equal(t, "1000", result.FinalCash)
}

func TestSimulatorDropsOversell(t *testing.T) {
	s := &scriptedStrategy{orders: map[int]func(ctx *engine.Context) error{
		0: func(ctx *engine.Context) error {
			_, err := ctx.OrderSell("BTCUSDT", 1, 0) // 没有持仓
			return err
		},
	}}
	registerScripted(t, "scripted_oversell", s)

	sim := NewSimulator(nil, 0)
	result, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-4",
		Strategy:    "scripted_oversell",
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedOrders)
	assert.Equal(t, "1000", result.FinalCash)
}

func TestSimulatorHistoryWindowGrows(t *testing.T) {
	var windows []int
	s := &scriptedStrategy{orders: map[int]func(ctx *engine.Context) error{}}
	for i := 0; i < 3; i++ {
		s.orders[i] = func(ctx *engine.Context) error {
			windows = append(windows, len(ctx.History("BTCUSDT", 0, "1h")))
			return nil
		}
	}
	registerScripted(t, "scripted_window", s)

	sim := NewSimulator(nil, 0)
	_, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-5",
		Strategy:    "scripted_window",
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars("100", "110", "120"),
	})
	require.NoError(t, err)
	// 策略只能看到当根及之前的 K 线
	assert.Equal(t, []int{1, 2, 3}, windows)
}

func TestSimulatorAveragesCost(t *testing.T) {
	s := &scriptedStrategy{orders: map[int]func(ctx *engine.Context) error{
		0: func(ctx *engine.Context) error {
			_, err := ctx.OrderBuy("BTCUSDT", 1, 0) // 100
			return err
		},
		1: func(ctx *engine.Context) error {
			_, err := ctx.OrderBuy("BTCUSDT", 1, 0) // 110
			return err
		},
	}}
	registerScripted(t, "scripted_avg", s)

	sim := NewSimulator(nil, 0)
	result, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-6",
		Strategy:    "scripted_avg",
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars("100", "110"),
	})
	require.NoError(t, err)
	require.Len(t, result.Positions, 1)
	assert.Equal(t, "2", result.Positions[0].Quantity)
	assert.Equal(t, "105", result.Positions[0].AverageCostPrice)
	// 两个 BTC 按最后收盘 110 估值：790 + 220
	equity, _ := decimal.NewFromString(result.FinalEquity)
	assert.Equal(t, "1010", equity.String())
}

func TestSimulatorDoubleMASmoke(t *testing.T) {
	// 缓升后突破，双均线策略应完成至少一次买入
	closes := []string{"10.0", "10.0", "10.0", "10.0", "10.0", "10.0", "11.0", "11.5", "12.0"}
	sim := NewSimulator(nil, 0)
	result, err := sim.Run(context.Background(), RunConfig{
		RunID:       "run-ma",
		Strategy:    "double_ma",
		Params:      map[string]string{"ma_window": "5"},
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		InitialCash: "1000",
		Bars:        simBars(closes...),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Fills)
	assert.Equal(t, types.DirectionBuy, result.Fills[0].Direction)
}

func TestSimulatorValidatesConfig(t *testing.T) {
	sim := NewSimulator(nil, 0)
	_, err := sim.Run(context.Background(), RunConfig{Strategy: "double_ma", Symbol: "", InitialCash: "100"})
	assert.Error(t, err)
	_, err = sim.Run(context.Background(), RunConfig{
		Strategy: "double_ma", Symbol: "BTCUSDT", Timeframe: "1h", InitialCash: "-5", Bars: simBars("1"),
	})
	assert.Error(t, err)
	_, err = sim.Run(context.Background(), RunConfig{
		Strategy: "double_ma", Symbol: "BTCUSDT", Timeframe: "2h", InitialCash: "100", Bars: simBars("1"),
	})
	assert.Error(t, err)
}
