package strategy

import (
	"fmt"
	"strconv"

	"straton/internal/engine"
	"straton/internal/logger"
	"straton/internal/types"
)

func init() {
	Register("rsi_reversal", NewRSIReversal)
}

// RSIReversal 超卖买入、超买卖出的均值回归策略。
type RSIReversal struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversal 从参数构建。rsi_period 默认 14，阈值默认 30/70。
func NewRSIReversal(params map[string]string) (engine.Strategy, error) {
	s := &RSIReversal{period: 14, oversold: 30, overbought: 70}
	if v := params["rsi_period"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("invalid rsi_period %q", v)
		}
		s.period = n
	}
	if v := params["rsi_oversold"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 100 {
			return nil, fmt.Errorf("invalid rsi_oversold %q", v)
		}
		s.oversold = f
	}
	if v := params["rsi_overbought"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= s.oversold || f >= 100 {
			return nil, fmt.Errorf("invalid rsi_overbought %q", v)
		}
		s.overbought = f
	}
	return s, nil
}

func (s *RSIReversal) Initialize(ctx *engine.Context, sched engine.ScheduleRegistrar) error {
	logger.Infof("[rsi_reversal] initialized: period=%d band=%.0f/%.0f exec=%s",
		s.period, s.oversold, s.overbought, ctx.ExecID)
	return nil
}

func (s *RSIReversal) HandleBar(ctx *engine.Context, bar types.Bar) error {
	block, ok := ctx.PrimaryBlock()
	if !ok {
		return nil
	}
	symbol := block.Symbol
	bars := ctx.History(symbol, s.period*3, block.Timeframe)
	rsi := RSI(Closes(bars), s.period)
	if rsi == 0 {
		return nil
	}

	held, _ := ctx.Portfolio().PositionQty(symbol).Float64()
	close, _ := bar.CloseDecimal().Float64()

	switch {
	case held <= 0 && rsi < s.oversold:
		cash, _ := ctx.Portfolio().AvailableCash.Float64()
		if cash <= 0 || close <= 0 {
			return nil
		}
		order, err := ctx.OrderValue(symbol, cash*0.95, close)
		if err != nil {
			return err
		}
		logger.Infof("[rsi_reversal] buy %s qty=%s rsi=%.2f", symbol, order.Qty, rsi)
	case held > 0 && rsi > s.overbought:
		if _, err := ctx.OrderSell(symbol, held, close); err != nil {
			return err
		}
		logger.Infof("[rsi_reversal] sell %s qty=%.6f rsi=%.2f", symbol, held, rsi)
	}
	return nil
}
