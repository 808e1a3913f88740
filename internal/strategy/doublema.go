package strategy

import (
	"fmt"
	"strconv"

	"github.com/markcheno/go-talib"

	"straton/internal/engine"
	"straton/internal/logger"
	"straton/internal/market"
	"straton/internal/types"
)

func init() {
	Register("double_ma", NewDoubleMA)
}

// DoubleMA 是内置的均线突破策略：收盘价上穿均线一定比例买入，
// 下穿则清仓。主要用于回测冒烟与作为写策略的样板。
type DoubleMA struct {
	window    int
	threshold float64
	position  float64 // 本策略自己视角的仓位，下单后乐观更新
}

// NewDoubleMA 从参数构建。ma_window 默认 5，ma_threshold 默认 0.01。
func NewDoubleMA(params map[string]string) (engine.Strategy, error) {
	s := &DoubleMA{window: 5, threshold: 0.01}
	if v := params["ma_window"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("invalid ma_window %q", v)
		}
		s.window = n
	}
	if v := params["ma_threshold"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid ma_threshold %q", v)
		}
		s.threshold = f
	}
	return s, nil
}

func (s *DoubleMA) Initialize(ctx *engine.Context, sched engine.ScheduleRegistrar) error {
	if sched != nil {
		symbol := ctx.Params["symbol"]
		sched.Register(s.logPortfolio, market.PointOpen, symbol)
	}
	logger.Infof("[double_ma] initialized: window=%d threshold=%.4f exec=%s", s.window, s.threshold, ctx.ExecID)
	return nil
}

func (s *DoubleMA) logPortfolio(ctx *engine.Context) error {
	p := ctx.Portfolio()
	logger.Infof("[double_ma] open snapshot: cash=%s positions=%d", p.AvailableCash.String(), len(p.Positions))
	return nil
}

func (s *DoubleMA) HandleBar(ctx *engine.Context, bar types.Bar) error {
	block, ok := ctx.PrimaryBlock()
	if !ok {
		return nil
	}
	symbol := block.Symbol
	bars := ctx.History(symbol, s.window, block.Timeframe)
	if len(bars) < s.window {
		return nil
	}

	// 均线取最近 window 根（含当前），与最新收盘价比较
	closes := make([]float64, 0, s.window)
	for _, b := range bars {
		c, _ := b.CloseDecimal().Float64()
		closes = append(closes, c)
	}
	ma := talib.Sma(closes, s.window)[s.window-1]
	close := closes[len(closes)-1]
	if ma <= 0 || close <= 0 {
		return nil
	}

	held, _ := ctx.Portfolio().PositionQty(symbol).Float64()
	if held <= 0 {
		held = s.position
	}

	switch {
	case held <= 0 && close > ma*(1+s.threshold):
		cash, _ := ctx.Portfolio().AvailableCash.Float64()
		if cash <= 0 {
			return nil
		}
		order, err := ctx.OrderValue(symbol, cash*0.95, close)
		if err != nil {
			return err
		}
		qty, _ := strconv.ParseFloat(order.Qty, 64)
		s.position = qty
		logger.Infof("[double_ma] buy %s qty=%s close=%.4f ma=%.4f", symbol, order.Qty, close, ma)
	case held > 0 && close < ma*(1-s.threshold):
		if _, err := ctx.OrderSell(symbol, held, close); err != nil {
			return err
		}
		s.position = 0
		logger.Infof("[double_ma] sell %s qty=%.6f close=%.4f ma=%.4f", symbol, held, close, ma)
	}
	return nil
}

func (s *DoubleMA) OnOrder(ctx *engine.Context, order types.Order) error {
	logger.Debugf("[double_ma] order update: id=%s status=%d", order.OrderID, order.Status)
	return nil
}
