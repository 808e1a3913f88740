package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"straton/internal/engine"
	"straton/internal/logger"
	"straton/internal/market"
	"straton/internal/schedule"
	"straton/internal/strategy"
	"straton/internal/types"
)

// positionEpsilon 以内的残余持仓视为清零。
var positionEpsilon = decimal.NewFromFloat(1e-8)

// RunConfig 描述一次回测。
type RunConfig struct {
	RunID       string
	Strategy    string
	Params      map[string]string
	Symbol      string
	Timeframe   string
	InitialCash string
	Bars        []types.Bar
}

// Fill 为一笔模拟成交。
type Fill struct {
	BarIndex  int             `json:"bar_index"`
	Time      int64           `json:"time"`
	Symbol    string          `json:"symbol"`
	Direction types.Direction `json:"direction"`
	Qty       string          `json:"qty"`
	Price     string          `json:"price"`
	Value     string          `json:"value"`
}

// Result 为回测产出。
type Result struct {
	RunID         string           `json:"run_id"`
	InitialCash   string           `json:"initial_cash"`
	FinalCash     string           `json:"final_cash"`
	FinalEquity   string           `json:"final_equity"`
	ReturnPct     float64          `json:"return_pct"`
	Positions     []types.Position `json:"positions"`
	Fills         []Fill           `json:"fills"`
	DroppedOrders int              `json:"dropped_orders"`
	Warnings      []string         `json:"warnings,omitempty"`
	BarsProcessed int              `json:"bars_processed"`
	StartedAt     int64            `json:"started_at"`
	FinishedAt    int64            `json:"finished_at"`
}

// simPosition 跟踪持仓数量与加权成本。
type simPosition struct {
	qty  decimal.Decimal
	cost decimal.Decimal // 平均成本
}

// Simulator 把历史 K 线逐根推给策略引擎，并用简化成交模型结算订单：
// 限价单按限价、市价单按当根收盘成交；资金或持仓不足的订单直接丢弃。
type Simulator struct {
	calendar  *market.Calendar
	tolerance int
}

func NewSimulator(calendar *market.Calendar, toleranceMinutes int) *Simulator {
	if calendar == nil {
		calendar = market.NewCalendar()
	}
	return &Simulator{calendar: calendar, tolerance: toleranceMinutes}
}

// Run 执行一次完整回测。逐根推进时策略只能看到当根及之前的 K 线。
func (s *Simulator) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	if len(cfg.Bars) == 0 {
		return nil, fmt.Errorf("bars 不能为空")
	}
	tf, err := ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}

	initial, err := decimal.NewFromString(cfg.InitialCash)
	if err != nil || initial.Sign() <= 0 {
		return nil, fmt.Errorf("initial cash 非法: %q", cfg.InitialCash)
	}

	strat, err := strategy.New(cfg.Strategy, cfg.Params)
	if err != nil {
		return nil, err
	}
	registry := schedule.NewRegistry(s.calendar, s.tolerance)
	eng, err := engine.New(strat, engine.WithScheduler(registry, registry))
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:       cfg.RunID,
		InitialCash: initial.String(),
		StartedAt:   time.Now().UnixMilli(),
	}
	cash := initial
	positions := make(map[string]*simPosition)

	for i, bar := range cfg.Bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		req := types.ExecRequest{
			TriggerType: types.TriggerMarketData,
			MarketDataContext: []types.MarketDataBlock{{
				Symbol:    cfg.Symbol,
				Timeframe: tf.Key,
				Bars:      cfg.Bars[:i+1],
			}},
			Account:       syntheticAccount(cash, positions),
			StrategyParam: cfg.Params,
			ExecID:        cfg.RunID,
			Exchange:      "backtest",
		}

		resp := eng.Execute(req)
		result.Warnings = append(result.Warnings, resp.Warnings...)
		if resp.Status == types.ExecFailed {
			return nil, fmt.Errorf("bar %d: %s", i, resp.ErrorMessage)
		}

		for _, op := range resp.OrderOpEvent {
			if op.OpType != types.OrderOpCreate {
				// 回测里没有在途订单，撤单/改单无事可做
				continue
			}
			fill, ok := s.settle(op.Order, bar, i, &cash, positions)
			if !ok {
				result.DroppedOrders++
				continue
			}
			result.Fills = append(result.Fills, fill)
		}
		result.BarsProcessed++
	}

	lastClose := cfg.Bars[len(cfg.Bars)-1].CloseDecimal()
	equity := cash
	for sym, pos := range positions {
		result.Positions = append(result.Positions, types.Position{
			Symbol:           sym,
			Quantity:         pos.qty.String(),
			AverageCostPrice: pos.cost.String(),
		})
		equity = equity.Add(pos.qty.Mul(lastClose))
	}
	result.FinalCash = cash.String()
	result.FinalEquity = equity.String()
	ret, _ := equity.Sub(initial).Div(initial).Float64()
	result.ReturnPct = ret * 100
	result.FinishedAt = time.Now().UnixMilli()

	logger.Infof("[backtest] run %s done: bars=%d fills=%d dropped=%d return=%.2f%%",
		cfg.RunID, result.BarsProcessed, len(result.Fills), result.DroppedOrders, result.ReturnPct)
	return result, nil
}

// settle 按简化模型结算一笔下单：限价单按限价、其余按当根收盘。
// 买单要求现金足额，卖单要求持仓足额，否则丢弃。
func (s *Simulator) settle(
	payload types.OrderPayload, bar types.Bar, barIndex int,
	cash *decimal.Decimal, positions map[string]*simPosition,
) (Fill, bool) {
	price := bar.CloseDecimal()
	if payload.Type == types.OrderTypeLimit && payload.LimitPrice != "" {
		if p, err := decimal.NewFromString(payload.LimitPrice); err == nil && p.Sign() > 0 {
			price = p
		}
	}
	qty, err := decimal.NewFromString(payload.Qty)
	if err != nil || qty.Sign() <= 0 || price.Sign() <= 0 {
		return Fill{}, false
	}
	value := price.Mul(qty)

	pos := positions[payload.Symbol]
	switch payload.Direction {
	case types.DirectionBuy:
		if cash.LessThan(value) {
			return Fill{}, false
		}
		*cash = cash.Sub(value)
		if pos == nil {
			positions[payload.Symbol] = &simPosition{qty: qty, cost: price}
		} else {
			total := pos.qty.Mul(pos.cost).Add(value)
			pos.qty = pos.qty.Add(qty)
			pos.cost = total.Div(pos.qty)
		}
	case types.DirectionSell:
		if pos == nil || pos.qty.LessThan(qty) {
			return Fill{}, false
		}
		pos.qty = pos.qty.Sub(qty)
		*cash = cash.Add(value)
		if pos.qty.Abs().LessThanOrEqual(positionEpsilon) {
			delete(positions, payload.Symbol)
		}
	default:
		return Fill{}, false
	}

	return Fill{
		BarIndex:  barIndex,
		Time:      bar.CloseTime,
		Symbol:    payload.Symbol,
		Direction: payload.Direction,
		Qty:       qty.String(),
		Price:     price.String(),
		Value:     value.String(),
	}, true
}

// syntheticAccount 把资金与持仓转成账户快照喂给引擎。
func syntheticAccount(cash decimal.Decimal, positions map[string]*simPosition) types.Account {
	account := types.Account{
		AccountID:       "backtest",
		AvailableMargin: []types.Money{{Currency: "USDT", Amount: cash.String()}},
	}
	for sym, pos := range positions {
		account.Positions = append(account.Positions, types.Position{
			Symbol:           sym,
			Quantity:         pos.qty.String(),
			AverageCostPrice: pos.cost.String(),
		})
	}
	return account
}
