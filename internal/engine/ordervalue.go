package engine

import (
	"fmt"
	"math"

	"straton/internal/market"
	"straton/internal/types"
)

const targetEpsilon = 1e-8

// OrderValue 按金额下买单：数量 = value / price。股票市场取整到整股；
// 算出的数量不为正时显式报错，而不是静默吞掉。
func (c *Context) OrderValue(symbol string, value, price float64) (types.Order, error) {
	price, err := c.resolvePrice(price)
	if err != nil {
		return types.Order{}, err
	}
	qty := value / price
	if isStockKind(c.resolveKind(symbol)) {
		qty = math.Floor(qty)
	}
	if qty <= 0 {
		return types.Order{}, fmt.Errorf(
			"order_value: computed qty (%v) is zero or negative, value=%v price=%v", qty, value, price)
	}
	return c.OrderBuy(symbol, qty, price)
}

// OrderTarget 调仓到目标数量。差额在浮点容差内视为已达标，返回零值订单。
func (c *Context) OrderTarget(symbol string, targetQty, price float64) (types.Order, bool, error) {
	current, _ := c.Portfolio().PositionQty(symbol).Float64()
	diff := targetQty - current
	if isStockKind(c.resolveKind(symbol)) {
		diff = math.Trunc(diff)
	}
	if math.Abs(diff) < targetEpsilon {
		return types.Order{}, false, nil
	}
	if diff > 0 {
		order, err := c.OrderBuy(symbol, diff, price)
		return order, err == nil, err
	}
	order, err := c.OrderSell(symbol, -diff, price)
	return order, err == nil, err
}

func (c *Context) resolvePrice(price float64) (float64, error) {
	if price > 0 {
		return price, nil
	}
	bar, ok := c.CurrentBar()
	if !ok {
		return 0, fmt.Errorf("cannot determine price: no current bar")
	}
	close, _ := bar.CloseDecimal().Float64()
	if close <= 0 {
		return 0, fmt.Errorf("cannot determine price: current bar close is %s", bar.Close)
	}
	return close, nil
}

func (c *Context) resolveKind(symbol string) market.Kind {
	return market.ResolveKind(symbol, c.Params["market_type"])
}

func isStockKind(kind market.Kind) bool {
	switch kind {
	case market.KindAShare, market.KindUSStock, market.KindHKStock:
		return true
	}
	return false
}
