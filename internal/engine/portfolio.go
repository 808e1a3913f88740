package engine

import (
	"github.com/shopspring/decimal"

	"straton/internal/types"
)

// Portfolio 是由 Account 推导出的只读视图，不是状态源。
// 每次从当前 Account 重新计算，调用方改了 Account 之后再取一次即可。
type Portfolio struct {
	AvailableCash  decimal.Decimal
	Positions      map[string]types.Position
	PositionsValue decimal.Decimal
}

// derivePortfolio 重建视图。可用资金回退链：available_margin 合计 → balances free 合计。
func derivePortfolio(account types.Account) Portfolio {
	p := Portfolio{
		AvailableCash:  decimal.Zero,
		Positions:      make(map[string]types.Position, len(account.Positions)),
		PositionsValue: decimal.Zero,
	}

	for _, m := range account.AvailableMargin {
		p.AvailableCash = p.AvailableCash.Add(m.Decimal())
	}
	if p.AvailableCash.IsZero() {
		for _, b := range account.Balances {
			p.AvailableCash = p.AvailableCash.Add(parseDecimal(b.Free))
		}
	}

	for _, pos := range account.Positions {
		if pos.Symbol == "" {
			continue
		}
		p.Positions[pos.Symbol] = pos
		qty := pos.QuantityDecimal()
		cost := parseDecimal(pos.AverageCostPrice)
		p.PositionsValue = p.PositionsValue.Add(qty.Mul(cost))
	}
	return p
}

// PositionQty 返回某标的当前持仓数量，无持仓为 0。
func (p Portfolio) PositionQty(symbol string) decimal.Decimal {
	pos, ok := p.Positions[symbol]
	if !ok {
		return decimal.Zero
	}
	return pos.QuantityDecimal()
}

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
