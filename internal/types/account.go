package types

import "github.com/shopspring/decimal"

// Money 为带币种的金额。
type Money struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

func (m Money) Decimal() decimal.Decimal { return parseDecimal(m.Amount) }

// Balance 为单币种余额，free 部分参与可用资金计算。
type Balance struct {
	Currency string `json:"currency"`
	Free     string `json:"free"`
	Locked   string `json:"locked,omitempty"`
}

// Position 为账户持仓条目。
type Position struct {
	Symbol           string `json:"symbol"`
	Quantity         string `json:"quantity"`
	CloseableAmount  string `json:"closeable_amount,omitempty"`
	AverageCostPrice string `json:"average_cost_price,omitempty"`
	UnrealizedPnL    string `json:"unrealized_pnl,omitempty"`
	PositionSide     string `json:"position_side,omitempty"`
}

func (p Position) QuantityDecimal() decimal.Decimal { return parseDecimal(p.Quantity) }

// Account 为调用方提供的权威账户快照。Portfolio 视图始终由它重新推导。
type Account struct {
	AccountID       string     `json:"account_id"`
	AccountType     int        `json:"account_type"`
	TotalNetValue   []Money    `json:"total_net_value,omitempty"`
	AvailableMargin []Money    `json:"available_margin,omitempty"`
	MarginRatio     float64    `json:"margin_ratio"`
	RiskLevel       float64    `json:"risk_level"`
	Leverage        float64    `json:"leverage"`
	Balances        []Balance  `json:"balances,omitempty"`
	Positions       []Position `json:"positions,omitempty"`
}
