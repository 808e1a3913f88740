package types

import "encoding/json"

// ExecRequest 是一次策略执行的完整输入，所有数据均已就位，核心不做任何 IO。
type ExecRequest struct {
	TriggerType       TriggerKind       `json:"trigger_type"`
	TriggerDetail     json.RawMessage   `json:"trigger_detail,omitempty"`
	MarketDataContext []MarketDataBlock `json:"market_data_context,omitempty"`
	Account           Account           `json:"account"`
	IncompleteOrders  []Order           `json:"incomplete_orders,omitempty"`
	CompletedOrders   []Order           `json:"completed_orders,omitempty"`
	StrategyParam     map[string]string `json:"strategy_param,omitempty"`
	ExecID            string            `json:"exec_id"`
	Exchange          string            `json:"exchange"`
}

// ExecResponse 携带本次执行收集到的订单操作。
type ExecResponse struct {
	OrderOpEvent []OrderOperation `json:"order_op_event"`
	Status       ExecStatus       `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}
