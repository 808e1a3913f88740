package types

// Order 为订单快照（服务端 id + 客户端生成的唯一 id）。
type Order struct {
	OrderID      string      `json:"order_id"`
	UniqueID     string      `json:"unique_id"`
	Symbol       string      `json:"symbol"`
	Direction    Direction   `json:"direction_type"`
	Type         OrderType   `json:"order_type"`
	Qty          string      `json:"qty"`
	LimitPrice   string      `json:"limit_price,omitempty"`
	Status       OrderStatus `json:"status"`
	ExecutedSize string      `json:"executed_size,omitempty"`
	AvgFillPrice string      `json:"avg_fill_price,omitempty"`
	Commission   string      `json:"commission,omitempty"`
	CancelReason string      `json:"cancel_reason,omitempty"`
}

// Matches 判断 id 是否命中该订单（服务端 id 或客户端 unique id 均可）。
func (o Order) Matches(id string) bool {
	if id == "" {
		return false
	}
	return o.OrderID == id || o.UniqueID == id
}

// OrderPayload 是 Create 操作携带的下单负载。
type OrderPayload struct {
	UniqueID    string      `json:"unique_id"`
	Symbol      string      `json:"symbol"`
	Direction   Direction   `json:"direction_type"`
	Type        OrderType   `json:"order_type"`
	Qty         string      `json:"qty"`
	LimitPrice  string      `json:"limit_price,omitempty"`
	TimeInForce TimeInForce `json:"time_in_force"`
}

// OrderOperation 为台账中的一条操作，只增不改。
type OrderOperation struct {
	OpType  OrderOpType  `json:"order_op_type"`
	Order   OrderPayload `json:"order,omitempty"`
	OrderID string       `json:"order_id,omitempty"`
}

// RiskEvent 为风控触发事件。
type RiskEvent struct {
	EventType int    `json:"risk_event_type"`
	Remark    string `json:"remark"`
}
