package types

// TriggerKind 表示一次执行请求的触发来源。
type TriggerKind int

const (
	TriggerInvalid     TriggerKind = 0
	TriggerMarketData  TriggerKind = 1
	TriggerRiskEvent   TriggerKind = 2
	TriggerOrderStatus TriggerKind = 3
)

func (t TriggerKind) Valid() bool {
	switch t {
	case TriggerMarketData, TriggerRiskEvent, TriggerOrderStatus:
		return true
	}
	return false
}

func (t TriggerKind) String() string {
	switch t {
	case TriggerMarketData:
		return "market_data"
	case TriggerRiskEvent:
		return "risk_event"
	case TriggerOrderStatus:
		return "order_status"
	default:
		return "invalid"
	}
}

type Direction int

const (
	DirectionNone Direction = 0
	DirectionBuy  Direction = 1
	DirectionSell Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "none"
	}
}

type OrderType int

const (
	OrderTypeNone       OrderType = 0
	OrderTypeMarket     OrderType = 1
	OrderTypeLimit      OrderType = 2
	OrderTypeStopMarket OrderType = 3
	OrderTypeStopLimit  OrderType = 4
)

type OrderStatus int

const (
	OrderStatusNone            OrderStatus = 0
	OrderStatusNew             OrderStatus = 1
	OrderStatusPartiallyFilled OrderStatus = 2
	OrderStatusFilled          OrderStatus = 3
	OrderStatusCanceled        OrderStatus = 4
	OrderStatusPendingCancel   OrderStatus = 5
	OrderStatusRejected        OrderStatus = 6
	OrderStatusExpired         OrderStatus = 7
)

// Completed 表示订单已终结，不会再有成交。
func (s OrderStatus) Completed() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

type TimeInForce int

const (
	TimeInForceNone TimeInForce = 0
	TimeInForceIOC  TimeInForce = 1
	TimeInForceGTC  TimeInForce = 2
	TimeInForceFOK  TimeInForce = 3
)

// OrderOpType 是订单操作类别（追加进台账的事件类型）。
type OrderOpType int

const (
	OrderOpNone   OrderOpType = 0
	OrderOpCreate OrderOpType = 1
	OrderOpCancel OrderOpType = 2
	OrderOpModify OrderOpType = 3
)

// ExecStatus 为执行响应状态码。
type ExecStatus int

const (
	ExecSuccess        ExecStatus = 0
	ExecPartialSuccess ExecStatus = 1
	ExecFailed         ExecStatus = 2
)
