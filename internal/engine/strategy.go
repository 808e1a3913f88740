package engine

import (
	"time"

	"straton/internal/market"
	"straton/internal/types"
)

// Strategy 是策略组件必须实现的入口。其余回调槽全部可选，
// 通过接口断言发现；缺失的槽不是错误，只是没有东西可调。
type Strategy interface {
	Initialize(ctx *Context, sched ScheduleRegistrar) error
}

// BarHandler 对应 handle_bar 槽（行情触发）。
type BarHandler interface {
	HandleBar(ctx *Context, bar types.Bar) error
}

// OrderHandler 对应 on_order 槽（订单状态触发）。
type OrderHandler interface {
	OnOrder(ctx *Context, order types.Order) error
}

// RiskHandler 对应 on_risk_event 槽（风控触发）。
type RiskHandler interface {
	OnRiskEvent(ctx *Context, event types.RiskEvent) error
}

// TradingOpener 对应 before_trading 槽。
type TradingOpener interface {
	BeforeTrading(ctx *Context) error
}

// ScheduleRegistrar 是注入给策略 Initialize 的注册面：
// 显式对象而不是全局注册表，归属且仅归属一个策略实例。
type ScheduleRegistrar interface {
	Register(fn func(*Context) error, point market.TimePoint, refSymbol string)
}

// Scheduler 在每次派发前跑到期的周期回调。返回的错误只作为告警，
// 不中断请求。
type Scheduler interface {
	RunDue(ctx *Context, now time.Time) []error
}

// Hooks 是策略实例可用回调槽的快照。
type Hooks struct {
	Bar    BarHandler
	Order  OrderHandler
	Risk   RiskHandler
	Opener TradingOpener
}

// HooksOf 用接口断言探测策略实现了哪些槽。
func HooksOf(s Strategy) Hooks {
	var h Hooks
	if v, ok := s.(BarHandler); ok {
		h.Bar = v
	}
	if v, ok := s.(OrderHandler); ok {
		h.Order = v
	}
	if v, ok := s.(RiskHandler); ok {
		h.Risk = v
	}
	if v, ok := s.(TradingOpener); ok {
		h.Opener = v
	}
	return h
}

// HasSlot 报告某个槽名是否可调。
func (h Hooks) HasSlot(name string) bool {
	switch name {
	case SlotHandleBar:
		return h.Bar != nil
	case SlotOnOrder:
		return h.Order != nil
	case SlotOnRiskEvent:
		return h.Risk != nil
	case SlotBeforeTrading:
		return h.Opener != nil
	}
	return false
}
