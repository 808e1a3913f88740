package engine

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"straton/internal/types"
)

// 回调槽名，与触发类别一一对应。
const (
	SlotHandleBar     = "handle_bar"
	SlotOnOrder       = "on_order"
	SlotOnRiskEvent   = "on_risk_event"
	SlotBeforeTrading = "before_trading"
)

var triggerSlots = map[types.TriggerKind]string{
	types.TriggerMarketData:  SlotHandleBar,
	types.TriggerOrderStatus: SlotOnOrder,
	types.TriggerRiskEvent:   SlotOnRiskEvent,
}

// Dispatcher 把触发类别映射到回调槽并组装调用参数。
// 纯函数：不改任何状态，只读可用槽快照。
type Dispatcher struct {
	hooks Hooks
}

func NewDispatcher(hooks Hooks) *Dispatcher {
	return &Dispatcher{hooks: hooks}
}

// Dispatch 返回槽名与一个封装好参数的调用。
// 非法触发类别返回 ("", nil)；槽未实现或缺少参数时返回 (slot, nil)。
func (d *Dispatcher) Dispatch(
	kind types.TriggerKind,
	detail json.RawMessage,
	ctx *Context,
	blocks []types.MarketDataBlock,
	incomplete []types.Order,
) (string, func() error) {
	slot, ok := triggerSlots[kind]
	if !ok {
		return "", nil
	}

	switch kind {
	case types.TriggerMarketData:
		if d.hooks.Bar == nil {
			return slot, nil
		}
		if len(blocks) == 0 {
			return slot, nil
		}
		bar, has := blocks[0].LatestBar()
		if !has {
			return slot, nil
		}
		return slot, func() error { return d.hooks.Bar.HandleBar(ctx, bar) }

	case types.TriggerOrderStatus:
		if d.hooks.Order == nil {
			return slot, nil
		}
		// 没有携带未完成订单时传零值订单，而不是报错
		var order types.Order
		if len(incomplete) > 0 {
			order = incomplete[0]
		}
		return slot, func() error { return d.hooks.Order.OnOrder(ctx, order) }

	case types.TriggerRiskEvent:
		if d.hooks.Risk == nil {
			return slot, nil
		}
		event := riskEventFromDetail(detail)
		return slot, func() error { return d.hooks.Risk.OnRiskEvent(ctx, event) }
	}
	return "", nil
}

func riskEventFromDetail(detail json.RawMessage) types.RiskEvent {
	if len(detail) == 0 {
		return types.RiskEvent{}
	}
	return types.RiskEvent{
		EventType: int(gjson.GetBytes(detail, "risk_event_type").Int()),
		Remark:    gjson.GetBytes(detail, "remark").String(),
	}
}
