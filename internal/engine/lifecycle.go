package engine

import (
	"fmt"

	"straton/internal/market"
)

// runBeforeTrading 在策略实现了 before_trading 槽时，每个市场本地交易日
// 的第一次派发前调用一次。市场按 market_type 参数解析，默认加密（UTC 日）。
// 日期检查与钩子调用持同一把 exec 级锁，并发请求不会同日双开；
// 失败不记当日，同日后续请求重试。
func (e *Engine) runBeforeTrading(execID string, ctx *Context) error {
	if e.dispatcher.hooks.Opener == nil {
		return nil
	}
	kind := market.ResolveKind("", ctx.Params["market_type"])
	localDate := market.LocalTime(ctx.CurrentTime(), kind).Format("2006-01-02")

	st := e.state(execID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.openedDay == localDate {
		return nil
	}

	if err := e.dispatcher.hooks.Opener.BeforeTrading(ctx); err != nil {
		return fmt.Errorf("callback before_trading failed: %w", err)
	}
	st.openedDay = localDate
	return nil
}
