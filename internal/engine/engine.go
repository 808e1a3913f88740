package engine

import (
	"fmt"
	"runtime/debug"
	"sync"

	"straton/internal/logger"
	"straton/internal/types"
)

// maxTrackedExecs 限制引擎记住的 exec_id 数量，超出后淘汰最久未用的。
const maxTrackedExecs = 1024

// execState 是单个 exec_id 的生命周期状态。st.mu 在回调执行期间
// 一直持有，确保同一 exec_id 的并发请求串行通过初始化与开盘钩子。
type execState struct {
	mu        sync.Mutex
	inited    bool
	openedDay string // 上次 before_trading 的市场本地日期
}

// Engine 把一次执行请求推过完整链路：
// 建 Context → 确保初始化只跑一次 → 跑到期周期回调 → 派发触发回调 → 收台账。
type Engine struct {
	strategy   Strategy
	dispatcher *Dispatcher
	sched      Scheduler
	registrar  ScheduleRegistrar

	mu     sync.Mutex
	states map[string]*execState
	order  []string // states 的插入顺序，用于淘汰
}

type Option func(*Engine)

// WithScheduler 注入周期回调调度器（通常与 registrar 是同一个注册表对象）。
func WithScheduler(s Scheduler, r ScheduleRegistrar) Option {
	return func(e *Engine) {
		e.sched = s
		e.registrar = r
	}
}

// New 构建引擎。策略缺失是装载期致命错误，在任何派发之前就暴露。
func New(strategy Strategy, opts ...Option) (*Engine, error) {
	if strategy == nil {
		return nil, fmt.Errorf("strategy is required: missing initialize entry point")
	}
	e := &Engine{
		strategy:   strategy,
		dispatcher: NewDispatcher(HooksOf(strategy)),
		states:     make(map[string]*execState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// state 返回 execID 对应的状态对象，不存在则创建；
// 超出上限时按插入顺序淘汰最旧的记录。
func (e *Engine) state(execID string) *execState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[execID]; ok {
		return st
	}
	st := &execState{}
	e.states[execID] = st
	e.order = append(e.order, execID)
	for len(e.order) > maxTrackedExecs {
		oldest := e.order[0]
		e.order = e.order[1:]
		delete(e.states, oldest)
	}
	return st
}

// InitializeOnce 只在第一次见到 execID 时调用策略的 Initialize。
// 检查和调用在同一把 exec 级锁里完成，同 execID 的并发请求
// 不会重复触发初始化；失败不记名，下一次请求重试。
func (e *Engine) InitializeOnce(execID string, ctx *Context) error {
	st := e.state(execID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.inited {
		return nil
	}
	if err := e.strategy.Initialize(ctx, e.registrar); err != nil {
		return fmt.Errorf("strategy initialize failed: %w", err)
	}
	st.inited = true
	return nil
}

// Execute 处理一次执行请求。回调内的 panic 与错误在这里收口：
// 状态置 Failed、本次排队的订单操作全部丢弃，系统保持可处理下一个请求。
func (e *Engine) Execute(req types.ExecRequest) (resp types.ExecResponse) {
	ctx := NewContext(req)

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[engine] exec %s panic: %v\n%s", req.ExecID, r, debug.Stack())
			resp = types.ExecResponse{
				OrderOpEvent: []types.OrderOperation{},
				Status:       types.ExecFailed,
				ErrorMessage: fmt.Sprintf("callback panic: %v", r),
			}
		}
	}()

	if err := e.InitializeOnce(req.ExecID, ctx); err != nil {
		return types.ExecResponse{
			OrderOpEvent: []types.OrderOperation{},
			Status:       types.ExecFailed,
			ErrorMessage: err.Error(),
		}
	}

	if err := e.runBeforeTrading(req.ExecID, ctx); err != nil {
		return types.ExecResponse{
			OrderOpEvent: []types.OrderOperation{},
			Status:       types.ExecFailed,
			ErrorMessage: err.Error(),
		}
	}

	var warnings []string
	schedFailed := false
	if e.sched != nil {
		for _, err := range e.sched.RunDue(ctx, ctx.CurrentTime()) {
			warnings = append(warnings, fmt.Sprintf("scheduled callback: %v", err))
			schedFailed = true
		}
	}

	slot, call := e.dispatcher.Dispatch(
		req.TriggerType, req.TriggerDetail, ctx, req.MarketDataContext, ctx.IncompleteOrders())
	if slot != "" && call == nil {
		warnings = append(warnings, fmt.Sprintf("callback slot %q not invoked (unimplemented or no payload)", slot))
	}
	if call != nil {
		if err := call(); err != nil {
			// 失败的回调排进台账的操作一并作废
			return types.ExecResponse{
				OrderOpEvent: []types.OrderOperation{},
				Status:       types.ExecFailed,
				ErrorMessage: fmt.Sprintf("callback %s failed: %v", slot, err),
				Warnings:     warnings,
			}
		}
	}

	status := types.ExecSuccess
	if schedFailed {
		status = types.ExecPartialSuccess
	}
	return types.ExecResponse{
		OrderOpEvent: ctx.Operations(),
		Status:       status,
		Warnings:     warnings,
	}
}
