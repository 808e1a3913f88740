package schedule

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"straton/internal/engine"
	"straton/internal/logger"
	"straton/internal/market"
)

// entry 为一条周期回调注册项。
type entry struct {
	fn        func(*engine.Context) error
	point     market.TimePoint
	refSymbol string

	// mu 覆盖 lastFired 的检查、回调执行与标记全程，
	// 并发派发下同一条目同一交易日仍只触发一次。
	// lastFired 记录上次触发的市场本地日期（YYYY-MM-DD）。
	mu        sync.Mutex
	lastFired string
}

// Registry 是策略实例私有的周期回调注册表，同时充当引擎的调度器。
// 注册只发生在 Initialize 里，之后 RunDue 在每次派发前扫描到期项。
type Registry struct {
	calendar  *market.Calendar
	tolerance int

	mu      sync.Mutex
	entries []*entry
}

func NewRegistry(calendar *market.Calendar, toleranceMinutes int) *Registry {
	if toleranceMinutes <= 0 {
		toleranceMinutes = market.DefaultToleranceMinutes
	}
	return &Registry{calendar: calendar, tolerance: toleranceMinutes}
}

// Register 登记一条周期回调。重复注册同一 (point, symbol) 是允许的，
// 各自独立触发。
func (r *Registry) Register(fn func(*engine.Context) error, point market.TimePoint, refSymbol string) {
	if fn == nil {
		logger.Warnf("[schedule] ignoring nil callback for point %s symbol %s", point, refSymbol)
		return
	}
	r.mu.Lock()
	r.entries = append(r.entries, &entry{fn: fn, point: point, refSymbol: refSymbol})
	r.mu.Unlock()
	logger.Debugf("[schedule] registered callback: point=%s symbol=%s", point, refSymbol)
}

// Len 返回已注册条目数。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RunDue 执行所有到期的周期回调。单条失败或 panic 只影响自己，
// 错误汇总返回给调用方作告警。
func (r *Registry) RunDue(ctx *engine.Context, now time.Time) []error {
	r.mu.Lock()
	entries := make([]*entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		kind := market.ResolveKind(e.refSymbol, ctx.Params["market_type"])
		local := market.LocalTime(now, kind)
		if !r.calendar.IsTradingDay(local, kind) {
			continue
		}
		if !market.IsTimeMatch(now, kind, e.point, r.tolerance) {
			continue
		}
		if err := r.runEntry(e, ctx, local.Format("2006-01-02")); err != nil {
			errs = append(errs, fmt.Errorf("point=%s symbol=%s: %w", e.point, e.refSymbol, err))
		}
	}
	return errs
}

// runEntry 在条目锁内完成去重检查、执行与当日标记。
// 失败不标记，当日容差窗口内的后续扫描重试。
func (r *Registry) runEntry(e *entry, ctx *engine.Context, localDate string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastFired == localDate {
		return nil
	}
	if err := r.invoke(e, ctx); err != nil {
		return err
	}
	e.lastFired = localDate
	return nil
}

func (r *Registry) invoke(e *entry, ctx *engine.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[schedule] callback panic: point=%s symbol=%s: %v\n%s",
				e.point, e.refSymbol, rec, debug.Stack())
			err = fmt.Errorf("callback panic: %v", rec)
		}
	}()
	return e.fn(ctx)
}
