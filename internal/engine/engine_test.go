package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"straton/internal/market"
	"straton/internal/types"
)

// fullStrategy 实现全部回调槽，记录调用轨迹。
type fullStrategy struct {
	initCalls int
	initErr   error

	barCalls  int
	lastBar   types.Bar
	barErr    error
	barPanics bool
	placeBuy  bool

	orderCalls int
	lastOrder  types.Order

	riskCalls int
	lastRisk  types.RiskEvent
}

func (s *fullStrategy) Initialize(ctx *Context, sched ScheduleRegistrar) error {
	s.initCalls++
	return s.initErr
}

func (s *fullStrategy) HandleBar(ctx *Context, bar types.Bar) error {
	s.barCalls++
	s.lastBar = bar
	if s.barPanics {
		panic("strategy blew up")
	}
	if s.placeBuy {
		if _, err := ctx.OrderBuy("BTCUSDT", 1, 100); err != nil {
			return err
		}
	}
	return s.barErr
}

func (s *fullStrategy) OnOrder(ctx *Context, order types.Order) error {
	s.orderCalls++
	s.lastOrder = order
	return nil
}

func (s *fullStrategy) OnRiskEvent(ctx *Context, event types.RiskEvent) error {
	s.riskCalls++
	s.lastRisk = event
	return nil
}

// bareStrategy 只实现 Initialize，不带任何可选槽。
type bareStrategy struct{}

func (bareStrategy) Initialize(ctx *Context, sched ScheduleRegistrar) error { return nil }

func TestNewRequiresStrategy(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestExecuteRoutesMarketData(t *testing.T) {
	s := &fullStrategy{placeBuy: true}
	e, err := New(s)
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Equal(t, 1, s.barCalls)
	// 传入的是第一个行情块的最后一根 K 线
	assert.Equal(t, "11.2", s.lastBar.Close)
	require.Len(t, resp.OrderOpEvent, 1)
	assert.Equal(t, types.OrderOpCreate, resp.OrderOpEvent[0].OpType)
}

func TestExecuteRoutesOrderStatus(t *testing.T) {
	s := &fullStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	req := testRequest()
	req.TriggerType = types.TriggerOrderStatus
	req.IncompleteOrders = []types.Order{{OrderID: "srv-9", Symbol: "BTCUSDT"}}

	resp := e.Execute(req)
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Equal(t, 1, s.orderCalls)
	assert.Equal(t, "srv-9", s.lastOrder.OrderID)
	assert.Zero(t, s.barCalls)
}

func TestExecuteRoutesRiskEvent(t *testing.T) {
	s := &fullStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	req := testRequest()
	req.TriggerType = types.TriggerRiskEvent
	req.TriggerDetail = json.RawMessage(`{"risk_event_type":2,"remark":"margin call"}`)

	resp := e.Execute(req)
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Equal(t, 1, s.riskCalls)
	assert.Equal(t, 2, s.lastRisk.EventType)
	assert.Equal(t, "margin call", s.lastRisk.Remark)
}

func TestExecuteInvalidTrigger(t *testing.T) {
	s := &fullStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	req := testRequest()
	req.TriggerType = types.TriggerInvalid

	resp := e.Execute(req)
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Zero(t, s.barCalls)
	assert.Empty(t, resp.OrderOpEvent)
}

func TestExecuteUnimplementedSlotIsNotAnError(t *testing.T) {
	e, err := New(bareStrategy{})
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Empty(t, resp.OrderOpEvent)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "handle_bar")
}

func TestExecuteInitializeOnce(t *testing.T) {
	s := &fullStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	e.Execute(testRequest())
	e.Execute(testRequest())
	assert.Equal(t, 1, s.initCalls)

	// 不同 exec_id 重新初始化
	req := testRequest()
	req.ExecID = "exec-2"
	e.Execute(req)
	assert.Equal(t, 2, s.initCalls)
}

func TestExecuteFailedInitializeRetries(t *testing.T) {
	s := &fullStrategy{initErr: errors.New("bad params")}
	e, err := New(s)
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecFailed, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "bad params")
	assert.Zero(t, s.barCalls)

	// 初始化失败不记名，下一次请求还会再试
	s.initErr = nil
	resp = e.Execute(testRequest())
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Equal(t, 2, s.initCalls)
}

func TestExecuteCallbackErrorDiscardsOperations(t *testing.T) {
	s := &fullStrategy{placeBuy: true, barErr: errors.New("strategy refused")}
	e, err := New(s)
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecFailed, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "strategy refused")
	// 失败回调排进台账的订单一律作废
	assert.Empty(t, resp.OrderOpEvent)
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	s := &fullStrategy{barPanics: true}
	e, err := New(s)
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecFailed, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "strategy blew up")
	assert.Empty(t, resp.OrderOpEvent)

	// 引擎还能继续处理后续请求
	s.barPanics = false
	resp = e.Execute(testRequest())
	assert.Equal(t, types.ExecSuccess, resp.Status)
}

// openerStrategy 额外实现 before_trading 槽。
type openerStrategy struct {
	bareStrategy
	openCalls int
	openErr   error
}

func (s *openerStrategy) BeforeTrading(ctx *Context) error {
	s.openCalls++
	return s.openErr
}

func TestExecuteBeforeTradingOncePerDay(t *testing.T) {
	s := &openerStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	// 同一 UTC 日内的两次请求只开盘一次
	req := testRequest()
	e.Execute(req)
	e.Execute(req)
	assert.Equal(t, 1, s.openCalls)

	// 下一个交易日再次调用
	next := testRequest()
	for i := range next.MarketDataContext[0].Bars {
		next.MarketDataContext[0].Bars[i].CloseTime += 24 * 3600 * 1000
	}
	e.Execute(next)
	assert.Equal(t, 2, s.openCalls)
}

func TestExecuteBeforeTradingFailureRetries(t *testing.T) {
	s := &openerStrategy{openErr: errors.New("warmup failed")}
	e, err := New(s)
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecFailed, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "warmup failed")

	// 失败不记当日，修复后同日重试成功
	s.openErr = nil
	resp = e.Execute(testRequest())
	assert.Equal(t, types.ExecSuccess, resp.Status)
	assert.Equal(t, 2, s.openCalls)
}

// slowStrategy 的 Initialize 与 BeforeTrading 都停留一段时间，
// 放大并发请求下的重入窗口。
type slowStrategy struct {
	initCalls atomic.Int32
	openCalls atomic.Int32
}

func (s *slowStrategy) Initialize(ctx *Context, sched ScheduleRegistrar) error {
	s.initCalls.Add(1)
	time.Sleep(30 * time.Millisecond)
	return nil
}

func (s *slowStrategy) BeforeTrading(ctx *Context) error {
	s.openCalls.Add(1)
	time.Sleep(30 * time.Millisecond)
	return nil
}

func TestExecuteConcurrentSameExecIDInitializesOnce(t *testing.T) {
	s := &slowStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(testRequest())
		}()
	}
	wg.Wait()

	// 同一 exec_id 的并发请求只初始化一次、同日只开盘一次
	assert.Equal(t, int32(1), s.initCalls.Load())
	assert.Equal(t, int32(1), s.openCalls.Load())
}

func TestEngineEvictsOldestExecState(t *testing.T) {
	s := &fullStrategy{}
	e, err := New(s)
	require.NoError(t, err)

	first := testRequest()
	e.Execute(first)
	for i := 0; i < maxTrackedExecs; i++ {
		req := testRequest()
		req.ExecID = fmt.Sprintf("evict-%d", i)
		e.Execute(req)
	}

	// 最早的 exec_id 已被淘汰，再来重新初始化
	before := s.initCalls
	e.Execute(first)
	assert.Equal(t, before+1, s.initCalls)
}

// stubScheduler 模拟周期回调结果。
type stubScheduler struct{ errs []error }

func (s *stubScheduler) RunDue(ctx *Context, now time.Time) []error { return s.errs }

type stubRegistrar struct{}

func (stubRegistrar) Register(fn func(*Context) error, point market.TimePoint, refSymbol string) {}

func TestExecuteScheduledErrorIsPartialSuccess(t *testing.T) {
	s := &fullStrategy{placeBuy: true}
	sched := &stubScheduler{errs: []error{errors.New("rebalance overflow")}}
	e, err := New(s, WithScheduler(sched, stubRegistrar{}))
	require.NoError(t, err)

	resp := e.Execute(testRequest())
	assert.Equal(t, types.ExecPartialSuccess, resp.Status)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "rebalance overflow")
	// 周期回调失败不丢弃台账
	assert.Len(t, resp.OrderOpEvent, 1)
}
