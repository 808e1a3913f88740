package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"straton/internal/types"
)

// 框架保留键，策略存取自定义状态时不允许占用。
var reservedKeys = map[string]bool{
	"account":     true,
	"portfolio":   true,
	"params":      true,
	"exec_id":     true,
	"exchange":    true,
	"current_bar": true,
}

var ErrReservedKey = fmt.Errorf("key is reserved by the framework")

// Context 是一次执行的全部状态：账户快照、行情窗口、订单台账。
// 由处理该请求的任务独占，绝不跨请求共享。
type Context struct {
	Account  types.Account
	Params   map[string]string
	ExecID   string
	Exchange string

	marketData []types.MarketDataBlock
	incomplete []types.Order
	completed  []types.Order

	currentBar    types.Bar
	hasCurrentBar bool

	ops   []types.OrderOperation
	store map[string]any

	nowFn func() time.Time
}

// NewContext 从执行请求构建 Context。当前 K 线取第一个行情块的最后一根。
func NewContext(req types.ExecRequest) *Context {
	c := &Context{
		Account:    req.Account,
		Params:     req.StrategyParam,
		ExecID:     req.ExecID,
		Exchange:   req.Exchange,
		marketData: req.MarketDataContext,
		incomplete: req.IncompleteOrders,
		completed:  req.CompletedOrders,
		store:      make(map[string]any),
		nowFn:      time.Now,
	}
	if c.Params == nil {
		c.Params = make(map[string]string)
	}
	if len(req.MarketDataContext) > 0 {
		if bar, ok := req.MarketDataContext[0].LatestBar(); ok {
			c.currentBar = bar
			c.hasCurrentBar = true
		}
	}
	return c
}

// Portfolio 每次都从当前 Account 重新推导，视图永远可再生。
func (c *Context) Portfolio() Portfolio {
	return derivePortfolio(c.Account)
}

// CurrentBar 返回当前 K 线，没有行情时 ok 为 false。
func (c *Context) CurrentBar() (types.Bar, bool) {
	return c.currentBar, c.hasCurrentBar
}

// SetCurrentBar 供回测逐根推进时更新当前 K 线。
func (c *Context) SetCurrentBar(bar types.Bar) {
	c.currentBar = bar
	c.hasCurrentBar = true
}

// CurrentTime 取当前 K 线的收盘时刻；无行情时回退到挂钟。
func (c *Context) CurrentTime() time.Time {
	if c.hasCurrentBar && c.currentBar.CloseTime > 0 {
		return c.currentBar.CloseAt()
	}
	return c.nowFn().UTC()
}

// SetNowFn 仅测试使用。
func (c *Context) SetNowFn(fn func() time.Time) {
	if fn != nil {
		c.nowFn = fn
	}
}

// History 返回某 (symbol, timeframe) 最近 count 根 K 线，旧在前。
func (c *Context) History(symbol string, count int, timeframe string) []types.Bar {
	for _, block := range c.marketData {
		if block.Symbol != symbol || block.Timeframe != timeframe {
			continue
		}
		bars := block.Bars
		if count > 0 && count < len(bars) {
			bars = bars[len(bars)-count:]
		}
		out := make([]types.Bar, len(bars))
		copy(out, bars)
		return out
	}
	return nil
}

// SetHistoryWindow 供回测控制可见窗口（避免未来函数）。
func (c *Context) SetHistoryWindow(blocks []types.MarketDataBlock) {
	c.marketData = blocks
}

// PrimaryBlock 返回第一个行情块，即当前 K 线的来源。
func (c *Context) PrimaryBlock() (types.MarketDataBlock, bool) {
	if len(c.marketData) == 0 {
		return types.MarketDataBlock{}, false
	}
	return c.marketData[0], true
}

func (c *Context) IncompleteOrders() []types.Order {
	out := make([]types.Order, len(c.incomplete))
	copy(out, c.incomplete)
	return out
}

func (c *Context) CompletedOrders() []types.Order {
	out := make([]types.Order, len(c.completed))
	copy(out, c.completed)
	return out
}

// OrderBuy 下买单。price > 0 时为限价单，否则市价单。
func (c *Context) OrderBuy(symbol string, qty, price float64) (types.Order, error) {
	return c.createOrder(symbol, qty, price, types.DirectionBuy)
}

// OrderSell 下卖单。price > 0 时为限价单，否则市价单。
func (c *Context) OrderSell(symbol string, qty, price float64) (types.Order, error) {
	return c.createOrder(symbol, qty, price, types.DirectionSell)
}

func (c *Context) createOrder(symbol string, qty, price float64, dir types.Direction) (types.Order, error) {
	if symbol == "" {
		return types.Order{}, fmt.Errorf("order symbol is required")
	}
	if qty <= 0 {
		return types.Order{}, fmt.Errorf("order qty must be positive, got %v", qty)
	}

	orderType := types.OrderTypeMarket
	limitPrice := ""
	if price > 0 {
		orderType = types.OrderTypeLimit
		limitPrice = decimal.NewFromFloat(price).String()
	}
	order := types.Order{
		UniqueID:   fmt.Sprintf("%s_%s", c.ExecID, uuid.NewString()[:8]),
		Symbol:     symbol,
		Direction:  dir,
		Type:       orderType,
		Qty:        decimal.NewFromFloat(qty).String(),
		LimitPrice: limitPrice,
		Status:     types.OrderStatusNew,
	}
	c.ops = append(c.ops, types.OrderOperation{
		OpType: types.OrderOpCreate,
		Order: types.OrderPayload{
			UniqueID:    order.UniqueID,
			Symbol:      order.Symbol,
			Direction:   order.Direction,
			Type:        order.Type,
			Qty:         order.Qty,
			LimitPrice:  order.LimitPrice,
			TimeInForce: types.TimeInForceGTC,
		},
	})
	return order, nil
}

// CancelOrder 仅当 id 命中本次请求携带的未完成订单时才追加撤单操作。
func (c *Context) CancelOrder(id string) error {
	for _, o := range c.incomplete {
		if o.Matches(id) {
			c.ops = append(c.ops, types.OrderOperation{
				OpType:  types.OrderOpCancel,
				OrderID: id,
			})
			return nil
		}
	}
	return fmt.Errorf("order %q not found in incomplete orders", id)
}

// Operations 返回台账快照；清空由 Engine（响应时）或回测（逐根之间）负责。
func (c *Context) Operations() []types.OrderOperation {
	out := make([]types.OrderOperation, len(c.ops))
	copy(out, c.ops)
	return out
}

// ResetOperations 清空台账。只能由持有本次执行的一方调用。
func (c *Context) ResetOperations() {
	c.ops = c.ops[:0]
}

// Set 写入策略自定义状态；保留键会被拒绝。
func (c *Context) Set(key string, value any) error {
	if reservedKeys[key] {
		return fmt.Errorf("%w: %s", ErrReservedKey, key)
	}
	c.store[key] = value
	return nil
}

// Get 读取策略自定义状态。
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.store[key]
	return v, ok
}
