package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"straton/internal/types"
)

func TestOrderValueCrypto(t *testing.T) {
	ctx := NewContext(testRequest())

	// 加密市场数量不取整
	order, err := ctx.OrderValue("BTCUSDT", 250, 100)
	require.NoError(t, err)
	assert.Equal(t, "2.5", order.Qty)
	assert.Equal(t, types.DirectionBuy, order.Direction)
}

func TestOrderValueStockFloorsQty(t *testing.T) {
	ctx := NewContext(testRequest())

	order, err := ctx.OrderValue("000001.XSHE", 1050, 100)
	require.NoError(t, err)
	assert.Equal(t, "10", order.Qty)
}

func TestOrderValueResolvesPriceFromBar(t *testing.T) {
	ctx := NewContext(testRequest())

	// price 缺省时用当前 K 线收盘价 11.2
	order, err := ctx.OrderValue("BTCUSDT", 112, 0)
	require.NoError(t, err)
	assert.Equal(t, "10", order.Qty)
}

func TestOrderValueRejectsZeroQty(t *testing.T) {
	ctx := NewContext(testRequest())

	// 50 元买不起 100 元一股的股票，显式报错
	_, err := ctx.OrderValue("000001.XSHE", 50, 100)
	assert.Error(t, err)
	assert.Empty(t, ctx.Operations())
}

func TestOrderValueNoBarNoPrice(t *testing.T) {
	req := testRequest()
	req.MarketDataContext = nil
	ctx := NewContext(req)

	_, err := ctx.OrderValue("BTCUSDT", 100, 0)
	assert.Error(t, err)
}

func TestOrderTargetBuysDifference(t *testing.T) {
	req := testRequest()
	req.Account.Positions = []types.Position{{Symbol: "BTCUSDT", Quantity: "2"}}
	ctx := NewContext(req)

	order, placed, err := ctx.OrderTarget("BTCUSDT", 5, 100)
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, types.DirectionBuy, order.Direction)
	assert.Equal(t, "3", order.Qty)
}

func TestOrderTargetSellsDifference(t *testing.T) {
	req := testRequest()
	req.Account.Positions = []types.Position{{Symbol: "BTCUSDT", Quantity: "5"}}
	ctx := NewContext(req)

	order, placed, err := ctx.OrderTarget("BTCUSDT", 2, 100)
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, types.DirectionSell, order.Direction)
	assert.Equal(t, "3", order.Qty)
}

func TestOrderTargetAlreadyAtTarget(t *testing.T) {
	req := testRequest()
	req.Account.Positions = []types.Position{{Symbol: "BTCUSDT", Quantity: "5"}}
	ctx := NewContext(req)

	_, placed, err := ctx.OrderTarget("BTCUSDT", 5, 100)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.Empty(t, ctx.Operations())
}

func TestOrderTargetStockTruncatesDiff(t *testing.T) {
	req := testRequest()
	req.Account.Positions = []types.Position{{Symbol: "600000.XSHG", Quantity: "100"}}
	ctx := NewContext(req)

	// 差额 0.4 股截断为零，不下单
	_, placed, err := ctx.OrderTarget("600000.XSHG", 100.4, 10)
	require.NoError(t, err)
	assert.False(t, placed)
}
