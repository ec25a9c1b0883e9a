package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/event"
)

const waitTimeout = 3 * time.Second
const pollInterval = 5 * time.Millisecond

func newTestMain(t *testing.T) (*MainEngine, *event.EventEngine) {
	t.Helper()
	ee := event.NewEventEngine(time.Hour)
	me := NewMainEngine(ee)
	t.Cleanup(me.Close)
	return me, ee
}

func testContract(gatewayName, symbol string, exchange domain.Exchange) *domain.ContractData {
	return &domain.ContractData{
		GatewayName: gatewayName,
		Symbol:      symbol,
		Exchange:    exchange,
		Product:     domain.ProductFutures,
		Size:        10,
		PriceTick:   1,
	}
}

// 同键快照整体替换，后到覆盖先到
func TestSnapshotReplace(t *testing.T) {
	me, ee := newTestMain(t)
	oms := me.OMS()

	tick1 := &domain.TickData{GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE, LastPrice: 100}
	tick2 := &domain.TickData{GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE, LastPrice: 101}
	ee.Put(event.NewEvent(event.EventTick, tick1))
	ee.Put(event.NewEvent(event.EventTick, tick2))

	require.Eventually(t, func() bool {
		tick := oms.GetTick("rb2510.SHFE")
		return tick != nil && tick.LastPrice == 101
	}, waitTimeout, pollInterval)

	assert.Len(t, oms.GetAllTicks(), 1)
}

// 活跃委托索引随状态变化进出，快照保留终态
func TestActiveOrderIndex(t *testing.T) {
	me, ee := newTestMain(t)
	oms := me.OMS()

	order := &domain.OrderData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		OrderID: "1", Volume: 10, Status: domain.StatusNotTraded,
	}
	ee.Put(event.NewEvent(event.EventOrder, order))

	require.Eventually(t, func() bool {
		return len(oms.GetAllActiveOrders("")) == 1
	}, waitTimeout, pollInterval)

	// 全部成交后移出活跃索引
	done := order.Clone()
	done.Traded = 10
	done.Status = domain.StatusAllTraded
	ee.Put(event.NewEvent(event.EventOrder, done))

	require.Eventually(t, func() bool {
		return len(oms.GetAllActiveOrders("")) == 0
	}, waitTimeout, pollInterval)

	got := oms.GetOrder("GW.1")
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusAllTraded, got.Status)

	// 按品种过滤
	assert.Empty(t, oms.GetAllActiveOrders("rb2510.SHFE"))
}

// 接口首个合约事件触发转换器创建
func TestConverterCreatedOnContract(t *testing.T) {
	me, ee := newTestMain(t)
	oms := me.OMS()

	assert.Nil(t, oms.GetConverter("GW"))

	ee.Put(event.NewEvent(event.EventContract, testContract("GW", "rb2510", domain.ExchangeSHFE)))

	require.Eventually(t, func() bool {
		return oms.GetConverter("GW") != nil
	}, waitTimeout, pollInterval)

	// 不同接口的转换器互相独立
	assert.Nil(t, oms.GetConverter("OTHER"))
}

// 合约事件之前到达的持仓/订单/成交在转换器创建后回放
func TestPendingReplayBeforeContract(t *testing.T) {
	me, ee := newTestMain(t)
	oms := me.OMS()

	ee.Put(event.NewEvent(event.EventPosition, &domain.PositionData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Volume: 10, YdVolume: 6,
	}))
	ee.Put(event.NewEvent(event.EventTrade, &domain.TradeData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		OrderID: "1", TradeID: "t1",
		Direction: domain.DirectionShort, Offset: domain.OffsetClose, Volume: 2,
	}))
	ee.Put(event.NewEvent(event.EventContract, testContract("GW", "rb2510", domain.ExchangeSHFE)))

	// 回放完成后持仓台账达到终态再断言
	require.Eventually(t, func() bool {
		c := oms.GetConverter("GW")
		return c != nil && c.GetPositionHolding("rb2510.SHFE").LongPos == 8
	}, waitTimeout, pollInterval)

	holding := oms.GetConverter("GW").GetPositionHolding("rb2510.SHFE")
	// 持仓快照 10(昨6今4)，回放 SHFE 平仓成交2 扣昨仓
	assert.Equal(t, 8.0, holding.LongPos)
	assert.Equal(t, 4.0, holding.LongYd)
	assert.Equal(t, 4.0, holding.LongTd)
}

// 转换器创建后的委托转换走持仓台账
func TestOmsConvertOrderRequest(t *testing.T) {
	me, ee := newTestMain(t)
	oms := me.OMS()

	ee.Put(event.NewEvent(event.EventContract, testContract("GW", "rb2510", domain.ExchangeSHFE)))
	ee.Put(event.NewEvent(event.EventPosition, &domain.PositionData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Volume: 10, YdVolume: 6,
	}))

	require.Eventually(t, func() bool {
		c := oms.GetConverter("GW")
		return c != nil && c.GetPositionHolding("rb2510.SHFE").LongPos == 10
	}, waitTimeout, pollInterval)

	req := &domain.OrderRequest{
		Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Volume: 9, Price: 100,
	}
	reqs := oms.ConvertOrderRequest(req, "GW", false, false)
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.OffsetCloseToday, reqs[0].Offset)
	assert.Equal(t, 4.0, reqs[0].Volume)
	assert.Equal(t, domain.OffsetCloseYesterday, reqs[1].Offset)
	assert.Equal(t, 5.0, reqs[1].Volume)

	// 无转换器的接口原样放行
	passthrough := oms.ConvertOrderRequest(req, "UNKNOWN", false, false)
	require.Len(t, passthrough, 1)
	assert.Same(t, req, passthrough[0])
}

// 成交/账户/报价快照与活跃报价索引
func TestTradeAccountQuoteSnapshots(t *testing.T) {
	me, ee := newTestMain(t)
	oms := me.OMS()

	ee.Put(event.NewEvent(event.EventTrade, &domain.TradeData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		OrderID: "1", TradeID: "t1", Volume: 2,
	}))
	ee.Put(event.NewEvent(event.EventAccount, &domain.AccountData{
		GatewayName: "GW", AccountID: "a1", Balance: 1000, Frozen: 100,
	}))
	quote := &domain.QuoteData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		QuoteID: "q1", Status: domain.StatusNotTraded,
	}
	ee.Put(event.NewEvent(event.EventQuote, quote))

	require.Eventually(t, func() bool {
		return oms.GetTrade("GW.t1") != nil &&
			oms.GetAccount("GW.a1") != nil &&
			oms.GetQuote("GW.q1") != nil
	}, waitTimeout, pollInterval)

	assert.Equal(t, 900.0, oms.GetAccount("GW.a1").Available())
	assert.Len(t, oms.GetAllActiveQuotes(""), 1)

	cancelled := *quote
	cancelled.Status = domain.StatusCancelled
	ee.Put(event.NewEvent(event.EventQuote, &cancelled))

	require.Eventually(t, func() bool {
		return len(oms.GetAllActiveQuotes("")) == 0
	}, waitTimeout, pollInterval)
}

// 未知标识查询返回零值，不会 panic
func TestQueryUnknownIDs(t *testing.T) {
	me, _ := newTestMain(t)
	oms := me.OMS()

	assert.Nil(t, oms.GetTick("x.SHFE"))
	assert.Nil(t, oms.GetOrder("GW.404"))
	assert.Nil(t, oms.GetTrade("GW.404"))
	assert.Nil(t, oms.GetPosition("GW.x.SHFE.LONG"))
	assert.Nil(t, oms.GetAccount("GW.404"))
	assert.Nil(t, oms.GetContract("x.SHFE"))
	assert.Nil(t, oms.GetQuote("GW.404"))
	assert.Empty(t, oms.GetAllOrders())
}
