package riskmanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/engine"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/config"
	"github.com/quantbot/gotrader/pkg/persistence"
)

func newTestRisk(t *testing.T, cfg config.RiskConfig) (*Engine, *engine.MainEngine, *event.EventEngine) {
	t.Helper()
	ee := event.NewEventEngine(time.Hour)
	me := engine.NewMainEngine(ee)
	t.Cleanup(me.Close)

	e := NewEngine(me, ee, cfg, persistence.NewMemoryService())
	me.AddEngine(e)
	return e, me, ee
}

func openRequest(volume float64) *domain.OrderRequest {
	return &domain.OrderRequest{
		Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Volume: volume, Price: 100,
	}
}

// 风控关闭时全部放行
func TestInactivePassthrough(t *testing.T) {
	e, _, _ := newTestRisk(t, config.RiskConfig{Active: false})
	assert.NoError(t, e.CheckRisk(openRequest(1e9), "GW"))
}

// 数量必须为正且不超过单笔上限
func TestOrderSizeLimit(t *testing.T) {
	e, _, _ := newTestRisk(t, config.RiskConfig{
		Active:         true,
		OrderFlowLimit: 100,
		OrderFlowClear: 1,
		OrderSizeLimit: 10,
	})

	assert.Error(t, e.CheckRisk(openRequest(0), "GW"))
	assert.Error(t, e.CheckRisk(openRequest(-1), "GW"))
	assert.Error(t, e.CheckRisk(openRequest(11), "GW"))
	assert.NoError(t, e.CheckRisk(openRequest(10), "GW"))
}

// 流控：窗口内超过限额的委托被拦截
func TestOrderFlowLimit(t *testing.T) {
	e, _, _ := newTestRisk(t, config.RiskConfig{
		Active:         true,
		OrderFlowLimit: 3,
		OrderFlowClear: 60,
		OrderSizeLimit: 100,
	})

	for i := 0; i < 3; i++ {
		assert.NoError(t, e.CheckRisk(openRequest(1), "GW"))
	}
	assert.Error(t, e.CheckRisk(openRequest(1), "GW"))
}

// 撤单事件计数，达到上限后该品种的委托被拦截
func TestCancelCap(t *testing.T) {
	e, _, ee := newTestRisk(t, config.RiskConfig{
		Active:         true,
		OrderFlowLimit: 100,
		OrderFlowClear: 1,
		OrderSizeLimit: 100,
		OrderCancelCap: 2,
	})

	cancelled := &domain.OrderData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		OrderID: "1", Status: domain.StatusCancelled,
	}
	ee.Put(event.NewEvent(event.EventOrder, cancelled))
	ee.Put(event.NewEvent(event.EventOrder, cancelled))

	require.Eventually(t, func() bool {
		return e.CancelCount("rb2510.SHFE") == 2
	}, 3*time.Second, 5*time.Millisecond)

	assert.Error(t, e.CheckRisk(openRequest(1), "GW"))

	// 其他品种不受影响
	other := openRequest(1)
	other.Symbol = "hc2510"
	assert.NoError(t, e.CheckRisk(other, "GW"))
}

// 非撤销状态的订单事件不计入撤单次数
func TestNonCancelledIgnored(t *testing.T) {
	e, _, ee := newTestRisk(t, config.RiskConfig{
		Active:         true,
		OrderFlowLimit: 100,
		OrderFlowClear: 1,
	})

	ee.Put(event.NewEvent(event.EventOrder, &domain.OrderData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		OrderID: "1", Status: domain.StatusAllTraded,
	}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, e.CancelCount("rb2510.SHFE"))
}

// 撤单计数通过持久化服务跨实例保留
func TestCancelStatePersistence(t *testing.T) {
	svc := persistence.NewMemoryService()
	cfg := config.RiskConfig{
		Active:         true,
		OrderFlowLimit: 100,
		OrderFlowClear: 1,
	}

	ee := event.NewEventEngine(time.Hour)
	me := engine.NewMainEngine(ee)
	e := NewEngine(me, ee, cfg, svc)

	ee.Put(event.NewEvent(event.EventOrder, &domain.OrderData{
		GatewayName: "GW", Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		OrderID: "1", Status: domain.StatusCancelled,
	}))
	require.Eventually(t, func() bool {
		return e.CancelCount("rb2510.SHFE") == 1
	}, 3*time.Second, 5*time.Millisecond)

	e.Close() // 落盘
	me.Close()

	ee2 := event.NewEventEngine(time.Hour)
	me2 := engine.NewMainEngine(ee2)
	t.Cleanup(me2.Close)

	e2 := NewEngine(me2, ee2, cfg, svc)
	assert.Equal(t, 1, e2.CancelCount("rb2510.SHFE"))
}

// 风控拦截时 SendOrder 返回空串且不发往接口
func TestSendOrderBlocked(t *testing.T) {
	e, _, _ := newTestRisk(t, config.RiskConfig{
		Active:         true,
		OrderFlowLimit: 100,
		OrderFlowClear: 1,
		OrderSizeLimit: 1,
	})

	assert.Equal(t, "", e.SendOrder(openRequest(5), "GW"))
}
