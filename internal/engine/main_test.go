package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/internal/gateway"
)

// stubGateway 记录调用的假接口
type stubGateway struct {
	name string

	mu         sync.Mutex
	connected  bool
	closed     bool
	sent       []*domain.OrderRequest
	cancelled  []*domain.CancelRequest
	subscribed []*domain.SubscribeRequest
}

func (g *stubGateway) Name() string { return g.name }
func (g *stubGateway) Exchanges() []domain.Exchange {
	return []domain.Exchange{domain.ExchangeSHFE, domain.ExchangeDCE}
}
func (g *stubGateway) Connect(setting gateway.Setting) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = true
	return nil
}
func (g *stubGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
func (g *stubGateway) Subscribe(req *domain.SubscribeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribed = append(g.subscribed, req)
	return nil
}
func (g *stubGateway) SendOrder(req *domain.OrderRequest) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, req)
	return g.name + ".1"
}
func (g *stubGateway) CancelOrder(req *domain.CancelRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, req)
}
func (g *stubGateway) SendQuote(req *domain.QuoteRequest) string  { return g.name + ".q1" }
func (g *stubGateway) CancelQuote(req *domain.CancelRequest)     {}
func (g *stubGateway) QueryAccount()                             {}
func (g *stubGateway) QueryPosition()                            {}
func (g *stubGateway) QueryHistory(req *domain.HistoryRequest) []*domain.BarData {
	return []*domain.BarData{{Symbol: req.Symbol, Exchange: req.Exchange}}
}
func (g *stubGateway) DefaultSetting() gateway.Setting {
	return gateway.Setting{"key": "value"}
}

// 接口注册与查询，重名注册保留先注册者
func TestAddGateway(t *testing.T) {
	me, _ := newTestMain(t)

	first := &stubGateway{name: "GW"}
	second := &stubGateway{name: "GW"}

	assert.Same(t, first, me.AddGateway(first))
	assert.Same(t, first, me.AddGateway(second))

	assert.Same(t, first, me.GetGateway("GW"))
	assert.Equal(t, []string{"GW"}, me.GetAllGatewayNames())
	assert.Equal(t, gateway.Setting{"key": "value"}, me.GetDefaultSetting("GW"))
	assert.Equal(t,
		[]domain.Exchange{domain.ExchangeSHFE, domain.ExchangeDCE},
		me.GetAllExchanges())
}

// 对未注册接口的门面调用返回空值，不 panic
func TestFacadeMissingGateway(t *testing.T) {
	me, _ := newTestMain(t)

	assert.Nil(t, me.GetGateway("NOPE"))
	assert.Nil(t, me.GetDefaultSetting("NOPE"))
	assert.Equal(t, "", me.SendOrder(&domain.OrderRequest{}, "NOPE"))
	assert.Equal(t, "", me.SendQuote(&domain.QuoteRequest{}, "NOPE"))
	assert.Nil(t, me.QueryHistory(&domain.HistoryRequest{}, "NOPE"))
	me.CancelOrder(&domain.CancelRequest{}, "NOPE")
	me.CancelQuote(&domain.CancelRequest{}, "NOPE")
	me.Subscribe(&domain.SubscribeRequest{}, "NOPE")
	me.Connect(nil, "NOPE")
}

// 门面转发到对应接口
func TestFacadeDelegation(t *testing.T) {
	me, _ := newTestMain(t)
	gw := &stubGateway{name: "GW"}
	me.AddGateway(gw)

	me.Connect(nil, "GW")
	assert.True(t, gw.connected)

	me.Subscribe(&domain.SubscribeRequest{Symbol: "rb2510", Exchange: domain.ExchangeSHFE}, "GW")
	assert.Len(t, gw.subscribed, 1)

	vtOrderID := me.SendOrder(&domain.OrderRequest{
		Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Volume: 1, Price: 100,
	}, "GW")
	assert.Equal(t, "GW.1", vtOrderID)
	assert.Len(t, gw.sent, 1)

	me.CancelOrder(&domain.CancelRequest{OrderID: "1"}, "GW")
	assert.Len(t, gw.cancelled, 1)

	bars := me.QueryHistory(&domain.HistoryRequest{Symbol: "rb2510", Exchange: domain.ExchangeSHFE}, "GW")
	require.Len(t, bars, 1)
}

// 重名引擎注册保留先注册者，内置引擎可按名查询
func TestEngineRegistry(t *testing.T) {
	me, _ := newTestMain(t)

	assert.NotNil(t, me.GetEngine(OmsEngineName))
	assert.NotNil(t, me.GetEngine(LogEngineName))
	assert.NotNil(t, me.GetEngine(EmailEngineName))
	assert.Nil(t, me.GetEngine("nope"))

	oms := me.GetEngine(OmsEngineName)
	assert.Same(t, oms, me.AddEngine(me.OMS()))
}

// WriteLog 经事件总线进入日志引擎
func TestWriteLog(t *testing.T) {
	me, ee := newTestMain(t)

	received := make(chan *domain.LogData, 1)
	ee.Register(event.EventLog, func(ev event.Event) {
		if log, ok := ev.Data.(*domain.LogData); ok {
			received <- log
		}
	})

	me.WriteLog("测试消息", "tester")
	select {
	case log := <-received:
		assert.Equal(t, "测试消息", log.Msg)
		assert.Equal(t, "tester", log.GatewayName)
	case <-time.After(3 * time.Second):
		t.Fatal("等待日志事件超时")
	}
}

// Close 先停事件引擎再关接口
func TestCloseOrder(t *testing.T) {
	ee := event.NewEventEngine(time.Hour)
	me := NewMainEngine(ee)
	gw := &stubGateway{name: "GW"}
	me.AddGateway(gw)

	me.Close()
	assert.True(t, gw.closed)

	// 事件引擎已停止，再次 Close 幂等
	me.Close()
}
