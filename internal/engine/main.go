package engine

import (
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/internal/gateway"
	"github.com/quantbot/gotrader/pkg/logger"
)

var meLog = logger.Component("main_engine")

// AppFactory 应用引擎构造函数，AddApp 时调用
type AppFactory func(main *MainEngine, ee *event.EventEngine) Engine

// MainEngine 平台组合根：持有事件引擎、全部交易接口和功能引擎，
// 并以安全的门面方法对外提供统一入口。
//
// 对未注册接口的调用不会 panic：查询返回空值，指令静默忽略并记录警告。
type MainEngine struct {
	eventEngine *event.EventEngine

	gateways     map[string]gateway.Gateway
	gatewayOrder []string

	engines     map[string]Engine
	engineOrder []string

	oms *OmsEngine
}

// NewMainEngine 创建主引擎：启动事件引擎并注册内置功能引擎
// （订单管理、日志、邮件）。
func NewMainEngine(ee *event.EventEngine) *MainEngine {
	if ee == nil {
		ee = event.NewEventEngine(0)
	}

	m := &MainEngine{
		eventEngine: ee,
		gateways:    make(map[string]gateway.Gateway),
		engines:     make(map[string]Engine),
	}
	ee.Start()

	m.oms = NewOmsEngine(m, ee)
	m.AddEngine(m.oms)
	m.AddEngine(NewLogEngine(m, ee))
	m.AddEngine(NewEmailEngine(m, ee))

	return m
}

// EventEngine 返回事件引擎
func (m *MainEngine) EventEngine() *event.EventEngine {
	return m.eventEngine
}

// OMS 返回订单管理引擎
func (m *MainEngine) OMS() *OmsEngine {
	return m.oms
}

// AddEngine 注册功能引擎。重名时保留先注册者。
func (m *MainEngine) AddEngine(e Engine) Engine {
	if existing, ok := m.engines[e.Name()]; ok {
		meLog.Warnf("引擎 %s 已注册, 忽略重复注册", e.Name())
		return existing
	}
	m.engines[e.Name()] = e
	m.engineOrder = append(m.engineOrder, e.Name())
	return e
}

// AddApp 通过应用工厂创建并注册功能引擎
func (m *MainEngine) AddApp(factory AppFactory) Engine {
	return m.AddEngine(factory(m, m.eventEngine))
}

// AddGateway 注册交易接口。重名时保留先注册者。
func (m *MainEngine) AddGateway(gw gateway.Gateway) gateway.Gateway {
	if existing, ok := m.gateways[gw.Name()]; ok {
		meLog.Warnf("接口 %s 已注册, 忽略重复注册", gw.Name())
		return existing
	}
	m.gateways[gw.Name()] = gw
	m.gatewayOrder = append(m.gatewayOrder, gw.Name())
	return gw
}

// GetGateway 查询接口，未注册返回 nil 并记录警告
func (m *MainEngine) GetGateway(gatewayName string) gateway.Gateway {
	gw, ok := m.gateways[gatewayName]
	if !ok {
		meLog.Warnf("找不到接口: %s", gatewayName)
		return nil
	}
	return gw
}

// GetEngine 查询功能引擎，未注册返回 nil 并记录警告
func (m *MainEngine) GetEngine(engineName string) Engine {
	e, ok := m.engines[engineName]
	if !ok {
		meLog.Warnf("找不到引擎: %s", engineName)
		return nil
	}
	return e
}

// GetAllGatewayNames 按注册顺序返回全部接口名
func (m *MainEngine) GetAllGatewayNames() []string {
	out := make([]string, len(m.gatewayOrder))
	copy(out, m.gatewayOrder)
	return out
}

// GetDefaultSetting 查询接口的默认连接配置
func (m *MainEngine) GetDefaultSetting(gatewayName string) gateway.Setting {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return nil
	}
	return gw.DefaultSetting()
}

// GetAllExchanges 返回全部接口支持的交易所（去重，按首次出现顺序）
func (m *MainEngine) GetAllExchanges() []domain.Exchange {
	seen := make(map[domain.Exchange]bool)
	var out []domain.Exchange
	for _, name := range m.gatewayOrder {
		for _, ex := range m.gateways[name].Exchanges() {
			if !seen[ex] {
				seen[ex] = true
				out = append(out, ex)
			}
		}
	}
	return out
}

// WriteLog 以指定来源推送日志事件
func (m *MainEngine) WriteLog(msg string, source string) {
	m.eventEngine.Put(event.NewEvent(event.EventLog, domain.NewLogData(msg, source)))
}

// Connect 连接指定接口
func (m *MainEngine) Connect(setting gateway.Setting, gatewayName string) {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return
	}
	if err := gw.Connect(setting); err != nil {
		meLog.Errorf("接口 %s 连接失败: %v", gatewayName, err)
	}
}

// Subscribe 订阅行情
func (m *MainEngine) Subscribe(req *domain.SubscribeRequest, gatewayName string) {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return
	}
	if err := gw.Subscribe(req); err != nil {
		meLog.Errorf("接口 %s 订阅 %s 失败: %v", gatewayName, req.VTSymbol(), err)
	}
}

// SendOrder 发送委托，返回 vt_orderid（接口未注册时返回空串）
func (m *MainEngine) SendOrder(req *domain.OrderRequest, gatewayName string) string {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return ""
	}
	vtOrderID := gw.SendOrder(req)
	if vtOrderID != "" {
		m.oms.UpdateOrderRequest(req, vtOrderID, gatewayName)
	}
	return vtOrderID
}

// CancelOrder 撤销委托
func (m *MainEngine) CancelOrder(req *domain.CancelRequest, gatewayName string) {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return
	}
	gw.CancelOrder(req)
}

// SendQuote 发送双边报价，返回 vt_quoteid
func (m *MainEngine) SendQuote(req *domain.QuoteRequest, gatewayName string) string {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return ""
	}
	return gw.SendQuote(req)
}

// CancelQuote 撤销报价
func (m *MainEngine) CancelQuote(req *domain.CancelRequest, gatewayName string) {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return
	}
	gw.CancelQuote(req)
}

// QueryHistory 查询历史K线，接口未注册时返回 nil
func (m *MainEngine) QueryHistory(req *domain.HistoryRequest, gatewayName string) []*domain.BarData {
	gw := m.GetGateway(gatewayName)
	if gw == nil {
		return nil
	}
	return gw.QueryHistory(req)
}

// Close 按固定顺序关闭：先停事件引擎（不再分发），
// 再按注册顺序关闭功能引擎，最后按注册顺序关闭接口。
func (m *MainEngine) Close() {
	m.eventEngine.Stop()

	for _, name := range m.engineOrder {
		m.engines[name].Close()
	}
	for _, name := range m.gatewayOrder {
		if err := m.gateways[name].Close(); err != nil {
			meLog.Errorf("接口 %s 关闭失败: %v", name, err)
		}
	}
}
