package gateway

import (
	"github.com/sirupsen/logrus"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/logger"
)

// Setting 接口连接配置
type Setting map[string]any

// Gateway 交易接口需要满足的最小能力集合。
//
// 实现约定：
//   - 所有方法线程安全且不阻塞调用方；
//   - Connect 成功后必须依次通过 OnContract/OnAccount/OnPosition/OnOrder/OnTrade
//     推送查询结果；
//   - SendOrder 同步返回 vt_orderid，发送成功时订单状态为 SUBMITTING，
//     失败时为 REJECTED，并且都要先推送 OnOrder 再返回；
//   - CancelOrder 对未知订单静默忽略，不抛错。
type Gateway interface {
	Name() string
	Exchanges() []domain.Exchange

	Connect(setting Setting) error
	Close() error

	Subscribe(req *domain.SubscribeRequest) error
	SendOrder(req *domain.OrderRequest) string
	CancelOrder(req *domain.CancelRequest)
	SendQuote(req *domain.QuoteRequest) string
	CancelQuote(req *domain.CancelRequest)

	QueryAccount()
	QueryPosition()
	QueryHistory(req *domain.HistoryRequest) []*domain.BarData

	DefaultSetting() Setting
}

// EventSink 接收事件的最小接口（生产环境为 *event.EventEngine）
type EventSink interface {
	Put(ev event.Event)
}

// BaseGateway 提供事件推送辅助方法，具体接口实现内嵌使用。
// 每个 on_xxx 推送两个事件：广播主题 + 带标识后缀的窄主题。
type BaseGateway struct {
	eventEngine EventSink
	gatewayName string
	log         *logrus.Entry
}

// NewBaseGateway 创建接口基类
func NewBaseGateway(ee EventSink, gatewayName string) *BaseGateway {
	return &BaseGateway{
		eventEngine: ee,
		gatewayName: gatewayName,
		log:         logger.Gateway(gatewayName),
	}
}

// Name 接口名称
func (g *BaseGateway) Name() string {
	return g.gatewayName
}

// OnEvent 推送任意事件
func (g *BaseGateway) OnEvent(eventType string, data any) {
	g.eventEngine.Put(event.NewEvent(eventType, data))
}

// OnTick 推送行情事件
func (g *BaseGateway) OnTick(tick *domain.TickData) {
	g.OnEvent(event.EventTick, tick)
	g.OnEvent(event.EventTick+tick.VTSymbol(), tick)
}

// OnTrade 推送成交事件
func (g *BaseGateway) OnTrade(trade *domain.TradeData) {
	g.OnEvent(event.EventTrade, trade)
	g.OnEvent(event.EventTrade+trade.VTSymbol(), trade)
}

// OnOrder 推送订单事件
func (g *BaseGateway) OnOrder(order *domain.OrderData) {
	g.OnEvent(event.EventOrder, order)
	g.OnEvent(event.EventOrder+order.VTOrderID(), order)
}

// OnPosition 推送持仓事件
func (g *BaseGateway) OnPosition(position *domain.PositionData) {
	g.OnEvent(event.EventPosition, position)
	g.OnEvent(event.EventPosition+position.VTSymbol(), position)
}

// OnAccount 推送账户事件
func (g *BaseGateway) OnAccount(account *domain.AccountData) {
	g.OnEvent(event.EventAccount, account)
	g.OnEvent(event.EventAccount+account.VTAccountID(), account)
}

// OnQuote 推送报价事件
func (g *BaseGateway) OnQuote(quote *domain.QuoteData) {
	g.OnEvent(event.EventQuote, quote)
	g.OnEvent(event.EventQuote+quote.VTSymbol(), quote)
}

// OnContract 推送合约事件
func (g *BaseGateway) OnContract(contract *domain.ContractData) {
	g.OnEvent(event.EventContract, contract)
}

// OnLog 推送日志事件
func (g *BaseGateway) OnLog(log *domain.LogData) {
	g.OnEvent(event.EventLog, log)
}

// WriteLog 以接口名义写一条日志事件
func (g *BaseGateway) WriteLog(msg string) {
	g.OnLog(domain.NewLogData(msg, g.gatewayName))
}

// Log 返回接口的本地日志 entry
func (g *BaseGateway) Log() *logrus.Entry {
	return g.log
}
