package domain

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// 平台内部通用的数据对象。所有对象都携带 GatewayName 标明数据来源，
// 组合标识（VTSymbol / VTOrderID 等）通过方法即时计算，保证标识唯一来源于字段本身。

// TickData 行情快照：最新成交 + 五档盘口 + 盘中统计
type TickData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	Datetime    time.Time

	Name         string
	Volume       float64
	Turnover     float64
	OpenInterest float64
	LastPrice    float64
	LastVolume   float64
	LimitUp      float64
	LimitDown    float64

	OpenPrice float64
	HighPrice float64
	LowPrice  float64
	PreClose  float64

	BidPrice1  float64
	BidPrice2  float64
	BidPrice3  float64
	BidPrice4  float64
	BidPrice5  float64
	AskPrice1  float64
	AskPrice2  float64
	AskPrice3  float64
	AskPrice4  float64
	AskPrice5  float64
	BidVolume1 float64
	BidVolume2 float64
	BidVolume3 float64
	BidVolume4 float64
	BidVolume5 float64
	AskVolume1 float64
	AskVolume2 float64
	AskVolume3 float64
	AskVolume4 float64
	AskVolume5 float64

	LocalTime time.Time
}

// VTSymbol 品种唯一标识（symbol.exchange）
func (t *TickData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", t.Symbol, t.Exchange)
}

// BarData 单个周期的K线数据
type BarData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	Datetime    time.Time

	Interval     Interval
	Volume       float64
	Turnover     float64
	OpenInterest float64
	OpenPrice    float64
	HighPrice    float64
	LowPrice     float64
	ClosePrice   float64
}

func (b *BarData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", b.Symbol, b.Exchange)
}

// OrderData 跟踪单笔委托的最新状态
type OrderData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	OrderID     string

	Type      OrderType
	Direction Direction
	Offset    Offset
	Price     float64
	Volume    float64
	Traded    float64 // 累计成交量，不变式 Traded <= Volume
	Status    Status
	Datetime  time.Time
	Reference string
}

func (o *OrderData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", o.Symbol, o.Exchange)
}

// VTOrderID 委托全局唯一标识（gateway.orderid）
func (o *OrderData) VTOrderID() string {
	return fmt.Sprintf("%s.%s", o.GatewayName, o.OrderID)
}

// IsActive 委托是否仍处于活跃状态
func (o *OrderData) IsActive() bool {
	return ActiveStatuses[o.Status]
}

// Clone 返回订单的独立副本，用于跨 goroutine 读取
func (o *OrderData) Clone() *OrderData {
	clone := *o
	return &clone
}

// CreateCancelRequest 由委托生成撤单请求
func (o *OrderData) CreateCancelRequest() *CancelRequest {
	return &CancelRequest{
		OrderID:  o.OrderID,
		Symbol:   o.Symbol,
		Exchange: o.Exchange,
	}
}

// TradeData 单笔成交回报。一笔委托可以对应多笔成交。
type TradeData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	OrderID     string
	TradeID     string

	Direction Direction
	Offset    Offset
	Price     float64
	Volume    float64
	Datetime  time.Time
}

func (t *TradeData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", t.Symbol, t.Exchange)
}

func (t *TradeData) VTOrderID() string {
	return fmt.Sprintf("%s.%s", t.GatewayName, t.OrderID)
}

// VTTradeID 成交全局唯一标识（gateway.tradeid）
func (t *TradeData) VTTradeID() string {
	return fmt.Sprintf("%s.%s", t.GatewayName, t.TradeID)
}

// PositionData 单方向持仓快照（整体替换语义，非增量）
type PositionData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	Direction   Direction

	Volume   float64
	Frozen   float64
	Price    float64
	PnL      float64
	YdVolume float64 // 昨仓数量
}

func (p *PositionData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", p.Symbol, p.Exchange)
}

// VTPositionID 持仓唯一标识（gateway.vt_symbol.direction）
func (p *PositionData) VTPositionID() string {
	return fmt.Sprintf("%s.%s.%s", p.GatewayName, p.VTSymbol(), p.Direction)
}

// AccountData 账户资金信息
type AccountData struct {
	GatewayName string
	AccountID   string

	Balance float64
	Frozen  float64
}

// Available 可用资金
func (a *AccountData) Available() float64 {
	return a.Balance - a.Frozen
}

func (a *AccountData) VTAccountID() string {
	return fmt.Sprintf("%s.%s", a.GatewayName, a.AccountID)
}

// ContractData 合约基础信息
type ContractData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	Name        string
	Product     Product
	Size        float64
	PriceTick   float64

	MinVolume     float64
	StopSupported bool
	NetPosition   bool // 接口是否按净头寸报告持仓（true 时无需开平转换）
	HistoryData   bool

	OptionStrike     float64
	OptionUnderlying string
	OptionType       OptionType
	OptionExpiry     time.Time
}

func (c *ContractData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", c.Symbol, c.Exchange)
}

// QuoteData 双边报价的最新状态
type QuoteData struct {
	GatewayName string
	Symbol      string
	Exchange    Exchange
	QuoteID     string

	BidPrice  float64
	BidVolume float64
	AskPrice  float64
	AskVolume float64
	BidOffset Offset
	AskOffset Offset
	Status    Status
	Datetime  time.Time
	Reference string
}

func (q *QuoteData) VTSymbol() string {
	return fmt.Sprintf("%s.%s", q.Symbol, q.Exchange)
}

func (q *QuoteData) VTQuoteID() string {
	return fmt.Sprintf("%s.%s", q.GatewayName, q.QuoteID)
}

func (q *QuoteData) IsActive() bool {
	return ActiveStatuses[q.Status]
}

func (q *QuoteData) CreateCancelRequest() *CancelRequest {
	return &CancelRequest{
		OrderID:  q.QuoteID,
		Symbol:   q.Symbol,
		Exchange: q.Exchange,
	}
}

// LogData 日志事件载荷
type LogData struct {
	GatewayName string
	Msg         string
	Level       logrus.Level
	Time        time.Time
}

// NewLogData 创建 INFO 级别日志数据
func NewLogData(msg string, gatewayName string) *LogData {
	return &LogData{
		GatewayName: gatewayName,
		Msg:         msg,
		Level:       logrus.InfoLevel,
		Time:        time.Now(),
	}
}
