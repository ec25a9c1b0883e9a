package domain

// Direction 委托/成交/持仓的方向
type Direction string

const (
	DirectionLong  Direction = "LONG"  // 多
	DirectionShort Direction = "SHORT" // 空
	DirectionNet   Direction = "NET"   // 净
)

// Opposite 返回相反方向（净方向返回自身）
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return d
	}
}

// Offset 开平仓标志
type Offset string

const (
	OffsetNone           Offset = ""
	OffsetOpen           Offset = "OPEN"           // 开
	OffsetClose          Offset = "CLOSE"          // 平
	OffsetCloseToday     Offset = "CLOSETODAY"     // 平今
	OffsetCloseYesterday Offset = "CLOSEYESTERDAY" // 平昨
)

// Status 订单状态
type Status string

const (
	StatusSubmitting Status = "SUBMITTING" // 提交中
	StatusNotTraded  Status = "NOTTRADED"  // 未成交
	StatusPartTraded Status = "PARTTRADED" // 部分成交
	StatusAllTraded  Status = "ALLTRADED"  // 全部成交
	StatusCancelled  Status = "CANCELLED"  // 已撤销
	StatusRejected   Status = "REJECTED"   // 拒单
)

// ActiveStatuses 处于活跃状态（还可能继续成交）的订单状态集合
var ActiveStatuses = map[Status]bool{
	StatusSubmitting: true,
	StatusNotTraded:  true,
	StatusPartTraded: true,
}

// OrderType 委托类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeStop   OrderType = "STOP"
	OrderTypeFAK    OrderType = "FAK"
	OrderTypeFOK    OrderType = "FOK"
	OrderTypeRFQ    OrderType = "RFQ"
)

// Product 交易品种类型
type Product string

const (
	ProductEquity  Product = "EQUITY"
	ProductFutures Product = "FUTURES"
	ProductOption  Product = "OPTION"
	ProductIndex   Product = "INDEX"
	ProductForex   Product = "FOREX"
	ProductSpot    Product = "SPOT"
	ProductETF     Product = "ETF"
	ProductBond    Product = "BOND"
	ProductSpread  Product = "SPREAD"
	ProductFund    Product = "FUND"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// Interval K线周期
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDaily  Interval = "d"
	IntervalWeekly Interval = "w"
	IntervalTick   Interval = "tick"
)

// Exchange 交易所标识
type Exchange string

const (
	ExchangeCFFEX Exchange = "CFFEX" // 中国金融期货交易所
	ExchangeSHFE  Exchange = "SHFE"  // 上海期货交易所
	ExchangeCZCE  Exchange = "CZCE"  // 郑州商品交易所
	ExchangeDCE   Exchange = "DCE"   // 大连商品交易所
	ExchangeINE   Exchange = "INE"   // 上海国际能源交易中心
	ExchangeGFEX  Exchange = "GFEX"  // 广州期货交易所
	ExchangeSSE   Exchange = "SSE"   // 上海证券交易所
	ExchangeSZSE  Exchange = "SZSE"  // 深圳证券交易所
	ExchangeCME   Exchange = "CME"
	ExchangeNYMEX Exchange = "NYMEX"
	ExchangeSGX   Exchange = "SGX"
	ExchangeLocal Exchange = "LOCAL" // 本地生成数据
)

// closeTodaySplitExchanges 平仓时必须区分今仓/昨仓的交易所集合
var closeTodaySplitExchanges = map[Exchange]bool{
	ExchangeSHFE: true,
	ExchangeINE:  true,
}

// SplitsCloseToday 交易所平仓是否区分今昨（决定 CLOSE 如何落到今/昨仓）
func (e Exchange) SplitsCloseToday() bool {
	return closeTodaySplitExchanges[e]
}
