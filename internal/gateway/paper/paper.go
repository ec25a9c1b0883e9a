package paper

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/gateway"
)

// GatewayName 默认接口名
const GatewayName = "PAPER"

// 本地订单号前缀，和柜台号（uuid）一眼可分
const orderPrefix = "P_"

// PaperGateway 纸面交易接口：本地撮合，不连任何柜台。
//
// 委托先以本地订单号推送 SUBMITTING，柜台确认（生成 uuid 柜台号并
// 建立映射）可以通过 ack_delay 配置延迟，用来复现确认前撤单、
// 确认前推送等乱序场景。限价单和对价立即全部成交。
type PaperGateway struct {
	*gateway.BaseGateway

	lom *gateway.LocalOrderManager

	mu        sync.Mutex
	connected bool
	ackDelay  time.Duration

	balance   decimal.Decimal
	positions map[string]*domain.PositionData // vt_symbol.direction

	subscribed map[string]chan struct{} // vt_symbol -> 行情goroutine停止信号
	lastPrices map[string]float64
	wg         sync.WaitGroup
}

// New 创建纸面交易接口
func New(ee gateway.EventSink, name string) *PaperGateway {
	if name == "" {
		name = GatewayName
	}
	g := &PaperGateway{
		BaseGateway: gateway.NewBaseGateway(ee, name),
		balance:     decimal.NewFromInt(1_000_000),
		positions:   make(map[string]*domain.PositionData),
		subscribed:  make(map[string]chan struct{}),
		lastPrices:  make(map[string]float64),
	}
	g.lom = gateway.NewLocalOrderManager(g.BaseGateway, name, orderPrefix, g.cancelOrderImpl)
	return g
}

// Exchanges 支持的交易所
func (g *PaperGateway) Exchanges() []domain.Exchange {
	return []domain.Exchange{
		domain.ExchangeSHFE,
		domain.ExchangeINE,
		domain.ExchangeCFFEX,
		domain.ExchangeDCE,
		domain.ExchangeLocal,
	}
}

// DefaultSetting 默认连接配置
func (g *PaperGateway) DefaultSetting() gateway.Setting {
	return gateway.Setting{
		"ack_delay_ms": 0,
		"balance":      1_000_000.0,
	}
}

// Connect 初始化账户并推送内置合约、账户和持仓
func (g *PaperGateway) Connect(setting gateway.Setting) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	g.connected = true

	if v, ok := setting["ack_delay_ms"]; ok {
		switch ms := v.(type) {
		case int:
			g.ackDelay = time.Duration(ms) * time.Millisecond
		case float64:
			g.ackDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := setting["balance"].(float64); ok && v > 0 {
		g.balance = decimal.NewFromFloat(v)
	}
	g.mu.Unlock()

	for _, contract := range builtinContracts(g.Name()) {
		g.OnContract(contract)
	}
	g.QueryAccount()
	g.QueryPosition()
	g.WriteLog("纸面交易接口连接成功")
	return nil
}

// Subscribe 启动该品种的模拟行情推送
func (g *PaperGateway) Subscribe(req *domain.SubscribeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	vtSymbol := req.VTSymbol()
	if _, ok := g.subscribed[vtSymbol]; ok {
		return nil
	}

	stopC := make(chan struct{})
	g.subscribed[vtSymbol] = stopC

	g.wg.Add(1)
	go g.runFeed(req.Symbol, req.Exchange, stopC)
	return nil
}

// runFeed 按随机游走生成行情快照
func (g *PaperGateway) runFeed(symbol string, exchange domain.Exchange, stopC chan struct{}) {
	defer g.wg.Done()

	vtSymbol := symbol + "." + string(exchange)
	price := 100.0
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stopC:
			return
		case <-ticker.C:
			price += (rand.Float64() - 0.5) * 0.2
			g.mu.Lock()
			g.lastPrices[vtSymbol] = price
			g.mu.Unlock()

			g.OnTick(&domain.TickData{
				GatewayName: g.Name(),
				Symbol:      symbol,
				Exchange:    exchange,
				Datetime:    time.Now(),
				LastPrice:   price,
				BidPrice1:   price - 0.01,
				AskPrice1:   price + 0.01,
				BidVolume1:  10,
				AskVolume1:  10,
				LocalTime:   time.Now(),
			})
		}
	}
}

// SendOrder 本地撮合下单：先推 SUBMITTING，柜台确认按 ack_delay
// 延迟建立订单号映射，随后立即全部成交
func (g *PaperGateway) SendOrder(req *domain.OrderRequest) string {
	localOrderID := g.lom.NewLocalOrderID()
	order := req.CreateOrderData(localOrderID, g.Name())
	g.lom.OnOrder(order.Clone())

	g.mu.Lock()
	delay := g.ackDelay
	g.mu.Unlock()

	ack := func() {
		sysOrderID := uuid.NewString()
		g.lom.UpdateOrderIDMap(localOrderID, sysOrderID)
		g.matchOrder(order)
	}
	if delay > 0 {
		time.AfterFunc(delay, ack)
	} else {
		ack()
	}

	return order.VTOrderID()
}

// matchOrder 全量成交并更新账户与持仓
func (g *PaperGateway) matchOrder(order *domain.OrderData) {
	current := g.lom.GetOrderWithLocalOrderID(order.OrderID)
	if current == nil || !current.IsActive() {
		return
	}

	price := order.Price
	g.mu.Lock()
	if last, ok := g.lastPrices[order.VTSymbol()]; ok && order.Type == domain.OrderTypeMarket {
		price = last
	}
	g.mu.Unlock()

	current.Status = domain.StatusNotTraded
	current.Datetime = time.Now()
	g.lom.OnOrder(current.Clone())

	current.Traded = current.Volume
	current.Status = domain.StatusAllTraded
	g.lom.OnOrder(current.Clone())

	trade := &domain.TradeData{
		GatewayName: g.Name(),
		Symbol:      order.Symbol,
		Exchange:    order.Exchange,
		OrderID:     order.OrderID,
		TradeID:     uuid.NewString(),
		Direction:   order.Direction,
		Offset:      order.Offset,
		Price:       price,
		Volume:      order.Volume,
		Datetime:    time.Now(),
	}
	g.applyTrade(trade)
	g.OnTrade(trade)

	g.QueryAccount()
	g.QueryPosition()
}

// applyTrade 按成交调整持仓和资金（金额走 decimal 避免浮点累积误差）
func (g *PaperGateway) applyTrade(trade *domain.TradeData) {
	g.mu.Lock()
	defer g.mu.Unlock()

	direction := trade.Direction
	delta := trade.Volume
	if trade.Offset != domain.OffsetOpen {
		direction = trade.Direction.Opposite()
		delta = -trade.Volume
	}

	key := trade.VTSymbol() + "." + string(direction)
	pos, ok := g.positions[key]
	if !ok {
		pos = &domain.PositionData{
			GatewayName: g.Name(),
			Symbol:      trade.Symbol,
			Exchange:    trade.Exchange,
			Direction:   direction,
		}
		g.positions[key] = pos
	}
	pos.Volume += delta
	if pos.Volume < 0 {
		pos.Volume = 0
	}
	pos.Price = trade.Price

	turnover := decimal.NewFromFloat(trade.Price).
		Mul(decimal.NewFromFloat(trade.Volume))
	fee := turnover.Mul(decimal.NewFromFloat(0.0001))
	g.balance = g.balance.Sub(fee)
}

// cancelOrderImpl 柜台侧撤单实现，由 LocalOrderManager 在映射建立后调用
func (g *PaperGateway) cancelOrderImpl(req *domain.CancelRequest) {
	order := g.lom.GetOrderWithLocalOrderID(req.OrderID)
	if order == nil || !order.IsActive() {
		return
	}

	order.Status = domain.StatusCancelled
	order.Datetime = time.Now()
	g.lom.OnOrder(order)
}

// CancelOrder 撤单统一走本地订单管理器（映射未建立时缓存）
func (g *PaperGateway) CancelOrder(req *domain.CancelRequest) {
	g.lom.CancelOrder(req)
}

// SendQuote 双边报价：立即确认为 NOTTRADED，不参与撮合
func (g *PaperGateway) SendQuote(req *domain.QuoteRequest) string {
	quote := req.CreateQuoteData(uuid.NewString(), g.Name())
	quote.Status = domain.StatusNotTraded
	quote.Datetime = time.Now()
	g.OnQuote(quote)
	return quote.VTQuoteID()
}

// CancelQuote 撤销报价
func (g *PaperGateway) CancelQuote(req *domain.CancelRequest) {
	g.OnQuote(&domain.QuoteData{
		GatewayName: g.Name(),
		Symbol:      req.Symbol,
		Exchange:    req.Exchange,
		QuoteID:     req.OrderID,
		Status:      domain.StatusCancelled,
		Datetime:    time.Now(),
	})
}

// QueryAccount 推送账户资金
func (g *PaperGateway) QueryAccount() {
	g.mu.Lock()
	balance, _ := g.balance.Float64()
	g.mu.Unlock()

	g.OnAccount(&domain.AccountData{
		GatewayName: g.Name(),
		AccountID:   "paper",
		Balance:     balance,
	})
}

// QueryPosition 推送全部持仓快照
func (g *PaperGateway) QueryPosition() {
	g.mu.Lock()
	snapshot := make([]*domain.PositionData, 0, len(g.positions))
	for _, pos := range g.positions {
		clone := *pos
		snapshot = append(snapshot, &clone)
	}
	g.mu.Unlock()

	for _, pos := range snapshot {
		g.OnPosition(pos)
	}
}

// QueryHistory 纸面接口不提供历史数据
func (g *PaperGateway) QueryHistory(req *domain.HistoryRequest) []*domain.BarData {
	return nil
}

// Close 停止全部行情 goroutine 并报告未解决的订单缓冲
func (g *PaperGateway) Close() error {
	g.mu.Lock()
	for _, stopC := range g.subscribed {
		close(stopC)
	}
	g.subscribed = make(map[string]chan struct{})
	g.mu.Unlock()

	g.wg.Wait()
	g.lom.Close()
	return nil
}

// builtinContracts 内置合约列表
func builtinContracts(gatewayName string) []*domain.ContractData {
	return []*domain.ContractData{
		{
			GatewayName: gatewayName,
			Symbol:      "rb2510",
			Exchange:    domain.ExchangeSHFE,
			Name:        "螺纹钢2510",
			Product:     domain.ProductFutures,
			Size:        10,
			PriceTick:   1,
			MinVolume:   1,
		},
		{
			GatewayName: gatewayName,
			Symbol:      "sc2511",
			Exchange:    domain.ExchangeINE,
			Name:        "原油2511",
			Product:     domain.ProductFutures,
			Size:        1000,
			PriceTick:   0.1,
			MinVolume:   1,
		},
		{
			GatewayName: gatewayName,
			Symbol:      "IF2509",
			Exchange:    domain.ExchangeCFFEX,
			Name:        "沪深300指数2509",
			Product:     domain.ProductFutures,
			Size:        300,
			PriceTick:   0.2,
			MinVolume:   1,
		},
		{
			GatewayName: gatewayName,
			Symbol:      "i2601",
			Exchange:    domain.ExchangeDCE,
			Name:        "铁矿石2601",
			Product:     domain.ProductFutures,
			Size:        100,
			PriceTick:   0.5,
			MinVolume:   1,
		},
	}
}
