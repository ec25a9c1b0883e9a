package engine

import (
	"strings"
	"sync"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/event"
)

// OmsEngineName 订单管理引擎注册名
const OmsEngineName = "oms"

// pendingData 某接口首个合约事件到达前收到的待回放数据
type pendingData struct {
	orders    []*domain.OrderData
	trades    []*domain.TradeData
	positions []*domain.PositionData
}

// OmsEngine 订单管理引擎：订阅全部交易数据事件，维护各类对象的
// 最新快照（整体替换语义）和活跃委托/报价索引，并为每个接口维护
// 一个开平转换器。
//
// 快照写入只发生在事件引擎的消费 goroutine 上，查询可能来自任意
// goroutine，内部用读写锁保护。
type OmsEngine struct {
	*BaseEngine

	mu        sync.RWMutex
	ticks     map[string]*domain.TickData     // vt_symbol
	orders    map[string]*domain.OrderData    // vt_orderid
	trades    map[string]*domain.TradeData    // vt_tradeid
	positions map[string]*domain.PositionData // vt_positionid
	accounts  map[string]*domain.AccountData  // vt_accountid
	contracts map[string]*domain.ContractData // vt_symbol
	quotes    map[string]*domain.QuoteData    // vt_quoteid

	activeOrders map[string]*domain.OrderData // vt_orderid
	activeQuotes map[string]*domain.QuoteData // vt_quoteid

	// 接口名 -> 转换器。转换器在接口的首个合约事件到达时创建，
	// 之前收到的订单/成交/持仓事件缓存在 pending 里，创建后立即回放。
	converters map[string]*OffsetConverter
	pending    map[string]*pendingData
}

// NewOmsEngine 创建订单管理引擎并注册事件处理函数
func NewOmsEngine(main *MainEngine, ee *event.EventEngine) *OmsEngine {
	e := &OmsEngine{
		BaseEngine:   NewBaseEngine(main, ee, OmsEngineName),
		ticks:        make(map[string]*domain.TickData),
		orders:       make(map[string]*domain.OrderData),
		trades:       make(map[string]*domain.TradeData),
		positions:    make(map[string]*domain.PositionData),
		accounts:     make(map[string]*domain.AccountData),
		contracts:    make(map[string]*domain.ContractData),
		quotes:       make(map[string]*domain.QuoteData),
		activeOrders: make(map[string]*domain.OrderData),
		activeQuotes: make(map[string]*domain.QuoteData),
		converters:   make(map[string]*OffsetConverter),
		pending:      make(map[string]*pendingData),
	}
	e.registerEvent()
	return e
}

func (e *OmsEngine) registerEvent() {
	e.eventEngine.Register(event.EventTick, e.processTickEvent)
	e.eventEngine.Register(event.EventOrder, e.processOrderEvent)
	e.eventEngine.Register(event.EventTrade, e.processTradeEvent)
	e.eventEngine.Register(event.EventPosition, e.processPositionEvent)
	e.eventEngine.Register(event.EventAccount, e.processAccountEvent)
	e.eventEngine.Register(event.EventContract, e.processContractEvent)
	e.eventEngine.Register(event.EventQuote, e.processQuoteEvent)
}

func (e *OmsEngine) processTickEvent(ev event.Event) {
	tick, ok := ev.Data.(*domain.TickData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.ticks[tick.VTSymbol()] = tick
	e.mu.Unlock()
}

func (e *OmsEngine) processOrderEvent(ev event.Event) {
	order, ok := ev.Data.(*domain.OrderData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.orders[order.VTOrderID()] = order
	if order.IsActive() {
		e.activeOrders[order.VTOrderID()] = order
	} else {
		delete(e.activeOrders, order.VTOrderID())
	}
	converter := e.converters[order.GatewayName]
	if converter == nil {
		p := e.pendingLocked(order.GatewayName)
		p.orders = append(p.orders, order)
	}
	e.mu.Unlock()

	if converter != nil {
		converter.UpdateOrder(order)
	}
}

func (e *OmsEngine) processTradeEvent(ev event.Event) {
	trade, ok := ev.Data.(*domain.TradeData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.trades[trade.VTTradeID()] = trade
	converter := e.converters[trade.GatewayName]
	if converter == nil {
		p := e.pendingLocked(trade.GatewayName)
		p.trades = append(p.trades, trade)
	}
	e.mu.Unlock()

	if converter != nil {
		converter.UpdateTrade(trade)
	}
}

func (e *OmsEngine) processPositionEvent(ev event.Event) {
	position, ok := ev.Data.(*domain.PositionData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.positions[position.VTPositionID()] = position
	converter := e.converters[position.GatewayName]
	if converter == nil {
		p := e.pendingLocked(position.GatewayName)
		p.positions = append(p.positions, position)
	}
	e.mu.Unlock()

	if converter != nil {
		converter.UpdatePosition(position)
	}
}

func (e *OmsEngine) processAccountEvent(ev event.Event) {
	account, ok := ev.Data.(*domain.AccountData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.accounts[account.VTAccountID()] = account
	e.mu.Unlock()
}

// processContractEvent 保存合约，并在接口的首个合约到达时创建
// 该接口的转换器，回放此前缓存的事件
func (e *OmsEngine) processContractEvent(ev event.Event) {
	contract, ok := ev.Data.(*domain.ContractData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.contracts[contract.VTSymbol()] = contract

	converter := e.converters[contract.GatewayName]
	var replay *pendingData
	if converter == nil {
		converter = NewOffsetConverter(e.GetContract)
		e.converters[contract.GatewayName] = converter
		replay = e.pending[contract.GatewayName]
		delete(e.pending, contract.GatewayName)
	}
	e.mu.Unlock()

	if replay == nil {
		return
	}
	for _, p := range replay.positions {
		converter.UpdatePosition(p)
	}
	for _, o := range replay.orders {
		converter.UpdateOrder(o)
	}
	for _, t := range replay.trades {
		converter.UpdateTrade(t)
	}
}

func (e *OmsEngine) processQuoteEvent(ev event.Event) {
	quote, ok := ev.Data.(*domain.QuoteData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.quotes[quote.VTQuoteID()] = quote
	if quote.IsActive() {
		e.activeQuotes[quote.VTQuoteID()] = quote
	} else {
		delete(e.activeQuotes, quote.VTQuoteID())
	}
	e.mu.Unlock()
}

// 调用方必须持有 e.mu
func (e *OmsEngine) pendingLocked(gatewayName string) *pendingData {
	p, ok := e.pending[gatewayName]
	if !ok {
		p = &pendingData{}
		e.pending[gatewayName] = p
	}
	return p
}

// GetTick 查询最新行情快照，未知标识返回 nil
func (e *OmsEngine) GetTick(vtSymbol string) *domain.TickData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ticks[vtSymbol]
}

// GetOrder 查询订单最新状态
func (e *OmsEngine) GetOrder(vtOrderID string) *domain.OrderData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orders[vtOrderID]
}

// GetTrade 查询成交
func (e *OmsEngine) GetTrade(vtTradeID string) *domain.TradeData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trades[vtTradeID]
}

// GetPosition 查询持仓快照
func (e *OmsEngine) GetPosition(vtPositionID string) *domain.PositionData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.positions[vtPositionID]
}

// GetAccount 查询账户资金
func (e *OmsEngine) GetAccount(vtAccountID string) *domain.AccountData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accounts[vtAccountID]
}

// GetContract 查询合约信息
func (e *OmsEngine) GetContract(vtSymbol string) *domain.ContractData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.contracts[vtSymbol]
}

// GetQuote 查询报价最新状态
func (e *OmsEngine) GetQuote(vtQuoteID string) *domain.QuoteData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.quotes[vtQuoteID]
}

// GetAllTicks 所有行情快照
func (e *OmsEngine) GetAllTicks() []*domain.TickData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.TickData, 0, len(e.ticks))
	for _, v := range e.ticks {
		out = append(out, v)
	}
	return out
}

// GetAllOrders 所有订单（含已结束）
func (e *OmsEngine) GetAllOrders() []*domain.OrderData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.OrderData, 0, len(e.orders))
	for _, v := range e.orders {
		out = append(out, v)
	}
	return out
}

// GetAllTrades 所有成交
func (e *OmsEngine) GetAllTrades() []*domain.TradeData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.TradeData, 0, len(e.trades))
	for _, v := range e.trades {
		out = append(out, v)
	}
	return out
}

// GetAllPositions 所有持仓
func (e *OmsEngine) GetAllPositions() []*domain.PositionData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.PositionData, 0, len(e.positions))
	for _, v := range e.positions {
		out = append(out, v)
	}
	return out
}

// GetAllAccounts 所有账户
func (e *OmsEngine) GetAllAccounts() []*domain.AccountData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.AccountData, 0, len(e.accounts))
	for _, v := range e.accounts {
		out = append(out, v)
	}
	return out
}

// GetAllContracts 所有合约
func (e *OmsEngine) GetAllContracts() []*domain.ContractData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.ContractData, 0, len(e.contracts))
	for _, v := range e.contracts {
		out = append(out, v)
	}
	return out
}

// GetAllQuotes 所有报价
func (e *OmsEngine) GetAllQuotes() []*domain.QuoteData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.QuoteData, 0, len(e.quotes))
	for _, v := range e.quotes {
		out = append(out, v)
	}
	return out
}

// GetAllActiveOrders 所有活跃订单；vtSymbol 非空时按品种过滤
func (e *OmsEngine) GetAllActiveOrders(vtSymbol string) []*domain.OrderData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.OrderData, 0, len(e.activeOrders))
	for _, v := range e.activeOrders {
		if vtSymbol == "" || v.VTSymbol() == vtSymbol {
			out = append(out, v)
		}
	}
	return out
}

// GetAllActiveQuotes 所有活跃报价；vtSymbol 非空时按品种过滤
func (e *OmsEngine) GetAllActiveQuotes(vtSymbol string) []*domain.QuoteData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*domain.QuoteData, 0, len(e.activeQuotes))
	for _, v := range e.activeQuotes {
		if vtSymbol == "" || v.VTSymbol() == vtSymbol {
			out = append(out, v)
		}
	}
	return out
}

// GetConverter 查询接口的开平转换器，接口尚无合约时返回 nil
func (e *OmsEngine) GetConverter(gatewayName string) *OffsetConverter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.converters[gatewayName]
}

// UpdateOrderRequest 委托提交后把冻结量立即记入对应转换器
func (e *OmsEngine) UpdateOrderRequest(req *domain.OrderRequest, vtOrderID, gatewayName string) {
	if converter := e.GetConverter(gatewayName); converter != nil {
		converter.UpdateOrderRequest(req, vtOrderID)
	}
}

// ConvertOrderRequest 按接口的持仓状态转换委托请求。
// 接口尚无转换器时原样放行（单元素切片）。
func (e *OmsEngine) ConvertOrderRequest(req *domain.OrderRequest, gatewayName string, lock, net bool) []*domain.OrderRequest {
	converter := e.GetConverter(gatewayName)
	if converter == nil {
		return []*domain.OrderRequest{req}
	}
	return converter.ConvertOrderRequest(req, lock, net)
}

// splitVTOrderID 把 vt_orderid 拆成接口名和本地订单号
func splitVTOrderID(vtOrderID string) (gatewayName, orderID string, ok bool) {
	parts := strings.SplitN(vtOrderID, ".", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
