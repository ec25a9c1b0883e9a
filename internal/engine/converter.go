package engine

import (
	"sync"

	"github.com/quantbot/gotrader/internal/domain"
)

// ContractGetter 按 vt_symbol 查询合约信息
type ContractGetter func(vtSymbol string) *domain.ContractData

// OffsetConverter 单个交易接口的开平仓调整入口。
// 每个 vt_symbol 惰性创建一个 PositionHolding 并缓存到进程结束。
type OffsetConverter struct {
	mu          sync.Mutex
	holdings    map[string]*PositionHolding
	getContract ContractGetter
}

// NewOffsetConverter 创建转换器，getContract 通常绑定到 OmsEngine.GetContract
func NewOffsetConverter(getContract ContractGetter) *OffsetConverter {
	return &OffsetConverter{
		holdings:    make(map[string]*PositionHolding),
		getContract: getContract,
	}
}

// UpdatePosition 持仓快照更新
func (c *OffsetConverter) UpdatePosition(position *domain.PositionData) {
	if !c.IsConvertRequired(position.VTSymbol()) {
		return
	}
	c.GetPositionHolding(position.VTSymbol()).UpdatePosition(position)
}

// UpdateTrade 成交回报更新
func (c *OffsetConverter) UpdateTrade(trade *domain.TradeData) {
	if !c.IsConvertRequired(trade.VTSymbol()) {
		return
	}
	c.GetPositionHolding(trade.VTSymbol()).UpdateTrade(trade)
}

// UpdateOrder 订单状态更新
func (c *OffsetConverter) UpdateOrder(order *domain.OrderData) {
	if !c.IsConvertRequired(order.VTSymbol()) {
		return
	}
	c.GetPositionHolding(order.VTSymbol()).UpdateOrder(order)
}

// UpdateOrderRequest 委托提交后立即把冻结量记入持仓
func (c *OffsetConverter) UpdateOrderRequest(req *domain.OrderRequest, vtOrderID string) {
	if !c.IsConvertRequired(req.VTSymbol()) {
		return
	}
	c.GetPositionHolding(req.VTSymbol()).UpdateOrderRequest(req, vtOrderID)
}

// GetPositionHolding 获取（必要时创建）持仓对象
func (c *OffsetConverter) GetPositionHolding(vtSymbol string) *PositionHolding {
	c.mu.Lock()
	defer c.mu.Unlock()

	holding, ok := c.holdings[vtSymbol]
	if !ok {
		contract := c.getContract(vtSymbol)
		holding = NewPositionHolding(contract)
		c.holdings[vtSymbol] = holding
	}
	return holding
}

// ConvertOrderRequest 按模式转换原始委托请求。
// 返回空切片表示可平量不足，调用方必须视为“无法提交”，不能静默丢弃。
func (c *OffsetConverter) ConvertOrderRequest(req *domain.OrderRequest, lock, net bool) []*domain.OrderRequest {
	if !c.IsConvertRequired(req.VTSymbol()) {
		return []*domain.OrderRequest{req}
	}

	holding := c.GetPositionHolding(req.VTSymbol())

	switch {
	case lock:
		return holding.ConvertOrderRequestLock(req)
	case net:
		return holding.ConvertOrderRequestNet(req)
	case req.Exchange.SplitsCloseToday():
		return holding.ConvertOrderRequestSHFE(req)
	default:
		return []*domain.OrderRequest{req}
	}
}

// IsConvertRequired 合约未知或按净头寸报告时不需要转换
func (c *OffsetConverter) IsConvertRequired(vtSymbol string) bool {
	contract := c.getContract(vtSymbol)

	if contract == nil {
		return false
	}
	return !contract.NetPosition
}

// PositionHolding 单合约持仓台账：多/空 × 总/昨/今 六个数量计数器，
// 以及对应的六个冻结计数器（被未成交平仓单占用的部分）。
//
// 不变式（每次变更后都成立）：
//   - 0 <= *_td_frozen <= *_td, 0 <= *_yd_frozen <= *_yd
//   - *_pos == *_td + *_yd, *_pos_frozen == *_td_frozen + *_yd_frozen
type PositionHolding struct {
	vtSymbol string
	exchange domain.Exchange

	activeOrders map[string]*domain.OrderData // vt_orderid -> 活跃委托

	LongPos  float64
	LongYd   float64
	LongTd   float64
	ShortPos float64
	ShortYd  float64
	ShortTd  float64

	LongPosFrozen  float64
	LongYdFrozen   float64
	LongTdFrozen   float64
	ShortPosFrozen float64
	ShortYdFrozen  float64
	ShortTdFrozen  float64
}

// NewPositionHolding 由合约对象创建持仓台账
func NewPositionHolding(contract *domain.ContractData) *PositionHolding {
	return &PositionHolding{
		vtSymbol:     contract.VTSymbol(),
		exchange:     contract.Exchange,
		activeOrders: make(map[string]*domain.OrderData),
	}
}

// UpdatePosition 整体替换持仓快照，今仓由总量减昨仓推导。
// 重复广播天然幂等。
func (h *PositionHolding) UpdatePosition(position *domain.PositionData) {
	if position.Direction == domain.DirectionLong {
		h.LongPos = position.Volume
		h.LongYd = position.YdVolume
		h.LongTd = h.LongPos - h.LongYd
	} else {
		h.ShortPos = position.Volume
		h.ShortYd = position.YdVolume
		h.ShortTd = h.ShortPos - h.ShortYd
	}
}

// UpdateOrder 维护活跃委托索引并全量重算冻结量
func (h *PositionHolding) UpdateOrder(order *domain.OrderData) {
	if order.IsActive() {
		h.activeOrders[order.VTOrderID()] = order
	} else {
		delete(h.activeOrders, order.VTOrderID())
	}

	h.CalculateFrozen()
}

// UpdateOrderRequest 把刚提交的请求立即转成订单计入冻结
func (h *PositionHolding) UpdateOrderRequest(req *domain.OrderRequest, vtOrderID string) {
	gatewayName, orderID, ok := splitVTOrderID(vtOrderID)
	if !ok {
		return
	}
	h.UpdateOrder(req.CreateOrderData(orderID, gatewayName))
}

// UpdateTrade 按成交的方向/开平/交易所规则调整计数器。
// 非区分今昨的交易所上，CLOSE 先扣今仓，为负的部分由昨仓吸收。
func (h *PositionHolding) UpdateTrade(trade *domain.TradeData) {
	if trade.Direction == domain.DirectionLong {
		switch trade.Offset {
		case domain.OffsetOpen:
			h.LongTd += trade.Volume
		case domain.OffsetCloseToday:
			h.ShortTd -= trade.Volume
		case domain.OffsetCloseYesterday:
			h.ShortYd -= trade.Volume
		case domain.OffsetClose:
			if trade.Exchange.SplitsCloseToday() {
				h.ShortYd -= trade.Volume
			} else {
				h.ShortTd -= trade.Volume
				if h.ShortTd < 0 {
					h.ShortYd += h.ShortTd
					h.ShortTd = 0
				}
			}
		}
	} else {
		switch trade.Offset {
		case domain.OffsetOpen:
			h.ShortTd += trade.Volume
		case domain.OffsetCloseToday:
			h.LongTd -= trade.Volume
		case domain.OffsetCloseYesterday:
			h.LongYd -= trade.Volume
		case domain.OffsetClose:
			if trade.Exchange.SplitsCloseToday() {
				h.LongYd -= trade.Volume
			} else {
				h.LongTd -= trade.Volume
				if h.LongTd < 0 {
					h.LongYd += h.LongTd
					h.LongTd = 0
				}
			}
		}
	}

	h.LongPos = h.LongTd + h.LongYd
	h.ShortPos = h.ShortTd + h.ShortYd

	h.SumPosFrozen()
}

// CalculateFrozen 遍历活跃委托从零重算全部冻结量。
// 全量重算避免增量维护漂移；开仓委托不冻结既有仓位，直接跳过。
func (h *PositionHolding) CalculateFrozen() {
	h.LongPosFrozen = 0
	h.LongYdFrozen = 0
	h.LongTdFrozen = 0
	h.ShortPosFrozen = 0
	h.ShortYdFrozen = 0
	h.ShortTdFrozen = 0

	for _, order := range h.activeOrders {
		if order.Offset == domain.OffsetOpen {
			continue
		}

		frozen := order.Volume - order.Traded

		if order.Direction == domain.DirectionLong {
			switch order.Offset {
			case domain.OffsetCloseToday:
				h.ShortTdFrozen += frozen
			case domain.OffsetCloseYesterday:
				h.ShortYdFrozen += frozen
			case domain.OffsetClose:
				h.ShortTdFrozen += frozen
				if h.ShortTdFrozen > h.ShortTd {
					h.ShortYdFrozen += h.ShortTdFrozen - h.ShortTd
					h.ShortTdFrozen = h.ShortTd
				}
			}
		} else if order.Direction == domain.DirectionShort {
			switch order.Offset {
			case domain.OffsetCloseToday:
				h.LongTdFrozen += frozen
			case domain.OffsetCloseYesterday:
				h.LongYdFrozen += frozen
			case domain.OffsetClose:
				h.LongTdFrozen += frozen
				if h.LongTdFrozen > h.LongTd {
					h.LongYdFrozen += h.LongTdFrozen - h.LongTd
					h.LongTdFrozen = h.LongTd
				}
			}
		}
	}

	h.SumPosFrozen()
}

// SumPosFrozen 冻结量夹取到不超过对应总量，再汇总两侧合计冻结
func (h *PositionHolding) SumPosFrozen() {
	h.LongTdFrozen = min(h.LongTdFrozen, h.LongTd)
	h.LongYdFrozen = min(h.LongYdFrozen, h.LongYd)
	h.ShortTdFrozen = min(h.ShortTdFrozen, h.ShortTd)
	h.ShortYdFrozen = min(h.ShortYdFrozen, h.ShortYd)

	h.LongPosFrozen = h.LongTdFrozen + h.LongYdFrozen
	h.ShortPosFrozen = h.ShortTdFrozen + h.ShortYdFrozen
}

// ConvertOrderRequestSHFE 区分今昨交易所的平仓拆分：
// 今仓可平量优先，剩余部分落到平昨；可平总量不足时返回空切片。
// 平今腿在前——交易所通常要求/优惠先平今。
func (h *PositionHolding) ConvertOrderRequestSHFE(req *domain.OrderRequest) []*domain.OrderRequest {
	if req.Offset == domain.OffsetOpen {
		return []*domain.OrderRequest{req}
	}

	var posAvailable, tdAvailable float64
	if req.Direction == domain.DirectionLong {
		posAvailable = h.ShortPos - h.ShortPosFrozen
		tdAvailable = h.ShortTd - h.ShortTdFrozen
	} else {
		posAvailable = h.LongPos - h.LongPosFrozen
		tdAvailable = h.LongTd - h.LongTdFrozen
	}

	if req.Volume > posAvailable {
		return nil
	}

	if req.Volume <= tdAvailable {
		reqTd := req.Clone()
		reqTd.Offset = domain.OffsetCloseToday
		return []*domain.OrderRequest{reqTd}
	}

	var reqs []*domain.OrderRequest

	if tdAvailable > 0 {
		reqTd := req.Clone()
		reqTd.Offset = domain.OffsetCloseToday
		reqTd.Volume = tdAvailable
		reqs = append(reqs, reqTd)
	}

	reqYd := req.Clone()
	reqYd.Offset = domain.OffsetCloseYesterday
	reqYd.Volume = req.Volume - tdAvailable
	reqs = append(reqs, reqYd)

	return reqs
}

// ConvertOrderRequestLock 锁仓模式转换。
// 对侧有今仓且交易所不区分今昨时，平仓会有错平风险，改为直接开仓对锁；
// 否则先平对侧昨仓可用量，剩余部分开新仓。
func (h *PositionHolding) ConvertOrderRequestLock(req *domain.OrderRequest) []*domain.OrderRequest {
	var tdVolume, ydAvailable float64
	if req.Direction == domain.DirectionLong {
		tdVolume = h.ShortTd
		ydAvailable = h.ShortYd - h.ShortYdFrozen
	} else {
		tdVolume = h.LongTd
		ydAvailable = h.LongYd - h.LongYdFrozen
	}

	if tdVolume > 0 && !h.exchange.SplitsCloseToday() {
		reqOpen := req.Clone()
		reqOpen.Offset = domain.OffsetOpen
		return []*domain.OrderRequest{reqOpen}
	}

	closeVolume := min(req.Volume, ydAvailable)
	openVolume := max(0, req.Volume-ydAvailable)
	var reqs []*domain.OrderRequest

	if ydAvailable > 0 {
		reqYd := req.Clone()
		if h.exchange.SplitsCloseToday() {
			reqYd.Offset = domain.OffsetCloseYesterday
		} else {
			reqYd.Offset = domain.OffsetClose
		}
		reqYd.Volume = closeVolume
		reqs = append(reqs, reqYd)
	}

	if openVolume > 0 {
		reqOpen := req.Clone()
		reqOpen.Offset = domain.OffsetOpen
		reqOpen.Volume = openVolume
		reqs = append(reqs, reqOpen)
	}

	return reqs
}

// ConvertOrderRequestNet 净仓模式的多腿转换：
// 区分今昨的交易所依次消耗今仓可用、昨仓可用，不足部分开新仓，
// 最多产生 平今/平昨/开仓 三条腿；其他交易所合并为 平仓+开仓 两条腿。
func (h *PositionHolding) ConvertOrderRequestNet(req *domain.OrderRequest) []*domain.OrderRequest {
	var posAvailable, tdAvailable, ydAvailable float64
	if req.Direction == domain.DirectionLong {
		posAvailable = h.ShortPos - h.ShortPosFrozen
		tdAvailable = h.ShortTd - h.ShortTdFrozen
		ydAvailable = h.ShortYd - h.ShortYdFrozen
	} else {
		posAvailable = h.LongPos - h.LongPosFrozen
		tdAvailable = h.LongTd - h.LongTdFrozen
		ydAvailable = h.LongYd - h.LongYdFrozen
	}

	var reqs []*domain.OrderRequest
	volumeLeft := req.Volume

	if h.exchange.SplitsCloseToday() {
		if tdAvailable > 0 {
			tdVolume := min(tdAvailable, volumeLeft)
			volumeLeft -= tdVolume

			reqTd := req.Clone()
			reqTd.Offset = domain.OffsetCloseToday
			reqTd.Volume = tdVolume
			reqs = append(reqs, reqTd)
		}

		if volumeLeft > 0 && ydAvailable > 0 {
			ydVolume := min(ydAvailable, volumeLeft)
			volumeLeft -= ydVolume

			reqYd := req.Clone()
			reqYd.Offset = domain.OffsetCloseYesterday
			reqYd.Volume = ydVolume
			reqs = append(reqs, reqYd)
		}
	} else {
		if posAvailable > 0 {
			closeVolume := min(posAvailable, volumeLeft)
			volumeLeft -= closeVolume

			reqClose := req.Clone()
			reqClose.Offset = domain.OffsetClose
			reqClose.Volume = closeVolume
			reqs = append(reqs, reqClose)
		}
	}

	if volumeLeft > 0 {
		reqOpen := req.Clone()
		reqOpen.Offset = domain.OffsetOpen
		reqOpen.Volume = volumeLeft
		reqs = append(reqs, reqOpen)
	}

	return reqs
}
