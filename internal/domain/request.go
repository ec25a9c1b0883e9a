package domain

import (
	"fmt"
	"time"
)

// SubscribeRequest 行情订阅请求
type SubscribeRequest struct {
	Symbol   string
	Exchange Exchange
}

func (r *SubscribeRequest) VTSymbol() string {
	return fmt.Sprintf("%s.%s", r.Symbol, r.Exchange)
}

// OrderRequest 新委托请求
type OrderRequest struct {
	Symbol    string
	Exchange  Exchange
	Direction Direction
	Type      OrderType
	Volume    float64
	Price     float64
	Offset    Offset
	Reference string
}

func (r *OrderRequest) VTSymbol() string {
	return fmt.Sprintf("%s.%s", r.Symbol, r.Exchange)
}

// Clone 返回请求的独立副本（开平转换会在副本上改写 Offset/Volume）
func (r *OrderRequest) Clone() *OrderRequest {
	clone := *r
	return &clone
}

// CreateOrderData 由请求生成初始订单对象
func (r *OrderRequest) CreateOrderData(orderID string, gatewayName string) *OrderData {
	return &OrderData{
		GatewayName: gatewayName,
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		OrderID:     orderID,
		Type:        r.Type,
		Direction:   r.Direction,
		Offset:      r.Offset,
		Price:       r.Price,
		Volume:      r.Volume,
		Status:      StatusSubmitting,
		Reference:   r.Reference,
	}
}

// CancelRequest 撤单请求
type CancelRequest struct {
	OrderID  string
	Symbol   string
	Exchange Exchange
}

func (r *CancelRequest) VTSymbol() string {
	return fmt.Sprintf("%s.%s", r.Symbol, r.Exchange)
}

// HistoryRequest 历史K线查询请求
type HistoryRequest struct {
	Symbol   string
	Exchange Exchange
	Start    time.Time
	End      time.Time
	Interval Interval
}

func (r *HistoryRequest) VTSymbol() string {
	return fmt.Sprintf("%s.%s", r.Symbol, r.Exchange)
}

// QuoteRequest 新报价请求
type QuoteRequest struct {
	Symbol    string
	Exchange  Exchange
	BidPrice  float64
	BidVolume float64
	AskPrice  float64
	AskVolume float64
	BidOffset Offset
	AskOffset Offset
	Reference string
}

func (r *QuoteRequest) VTSymbol() string {
	return fmt.Sprintf("%s.%s", r.Symbol, r.Exchange)
}

// CreateQuoteData 由请求生成初始报价对象
func (r *QuoteRequest) CreateQuoteData(quoteID string, gatewayName string) *QuoteData {
	return &QuoteData{
		GatewayName: gatewayName,
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		QuoteID:     quoteID,
		BidPrice:    r.BidPrice,
		BidVolume:   r.BidVolume,
		AskPrice:    r.AskPrice,
		AskVolume:   r.AskVolume,
		BidOffset:   r.BidOffset,
		AskOffset:   r.AskOffset,
		Status:      StatusSubmitting,
		Reference:   r.Reference,
	}
}
