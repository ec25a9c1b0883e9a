package gateway

import (
	"fmt"
	"sync"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/logger"
)

var lomLog = logger.Component("order_manager")

// OrderSink 接收订单推送的目标（通常是接口的 BaseGateway）
type OrderSink interface {
	OnOrder(order *domain.OrderData)
}

// CancelFunc 接口的原始撤单实现
type CancelFunc func(req *domain.CancelRequest)

// PushDataCallback 处理补发的原始推送数据
type PushDataCallback func(data any)

// LocalOrderManager 为接口维护进程内本地订单号，并与柜台订单号双向对账。
//
// 柜台确认（返回 sys_orderid）与柜台自身的推送流存在竞态：
// 推送先到时先缓存，等映射建立后由回调补发；撤单请求先到时同样缓存，
// 等映射建立后再调用接口的原始撤单实现。映射一经建立不再改绑。
//
// 原始撤单函数通过构造参数显式传入，调用方统一走 CancelOrder，
// 不存在对接口方法的运行时替换。
type LocalOrderManager struct {
	sink        OrderSink
	gatewayName string
	prefix      string
	cancelFunc  CancelFunc

	mu         sync.Mutex
	orderCount int

	orders map[string]*domain.OrderData // local_orderid -> 订单快照

	localSysMap map[string]string // local_orderid -> sys_orderid
	sysLocalMap map[string]string // sys_orderid -> local_orderid

	pushDataBuf      map[string]any // sys_orderid -> 待补发推送
	pushDataCallback PushDataCallback

	cancelRequestBuf map[string]*domain.CancelRequest // local_orderid -> 待补发撤单
}

// NewLocalOrderManager 创建本地订单管理器。
// cancelFunc 是接口的原始撤单实现，映射建立前的撤单请求会被缓存。
func NewLocalOrderManager(sink OrderSink, gatewayName, prefix string, cancelFunc CancelFunc) *LocalOrderManager {
	return &LocalOrderManager{
		sink:             sink,
		gatewayName:      gatewayName,
		prefix:           prefix,
		cancelFunc:       cancelFunc,
		orders:           make(map[string]*domain.OrderData),
		localSysMap:      make(map[string]string),
		sysLocalMap:      make(map[string]string),
		pushDataBuf:      make(map[string]any),
		cancelRequestBuf: make(map[string]*domain.CancelRequest),
	}
}

// SetPushDataCallback 设置推送补发回调
func (m *LocalOrderManager) SetPushDataCallback(cb PushDataCallback) {
	m.mu.Lock()
	m.pushDataCallback = cb
	m.mu.Unlock()
}

// NewLocalOrderID 生成新的本地订单号（前缀 + 8位递增序号，进程内不重复）
func (m *LocalOrderManager) NewLocalOrderID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newLocalOrderIDLocked()
}

func (m *LocalOrderManager) newLocalOrderIDLocked() string {
	m.orderCount++
	return fmt.Sprintf("%s%08d", m.prefix, m.orderCount)
}

// GetLocalOrderID 由柜台订单号取本地订单号；没有映射时生成新号并建立映射
func (m *LocalOrderManager) GetLocalOrderID(sysOrderID string) string {
	m.mu.Lock()
	localOrderID, ok := m.sysLocalMap[sysOrderID]
	if ok {
		m.mu.Unlock()
		return localOrderID
	}
	localOrderID = m.newLocalOrderIDLocked()
	m.mu.Unlock()

	m.UpdateOrderIDMap(localOrderID, sysOrderID)
	return localOrderID
}

// GetSysOrderID 由本地订单号取柜台订单号，未映射时返回空串
func (m *LocalOrderManager) GetSysOrderID(localOrderID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localSysMap[localOrderID]
}

// UpdateOrderIDMap 双向绑定订单号映射，随后补发缓存的撤单请求和推送数据。
// 已绑定的订单号不会改绑。
func (m *LocalOrderManager) UpdateOrderIDMap(localOrderID, sysOrderID string) {
	m.mu.Lock()

	if existing, ok := m.localSysMap[localOrderID]; ok && existing != sysOrderID {
		m.mu.Unlock()
		lomLog.Warnf("拒绝改绑订单号映射: local=%s 已绑定 sys=%s, 新 sys=%s",
			localOrderID, existing, sysOrderID)
		return
	}
	if existing, ok := m.sysLocalMap[sysOrderID]; ok && existing != localOrderID {
		m.mu.Unlock()
		lomLog.Warnf("拒绝改绑订单号映射: sys=%s 已绑定 local=%s, 新 local=%s",
			sysOrderID, existing, localOrderID)
		return
	}

	m.localSysMap[localOrderID] = sysOrderID
	m.sysLocalMap[sysOrderID] = localOrderID

	cancelReq, hasCancel := m.cancelRequestBuf[localOrderID]
	if hasCancel {
		delete(m.cancelRequestBuf, localOrderID)
	}
	pushData, hasPush := m.pushDataBuf[sysOrderID]
	if hasPush {
		delete(m.pushDataBuf, sysOrderID)
	}
	callback := m.pushDataCallback
	m.mu.Unlock()

	// 缓存的请求在锁外补发，避免回调再次进入本管理器时死锁
	if hasCancel {
		m.CancelOrder(cancelReq)
	}
	if hasPush && callback != nil {
		callback(pushData)
	}
}

// AddPushData 缓存引用了未知柜台订单号的推送数据，
// 映射建立后由 UpdateOrderIDMap 精确补发一次
func (m *LocalOrderManager) AddPushData(sysOrderID string, data any) {
	m.mu.Lock()
	m.pushDataBuf[sysOrderID] = data
	m.mu.Unlock()
}

// GetOrderWithSysOrderID 由柜台订单号取订单快照
func (m *LocalOrderManager) GetOrderWithSysOrderID(sysOrderID string) *domain.OrderData {
	m.mu.Lock()
	localOrderID, ok := m.sysLocalMap[sysOrderID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.GetOrderWithLocalOrderID(localOrderID)
}

// GetOrderWithLocalOrderID 由本地订单号取订单快照（返回副本，跨线程安全）
func (m *LocalOrderManager) GetOrderWithLocalOrderID(localOrderID string) *domain.OrderData {
	m.mu.Lock()
	order, ok := m.orders[localOrderID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return order.Clone()
}

// OnOrder 在推送给接口前保存订单快照
func (m *LocalOrderManager) OnOrder(order *domain.OrderData) {
	m.mu.Lock()
	m.orders[order.OrderID] = order.Clone()
	m.mu.Unlock()

	m.sink.OnOrder(order)
}

// CancelOrder 撤单统一入口：映射未建立时缓存请求，静默返回；
// 已建立时调用接口的原始撤单实现
func (m *LocalOrderManager) CancelOrder(req *domain.CancelRequest) {
	m.mu.Lock()
	sysOrderID, ok := m.localSysMap[req.OrderID]
	if !ok || sysOrderID == "" {
		m.cancelRequestBuf[req.OrderID] = req
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.cancelFunc(req)
}

// PendingCancelCount 仍在等待柜台确认的撤单请求数（诊断用）
func (m *LocalOrderManager) PendingCancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancelRequestBuf)
}

// PendingPushCount 仍未补发的推送数据条数（诊断用）
func (m *LocalOrderManager) PendingPushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushDataBuf)
}

// Close 关闭时报告未解决的缓冲条目。
// 柜台始终未确认的订单，其撤单请求会永远留在缓冲里，这里显式暴露出来。
func (m *LocalOrderManager) Close() {
	m.mu.Lock()
	pendingCancels := len(m.cancelRequestBuf)
	pendingPushes := len(m.pushDataBuf)
	m.mu.Unlock()

	if pendingCancels > 0 || pendingPushes > 0 {
		lomLog.Warnf("接口 %s 关闭时仍有未解决缓冲: 撤单=%d 推送=%d",
			m.gatewayName, pendingCancels, pendingPushes)
	}
}
