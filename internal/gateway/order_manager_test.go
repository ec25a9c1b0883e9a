package gateway

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbot/gotrader/internal/domain"
)

// recordingSink 记录收到的订单推送
type recordingSink struct {
	mu     sync.Mutex
	orders []*domain.OrderData
}

func (s *recordingSink) OnOrder(order *domain.OrderData) {
	s.mu.Lock()
	s.orders = append(s.orders, order)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// recordingCancel 记录实际发出的撤单请求
type recordingCancel struct {
	mu   sync.Mutex
	reqs []*domain.CancelRequest
}

func (c *recordingCancel) cancel(req *domain.CancelRequest) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
}

func (c *recordingCancel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

func newTestManager() (*LocalOrderManager, *recordingSink, *recordingCancel) {
	sink := &recordingSink{}
	cancel := &recordingCancel{}
	m := NewLocalOrderManager(sink, "TEST", "T_", cancel.cancel)
	return m, sink, cancel
}

// 本地订单号带前缀、8位零填充且进程内递增不重复
func TestNewLocalOrderID(t *testing.T) {
	m, _, _ := newTestManager()

	assert.Equal(t, "T_00000001", m.NewLocalOrderID())
	assert.Equal(t, "T_00000002", m.NewLocalOrderID())

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := m.NewLocalOrderID()
				mu.Lock()
				assert.False(t, seen[id])
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

// 未知柜台订单号自动生成本地号并建立双向映射
func TestGetLocalOrderID(t *testing.T) {
	m, _, _ := newTestManager()

	local := m.GetLocalOrderID("sys_1")
	assert.Equal(t, "T_00000001", local)
	// 再次查询返回同一本地号
	assert.Equal(t, local, m.GetLocalOrderID("sys_1"))
	assert.Equal(t, "sys_1", m.GetSysOrderID(local))
}

// 未映射的本地号查柜台号返回空串
func TestGetSysOrderIDUnmapped(t *testing.T) {
	m, _, _ := newTestManager()
	assert.Equal(t, "", m.GetSysOrderID("T_99999999"))
}

// 映射建立前的撤单请求被缓存，映射建立后恰好补发一次
func TestCancelBufferedUntilMapped(t *testing.T) {
	m, _, cancel := newTestManager()

	local := m.NewLocalOrderID()
	req := &domain.CancelRequest{OrderID: local, Symbol: "rb2510", Exchange: domain.ExchangeSHFE}

	m.CancelOrder(req)
	assert.Equal(t, 0, cancel.count())
	assert.Equal(t, 1, m.PendingCancelCount())

	m.UpdateOrderIDMap(local, "sys_1")
	require.Equal(t, 1, cancel.count())
	assert.Equal(t, 0, m.PendingCancelCount())
	assert.Equal(t, local, cancel.reqs[0].OrderID)

	// 已映射后的撤单直接发出，不再缓存
	m.CancelOrder(req)
	assert.Equal(t, 2, cancel.count())
}

// 引用未知柜台号的推送先缓存，映射建立后由回调恰好补发一次
func TestPushDataBufferedUntilMapped(t *testing.T) {
	m, _, _ := newTestManager()

	var replayed []any
	m.SetPushDataCallback(func(data any) {
		replayed = append(replayed, data)
	})

	m.AddPushData("sys_1", "payload")
	assert.Equal(t, 1, m.PendingPushCount())
	assert.Empty(t, replayed)

	local := m.NewLocalOrderID()
	m.UpdateOrderIDMap(local, "sys_1")
	require.Len(t, replayed, 1)
	assert.Equal(t, "payload", replayed[0])
	assert.Equal(t, 0, m.PendingPushCount())

	// 重复建立同一映射不会再次补发
	m.UpdateOrderIDMap(local, "sys_1")
	assert.Len(t, replayed, 1)
}

// 已绑定的订单号拒绝改绑
func TestNoRebind(t *testing.T) {
	m, _, _ := newTestManager()

	local := m.NewLocalOrderID()
	m.UpdateOrderIDMap(local, "sys_1")

	m.UpdateOrderIDMap(local, "sys_2")
	assert.Equal(t, "sys_1", m.GetSysOrderID(local))
	assert.Equal(t, local, m.GetLocalOrderID("sys_1"))

	other := m.NewLocalOrderID()
	m.UpdateOrderIDMap(other, "sys_1")
	assert.Equal(t, "", m.GetSysOrderID(other))
}

// OnOrder 保存快照副本后转发，后续修改原对象不影响快照
func TestOnOrderSnapshot(t *testing.T) {
	m, sink, _ := newTestManager()

	order := &domain.OrderData{
		GatewayName: "TEST",
		Symbol:      "rb2510",
		Exchange:    domain.ExchangeSHFE,
		OrderID:     "T_00000001",
		Status:      domain.StatusNotTraded,
		Volume:      10,
	}
	m.OnOrder(order)
	assert.Equal(t, 1, sink.count())

	order.Traded = 5
	snapshot := m.GetOrderWithLocalOrderID("T_00000001")
	require.NotNil(t, snapshot)
	assert.Equal(t, float64(0), snapshot.Traded)

	// 返回的是副本，改写不影响内部状态
	snapshot.Traded = 99
	again := m.GetOrderWithLocalOrderID("T_00000001")
	assert.Equal(t, float64(0), again.Traded)
}

// 通过柜台号查订单走映射
func TestGetOrderWithSysOrderID(t *testing.T) {
	m, _, _ := newTestManager()

	assert.Nil(t, m.GetOrderWithSysOrderID("sys_1"))

	local := m.NewLocalOrderID()
	m.OnOrder(&domain.OrderData{OrderID: local, Status: domain.StatusNotTraded})
	m.UpdateOrderIDMap(local, "sys_1")

	order := m.GetOrderWithSysOrderID("sys_1")
	require.NotNil(t, order)
	assert.Equal(t, local, order.OrderID)
}

// 乱序场景：柜台确认晚于撤单请求和推送数据到达
func TestOutOfOrderConfirmation(t *testing.T) {
	m, _, cancel := newTestManager()

	var replayed []any
	m.SetPushDataCallback(func(data any) {
		replayed = append(replayed, data)
	})

	// 本地发单
	local := m.NewLocalOrderID()
	m.OnOrder(&domain.OrderData{OrderID: local, Status: domain.StatusSubmitting})

	// 用户立即撤单（柜台号未知）
	m.CancelOrder(&domain.CancelRequest{OrderID: local})
	// 柜台推送先到（本地号未知）
	m.AddPushData("sys_9", fmt.Sprintf("push-for-%s", local))

	assert.Equal(t, 0, cancel.count())
	assert.Empty(t, replayed)

	// 柜台确认到达，两类缓冲同时解决
	m.UpdateOrderIDMap(local, "sys_9")
	assert.Equal(t, 1, cancel.count())
	require.Len(t, replayed, 1)
}
