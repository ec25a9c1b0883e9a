// Package riskmanager 事前风控引擎：委托在发往接口前依次通过
// 流控、单笔数量、活跃委托数量、日内撤单次数四道检查。
package riskmanager

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/engine"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/config"
	"github.com/quantbot/gotrader/pkg/logger"
	"github.com/quantbot/gotrader/pkg/persistence"
	"github.com/quantbot/gotrader/pkg/ratelimit"
)

// EngineName 风控引擎注册名
const EngineName = "riskmanager"

var log = logger.Component(EngineName)

// NewApp 返回可传给 MainEngine.AddApp 的工厂
func NewApp(cfg config.RiskConfig, store persistence.Service) engine.AppFactory {
	return func(main *engine.MainEngine, ee *event.EventEngine) engine.Engine {
		return NewEngine(main, ee, cfg, store)
	}
}

// cancelState 日内撤单计数，跨进程重启保留
type cancelState struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"` // vt_symbol -> 撤单次数
}

// Engine 风控引擎。CheckRisk 返回 nil 表示放行。
// 检查失败的委托不会发出，原因写入日志事件。
type Engine struct {
	*engine.BaseEngine

	main *engine.MainEngine
	cfg  config.RiskConfig

	flow *ratelimit.TokenBucket

	mu     sync.Mutex
	active bool
	state  cancelState
	store  persistence.Store
}

// NewEngine 创建风控引擎：加载持久化的撤单计数，订阅订单事件
func NewEngine(main *engine.MainEngine, ee *event.EventEngine, cfg config.RiskConfig, svc persistence.Service) *Engine {
	clearSec := cfg.OrderFlowClear
	if clearSec <= 0 {
		clearSec = 1
	}
	window := time.Duration(clearSec) * time.Second
	refill := cfg.OrderFlowLimit / clearSec
	if refill <= 0 {
		refill = cfg.OrderFlowLimit
	}

	e := &Engine{
		BaseEngine: engine.NewBaseEngine(main, ee, EngineName),
		main:       main,
		cfg:        cfg,
		active:     cfg.Active,
		flow:       ratelimit.NewTokenBucket(cfg.OrderFlowLimit, refill, window),
		state: cancelState{
			Date:   today(),
			Counts: make(map[string]int),
		},
	}
	if svc != nil {
		e.store = svc.NewStore(EngineName, "cancel", "daily")
		e.loadState()
	}

	ee.Register(event.EventOrder, e.processOrderEvent)
	ee.Register(event.EventTimer, e.processTimerEvent)
	return e
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func (e *Engine) loadState() {
	var state cancelState
	err := e.store.Load(&state)
	switch {
	case err == nil && state.Date == today():
		if state.Counts == nil {
			state.Counts = make(map[string]int)
		}
		e.state = state
	case err != nil && !errors.Is(err, persistence.ErrNotExists):
		log.Warnf("加载撤单计数失败: %v", err)
	}
}

// SetActive 运行时开关风控
func (e *Engine) SetActive(active bool) {
	e.mu.Lock()
	e.active = active
	e.mu.Unlock()
}

// Active 风控是否启用
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// CancelCount 查询品种日内撤单次数
func (e *Engine) CancelCount(vtSymbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Counts[vtSymbol]
}

// CheckRisk 对委托请求执行全部风控检查，返回 nil 表示放行
func (e *Engine) CheckRisk(req *domain.OrderRequest, gatewayName string) error {
	if !e.Active() {
		return nil
	}

	if req.Volume <= 0 {
		return errors.New("委托数量必须大于0")
	}
	if e.cfg.OrderSizeLimit > 0 && req.Volume > e.cfg.OrderSizeLimit {
		return errors.Errorf("单笔委托数量 %v 超过上限 %v", req.Volume, e.cfg.OrderSizeLimit)
	}

	if e.cfg.ActiveOrderCap > 0 {
		activeCount := len(e.main.OMS().GetAllActiveOrders(""))
		if activeCount >= e.cfg.ActiveOrderCap {
			return errors.Errorf("活跃委托数量 %d 达到上限 %d", activeCount, e.cfg.ActiveOrderCap)
		}
	}

	if e.cfg.OrderCancelCap > 0 && e.CancelCount(req.VTSymbol()) >= e.cfg.OrderCancelCap {
		return errors.Errorf("品种 %s 日内撤单次数达到上限 %d", req.VTSymbol(), e.cfg.OrderCancelCap)
	}

	if !e.flow.Allow() {
		return errors.Errorf("委托流量超限（%d 笔 / %d 秒）",
			e.cfg.OrderFlowLimit, e.cfg.OrderFlowClear)
	}
	return nil
}

// SendOrder 风控检查后的下单入口。检查不通过时返回空串并写日志。
func (e *Engine) SendOrder(req *domain.OrderRequest, gatewayName string) string {
	if err := e.CheckRisk(req, gatewayName); err != nil {
		msg := fmt.Sprintf("风控拦截委托 %s %s %v@%v: %v",
			req.VTSymbol(), req.Direction, req.Volume, req.Price, err)
		log.Warn(msg)
		e.main.WriteLog(msg, EngineName)
		return ""
	}
	return e.main.SendOrder(req, gatewayName)
}

// processOrderEvent 统计撤单次数
func (e *Engine) processOrderEvent(ev event.Event) {
	order, ok := ev.Data.(*domain.OrderData)
	if !ok || order.Status != domain.StatusCancelled {
		return
	}

	e.mu.Lock()
	e.rolloverLocked()
	e.state.Counts[order.VTSymbol()]++
	e.mu.Unlock()
}

// processTimerEvent 定期落盘撤单计数
func (e *Engine) processTimerEvent(ev event.Event) {
	e.mu.Lock()
	e.rolloverLocked()
	store := e.store
	state := cancelState{Date: e.state.Date, Counts: make(map[string]int, len(e.state.Counts))}
	for k, v := range e.state.Counts {
		state.Counts[k] = v
	}
	e.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.Save(state); err != nil {
		log.Warnf("保存撤单计数失败: %v", err)
	}
}

// 调用方必须持有 e.mu。跨交易日时清零计数。
func (e *Engine) rolloverLocked() {
	if d := today(); e.state.Date != d {
		e.state.Date = d
		e.state.Counts = make(map[string]int)
	}
}

// Close 退出前把撤单计数落盘
func (e *Engine) Close() {
	e.processTimerEvent(event.Event{})
}
