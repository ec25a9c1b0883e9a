package event

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantbot/gotrader/pkg/logger"
	"github.com/quantbot/gotrader/pkg/sigchan"
)

var log = logger.Component("event_engine")

// 消费 goroutine 空转时最多等待这么久就重新检查停止标志
const consumeTimeout = time.Second

// EventEngine 按事件类型把事件分发给已注册的处理函数，
// 同时按固定间隔生成定时事件。
//
// 并发模型：任意多个生产者 goroutine 调用 Put；分发只发生在
// 唯一的消费 goroutine 上，同类型处理函数按注册顺序串行执行。
// 处理函数内的 panic 会被捕获并记录，不会中断分发。
type EventEngine struct {
	interval time.Duration

	mu    sync.Mutex
	queue []Event

	notify *sigchan.Chan
	stopC  chan struct{}
	active atomic.Bool
	wg     sync.WaitGroup

	handlerMu       sync.RWMutex
	handlers        map[string][]Handler
	generalHandlers []Handler
}

// NewEventEngine 创建事件引擎，interval<=0 时定时事件间隔默认1秒
func NewEventEngine(interval time.Duration) *EventEngine {
	if interval <= 0 {
		interval = time.Second
	}
	return &EventEngine{
		interval: interval,
		notify:   sigchan.New(1),
		stopC:    make(chan struct{}),
		handlers: make(map[string][]Handler),
	}
}

// Start 启动消费 goroutine 和定时 goroutine。只能调用一次。
func (e *EventEngine) Start() {
	if !e.active.CompareAndSwap(false, true) {
		return
	}

	e.wg.Add(2)
	go e.runConsumer()
	go e.runTimer()
}

// Stop 停止引擎并等待两个 goroutine 退出。
// 正在分发中的事件允许执行完毕，之后不再产生新的定时事件。
func (e *EventEngine) Stop() {
	if !e.active.CompareAndSwap(true, false) {
		return
	}

	close(e.stopC)
	e.notify.Emit()
	e.wg.Wait()
}

// Put 将事件放入处理队列。线程安全，调用方不会被分发阻塞。
func (e *EventEngine) Put(ev Event) {
	e.mu.Lock()
	e.queue = append(e.queue, ev)
	e.mu.Unlock()

	e.notify.Emit()
}

// QueueSize 当前待处理事件数（诊断用）
func (e *EventEngine) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *EventEngine) pop() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return Event{}, false
	}
	ev := e.queue[0]
	e.queue = e.queue[1:]
	return ev, true
}

func (e *EventEngine) runConsumer() {
	defer e.wg.Done()

	timer := time.NewTimer(consumeTimeout)
	defer timer.Stop()

	for {
		if ev, ok := e.pop(); ok {
			e.process(ev)
			continue
		}
		if !e.active.Load() {
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(consumeTimeout)

		select {
		case <-e.notify.C():
		case <-timer.C:
		}
	}
}

func (e *EventEngine) runTimer() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopC:
			return
		case <-ticker.C:
			e.Put(NewEvent(EventTimer, nil))
		}
	}
}

// process 先分发给该类型的处理函数，再分发给通用处理函数
func (e *EventEngine) process(ev Event) {
	e.handlerMu.RLock()
	typed := e.handlers[ev.Type]
	general := e.generalHandlers
	e.handlerMu.RUnlock()

	for _, handler := range typed {
		e.dispatch(handler, ev)
	}
	for _, handler := range general {
		e.dispatch(handler, ev)
	}
}

// dispatch 隔离单个处理函数的 panic，保证一个订阅者出错不影响全局分发
func (e *EventEngine) dispatch(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("事件处理函数 panic: type=%s err=%v", ev.Type, r)
		}
	}()
	handler(ev)
}

// handlerID 以函数代码指针作为处理函数身份，用于幂等注册和注销
func handlerID(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// Register 为指定事件类型注册处理函数。
// 同一处理函数对同一类型最多注册一次。
func (e *EventEngine) Register(eventType string, handler Handler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()

	id := handlerID(handler)
	for _, h := range e.handlers[eventType] {
		if handlerID(h) == id {
			return
		}
	}
	e.handlers[eventType] = append(e.handlers[eventType], handler)
}

// Unregister 注销处理函数；该类型的处理函数列表为空时删除类型键
func (e *EventEngine) Unregister(eventType string, handler Handler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()

	id := handlerID(handler)
	list := e.handlers[eventType]
	for i, h := range list {
		if handlerID(h) == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}

	if len(list) == 0 {
		delete(e.handlers, eventType)
	} else {
		e.handlers[eventType] = list
	}
}

// RegisterGeneral 注册通用处理函数，接收所有类型的事件
func (e *EventEngine) RegisterGeneral(handler Handler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()

	id := handlerID(handler)
	for _, h := range e.generalHandlers {
		if handlerID(h) == id {
			return
		}
	}
	e.generalHandlers = append(e.generalHandlers, handler)
}

// UnregisterGeneral 注销通用处理函数
func (e *EventEngine) UnregisterGeneral(handler Handler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()

	id := handlerID(handler)
	for i, h := range e.generalHandlers {
		if handlerID(h) == id {
			e.generalHandlers = append(e.generalHandlers[:i], e.generalHandlers[i+1:]...)
			return
		}
	}
}
