// Package recorder 行情录制引擎：订阅行情事件攒批，
// 随定时事件批量写入行情数据库；新合约出现时可通过
// 历史数据服务回补K线。
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/quantbot/gotrader/internal/database"
	"github.com/quantbot/gotrader/internal/datafeed"
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/engine"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/logger"
)

// EngineName 录制引擎注册名
const EngineName = "recorder"

var log = logger.Component(EngineName)

// 单次落盘的最大攒批条数，超过时提前落盘
const flushThreshold = 1000

// 回补的历史K线时间跨度
const backfillWindow = 7 * 24 * time.Hour

// NewApp 返回可传给 MainEngine.AddApp 的工厂。
// feed 可以为 nil，此时不做历史回补。
func NewApp(db database.Database, feed datafeed.Datafeed) engine.AppFactory {
	return func(main *engine.MainEngine, ee *event.EventEngine) engine.Engine {
		return NewEngine(main, ee, db, feed)
	}
}

// Engine 行情录制引擎。事件回调只做攒批，数据库写入发生在
// 定时事件处理中（仍在事件消费 goroutine 上，和回调天然串行）。
type Engine struct {
	*engine.BaseEngine

	db   database.Database
	feed datafeed.Datafeed

	mu         sync.Mutex
	tickBuf    []*domain.TickData
	backfilled map[string]bool // vt_symbol -> 是否已回补

	backfillWg sync.WaitGroup
}

// NewEngine 创建录制引擎并订阅行情与合约事件
func NewEngine(main *engine.MainEngine, ee *event.EventEngine, db database.Database, feed datafeed.Datafeed) *Engine {
	e := &Engine{
		BaseEngine: engine.NewBaseEngine(main, ee, EngineName),
		db:         db,
		feed:       feed,
		backfilled: make(map[string]bool),
	}

	ee.Register(event.EventTick, e.processTickEvent)
	ee.Register(event.EventTimer, e.processTimerEvent)
	if feed != nil {
		ee.Register(event.EventContract, e.processContractEvent)
	}
	return e
}

func (e *Engine) processTickEvent(ev event.Event) {
	tick, ok := ev.Data.(*domain.TickData)
	if !ok {
		return
	}

	e.mu.Lock()
	e.tickBuf = append(e.tickBuf, tick)
	full := len(e.tickBuf) >= flushThreshold
	e.mu.Unlock()

	if full {
		e.flush()
	}
}

func (e *Engine) processTimerEvent(ev event.Event) {
	e.flush()
}

// flush 把攒批的Tick写入数据库
func (e *Engine) flush() {
	e.mu.Lock()
	batch := e.tickBuf
	e.tickBuf = nil
	e.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := e.db.SaveTicks(batch); err != nil {
		log.Errorf("写入Tick失败: count=%d err=%v", len(batch), err)
	}
}

// processContractEvent 新合约首次出现时异步回补历史K线
func (e *Engine) processContractEvent(ev event.Event) {
	contract, ok := ev.Data.(*domain.ContractData)
	if !ok {
		return
	}

	vtSymbol := contract.VTSymbol()
	e.mu.Lock()
	if e.backfilled[vtSymbol] {
		e.mu.Unlock()
		return
	}
	e.backfilled[vtSymbol] = true
	e.mu.Unlock()

	// 回补在独立 goroutine 上执行，避免阻塞事件分发
	e.backfillWg.Add(1)
	go e.backfill(contract)
}

func (e *Engine) backfill(contract *domain.ContractData) {
	defer e.backfillWg.Done()

	end := time.Now()
	req := &domain.HistoryRequest{
		Symbol:   contract.Symbol,
		Exchange: contract.Exchange,
		Interval: domain.IntervalMinute,
		Start:    end.Add(-backfillWindow),
		End:      end,
	}

	bars, err := e.feed.QueryBarHistory(context.Background(), req)
	if err != nil {
		log.Warnf("回补 %s 历史K线失败: %v", contract.VTSymbol(), err)
		return
	}
	if len(bars) == 0 {
		return
	}

	if err := e.db.SaveBars(bars); err != nil {
		log.Errorf("保存 %s 回补K线失败: %v", contract.VTSymbol(), err)
		return
	}
	log.Infof("回补 %s 历史K线 %d 根", contract.VTSymbol(), len(bars))
}

// Close 等待回补结束并落盘剩余攒批
func (e *Engine) Close() {
	e.backfillWg.Wait()
	e.flush()
}
