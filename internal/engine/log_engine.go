package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/logger"
)

// LogEngineName 日志引擎注册名
const LogEngineName = "log"

// LogEngine 把事件总线上的日志事件落到全局日志。
// 接口通过 WriteLog 推送的消息由此进入统一的日志输出。
type LogEngine struct {
	*BaseEngine
}

// NewLogEngine 创建日志引擎并订阅日志事件
func NewLogEngine(main *MainEngine, ee *event.EventEngine) *LogEngine {
	e := &LogEngine{
		BaseEngine: NewBaseEngine(main, ee, LogEngineName),
	}
	ee.Register(event.EventLog, e.processLogEvent)
	return e
}

func (e *LogEngine) processLogEvent(ev event.Event) {
	log, ok := ev.Data.(*domain.LogData)
	if !ok {
		return
	}

	entry := logger.Gateway(log.GatewayName)
	if !log.Time.IsZero() {
		entry = entry.WithTime(log.Time)
	}

	level := log.Level
	if level == 0 {
		level = logrus.InfoLevel
	}
	entry.Log(level, log.Msg)
}
