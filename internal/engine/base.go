package engine

import (
	"github.com/quantbot/gotrader/internal/event"
)

// Engine 功能引擎接口。功能引擎挂在 MainEngine 上，
// 通过事件引擎订阅数据，平台关闭时按注册顺序依次 Close。
type Engine interface {
	Name() string
	Close()
}

// BaseEngine 功能引擎公共部分，具体引擎内嵌使用
type BaseEngine struct {
	main        *MainEngine
	eventEngine *event.EventEngine
	name        string
}

// NewBaseEngine 创建引擎基类
func NewBaseEngine(main *MainEngine, ee *event.EventEngine, name string) *BaseEngine {
	return &BaseEngine{
		main:        main,
		eventEngine: ee,
		name:        name,
	}
}

// Name 引擎名称
func (e *BaseEngine) Name() string {
	return e.name
}

// Close 默认空实现
func (e *BaseEngine) Close() {}
