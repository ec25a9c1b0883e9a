package database

import (
	"time"

	"github.com/pkg/errors"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
)

// Database 行情数据库接口：K线和Tick的持久化存取。
// 保存按 (symbol, exchange, interval, datetime) 去重覆盖。
type Database interface {
	SaveBars(bars []*domain.BarData) error
	LoadBars(symbol string, exchange domain.Exchange, interval domain.Interval, start, end time.Time) ([]*domain.BarData, error)
	DeleteBars(symbol string, exchange domain.Exchange, interval domain.Interval) (int, error)

	SaveTicks(ticks []*domain.TickData) error
	LoadTicks(symbol string, exchange domain.Exchange, start, end time.Time) ([]*domain.TickData, error)

	Close() error
}

// Factory 数据库驱动构造函数
type Factory func(cfg config.DatabaseConfig) (Database, error)

var drivers = make(map[string]Factory)

// Register 注册数据库驱动，驱动包在 init 中调用
func Register(name string, factory Factory) {
	drivers[name] = factory
}

// Open 按配置打开数据库
func Open(cfg config.DatabaseConfig) (Database, error) {
	factory, ok := drivers[cfg.Driver]
	if !ok {
		return nil, errors.Errorf("database: 未注册的驱动 %q", cfg.Driver)
	}
	return factory(cfg)
}
