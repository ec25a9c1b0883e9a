package datafeed

import (
	"context"

	"github.com/pkg/errors"

	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
)

// Datafeed 历史数据服务接口
type Datafeed interface {
	QueryBarHistory(ctx context.Context, req *domain.HistoryRequest) ([]*domain.BarData, error)
	Close() error
}

// Factory 数据服务驱动构造函数
type Factory func(cfg config.DatafeedConfig) (Datafeed, error)

var drivers = make(map[string]Factory)

// Register 注册数据服务驱动，驱动包在 init 中调用
func Register(name string, factory Factory) {
	drivers[name] = factory
}

// Open 按配置创建数据服务
func Open(cfg config.DatafeedConfig) (Datafeed, error) {
	factory, ok := drivers[cfg.Driver]
	if !ok {
		return nil, errors.Errorf("datafeed: 未注册的驱动 %q", cfg.Driver)
	}
	return factory(cfg)
}
