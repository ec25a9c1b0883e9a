package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/quantbot/gotrader/pkg/logger"
)

// Duration 支持 "500ms" / "10s" 写法的时长配置项，纯数字按秒解释
type Duration time.Duration

// Std 转换为标准库时长
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML 实现 yaml 解码
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return errors.Errorf("config: 非法时长 %q", value.Value)
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "config: 非法时长 %q", s)
	}
	*d = Duration(parsed)
	return nil
}

// Config 平台主配置（gotrader.yaml）
type Config struct {
	Log      logger.Config  `yaml:"log"`
	Event    EventConfig    `yaml:"event"`
	Email    EmailConfig    `yaml:"email"`
	Database DatabaseConfig `yaml:"database"`
	Datafeed DatafeedConfig `yaml:"datafeed"`
	Risk     RiskConfig     `yaml:"risk"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// EventConfig 事件引擎配置
type EventConfig struct {
	TimerInterval Duration `yaml:"timer_interval"` // 定时事件间隔，默认1s
}

// EmailConfig 邮件通知配置
type EmailConfig struct {
	Active   bool   `yaml:"active"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Sender   string `yaml:"sender"`
	Receiver string `yaml:"receiver"`
}

// DatabaseConfig 行情数据库配置
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite / badger
	Path   string `yaml:"path"`
}

// DatafeedConfig 历史数据服务配置
type DatafeedConfig struct {
	Driver  string   `yaml:"driver"` // rest / websocket
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
}

// RiskConfig 风控引擎配置
type RiskConfig struct {
	Active         bool    `yaml:"active"`
	OrderFlowLimit int     `yaml:"order_flow_limit"`  // 每个流控窗口允许的委托数
	OrderFlowClear int     `yaml:"order_flow_clear"`  // 流控窗口（秒）
	OrderSizeLimit float64 `yaml:"order_size_limit"`  // 单笔委托数量上限
	ActiveOrderCap int     `yaml:"active_order_cap"`  // 活跃委托数量上限
	OrderCancelCap int     `yaml:"order_cancel_cap"`  // 单合约日内撤单上限
	StateDir       string  `yaml:"state_dir"`         // 风控状态持久化目录
}

// MonitorConfig Web 监控配置
type MonitorConfig struct {
	Active bool   `yaml:"active"`
	Listen string `yaml:"listen"` // 如 ":8888"
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Log: logger.Config{
			Level:      "info",
			Console:    true,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     30,
		},
		Event: EventConfig{TimerInterval: Duration(time.Second)},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/gotrader.db",
		},
		Datafeed: DatafeedConfig{
			Driver:  "rest",
			Timeout: Duration(10 * time.Second),
		},
		Risk: RiskConfig{
			OrderFlowLimit: 50,
			OrderFlowClear: 1,
			OrderSizeLimit: 100,
			ActiveOrderCap: 50,
			OrderCancelCap: 500,
			StateDir:       "data/risk",
		},
		Monitor: MonitorConfig{Listen: ":8888"},
	}
}

// Load 读取 yaml 配置文件，缺省项用默认值补齐
func Load(path string) (*Config, error) {
	cfg := Default()

	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "config: read %s", path)
	}

	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}
