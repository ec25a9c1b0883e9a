package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志实例，组件通过 Component() 派生带标签的 entry
var Logger = logrus.New()

var initOnce sync.Once

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`       // 日志级别: debug, info, warn, error
	Console    bool   `yaml:"console"`     // 是否输出到控制台
	Dir        string `yaml:"dir"`         // 日志目录（为空则不写文件）
	MaxSize    int    `yaml:"max_size"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `yaml:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int    `yaml:"max_age"`     // 保留旧日志文件的天数
	Compress   bool   `yaml:"compress"`    // 是否压缩旧日志文件
}

// Init 初始化全局日志（进程内只生效一次）
func Init(cfg Config) error {
	var err error
	initOnce.Do(func() {
		err = setup(cfg)
	})
	return err
}

func setup(cfg Config) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, os.Stdout)
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("logger: create dir: %w", err)
		}
		filename := fmt.Sprintf("vt_%s.log", time.Now().Format("20060102"))
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, filename),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}
	if len(writers) == 0 {
		Logger.SetOutput(io.Discard)
	} else {
		Logger.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

// Component 返回带 component 标签的日志 entry
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}

// Gateway 返回带 gateway 标签的日志 entry
func Gateway(name string) *logrus.Entry {
	return Logger.WithField("gateway", name)
}
