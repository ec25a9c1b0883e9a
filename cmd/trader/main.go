package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantbot/gotrader/internal/app/recorder"
	"github.com/quantbot/gotrader/internal/app/riskmanager"
	"github.com/quantbot/gotrader/internal/app/webmonitor"
	"github.com/quantbot/gotrader/internal/database"
	_ "github.com/quantbot/gotrader/internal/database/badgerdb"
	_ "github.com/quantbot/gotrader/internal/database/sqlite"
	"github.com/quantbot/gotrader/internal/datafeed"
	_ "github.com/quantbot/gotrader/internal/datafeed/rest"
	_ "github.com/quantbot/gotrader/internal/datafeed/wsfeed"
	"github.com/quantbot/gotrader/internal/engine"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/internal/gateway/paper"
	"github.com/quantbot/gotrader/pkg/config"
	"github.com/quantbot/gotrader/pkg/logger"
	"github.com/quantbot/gotrader/pkg/persistence"
	"github.com/quantbot/gotrader/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "gotrader.yaml", "配置文件路径")
	flag.Parse()

	// .env 不存在时静默跳过
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	log := logger.Component("trader")

	ee := event.NewEventEngine(cfg.Event.TimerInterval.Std())
	me := engine.NewMainEngine(ee)

	if emailEngine, ok := me.GetEngine(engine.EmailEngineName).(*engine.EmailEngine); ok {
		emailEngine.Configure(cfg.Email)
	}

	gw := me.AddGateway(paper.New(ee, ""))

	if cfg.Risk.Active {
		svc := persistence.NewJSONFileService(cfg.Risk.StateDir)
		me.AddApp(riskmanager.NewApp(cfg.Risk, svc))
	}
	if cfg.Monitor.Active {
		me.AddApp(webmonitor.NewApp(cfg.Monitor))
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Errorf("打开行情数据库失败: %v", err)
	} else {
		var feed datafeed.Datafeed
		if cfg.Datafeed.BaseURL != "" {
			feed, err = datafeed.Open(cfg.Datafeed)
			if err != nil {
				log.Warnf("创建历史数据服务失败: %v", err)
			}
		}
		me.AddApp(recorder.NewApp(db, feed))
	}

	me.Connect(gw.DefaultSetting(), gw.Name())

	// 平台整体和数据库必须顺序关闭：先停引擎，攒批落盘后才能关库
	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		me.Close()
		if db != nil {
			if err := db.Close(); err != nil {
				log.Warnf("关闭行情数据库失败: %v", err)
			}
		}
	})

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigC
	log.Infof("收到信号 %s, 开始退出", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)
}
