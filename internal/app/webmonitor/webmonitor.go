// Package webmonitor 提供只读的 Web 监控接口：
// 通过 HTTP JSON API 查询订单管理引擎里的各类快照。
package webmonitor

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantbot/gotrader/internal/engine"
	"github.com/quantbot/gotrader/internal/event"
	"github.com/quantbot/gotrader/pkg/config"
	"github.com/quantbot/gotrader/pkg/logger"
)

// EngineName 监控引擎注册名
const EngineName = "webmonitor"

var log = logger.Component(EngineName)

// NewApp 返回可传给 MainEngine.AddApp 的工厂
func NewApp(cfg config.MonitorConfig) engine.AppFactory {
	return func(main *engine.MainEngine, ee *event.EventEngine) engine.Engine {
		return NewEngine(main, ee, cfg)
	}
}

// Engine Web 监控引擎，在独立 goroutine 上运行 HTTP 服务
type Engine struct {
	*engine.BaseEngine

	main   *engine.MainEngine
	server *http.Server
}

// NewEngine 创建监控引擎并启动 HTTP 服务
func NewEngine(main *engine.MainEngine, ee *event.EventEngine, cfg config.MonitorConfig) *Engine {
	e := &Engine{
		BaseEngine: engine.NewBaseEngine(main, ee, EngineName),
		main:       main,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	e.registerRoutes(router)

	e.server = &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	go func() {
		log.Infof("监控服务启动: %s", cfg.Listen)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("监控服务异常退出: %v", err)
		}
	}()
	return e
}

func (e *Engine) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/gateways", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.GetAllGatewayNames())
	})
	api.GET("/exchanges", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.GetAllExchanges())
	})
	api.GET("/ticks", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllTicks())
	})
	api.GET("/orders", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllOrders())
	})
	api.GET("/orders/active", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllActiveOrders(c.Query("vt_symbol")))
	})
	api.GET("/trades", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllTrades())
	})
	api.GET("/positions", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllPositions())
	})
	api.GET("/accounts", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllAccounts())
	})
	api.GET("/contracts", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllContracts())
	})
	api.GET("/quotes/active", func(c *gin.Context) {
		c.JSON(http.StatusOK, e.main.OMS().GetAllActiveQuotes(c.Query("vt_symbol")))
	})
}

// Close 优雅关闭 HTTP 服务
func (e *Engine) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		log.Warnf("监控服务关闭超时: %v", err)
	}
}
