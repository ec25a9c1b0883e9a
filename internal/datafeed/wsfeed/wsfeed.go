// Package wsfeed 基于 WebSocket 流式协议的历史数据服务驱动：
// 发送一条查询请求，服务端把K线分批推回，以 end 消息收尾。
package wsfeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/quantbot/gotrader/internal/datafeed"
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
	"github.com/quantbot/gotrader/pkg/logger"
)

// DriverName 注册名
const DriverName = "websocket"

var log = logger.Component("wsfeed")

func init() {
	datafeed.Register(DriverName, func(cfg config.DatafeedConfig) (datafeed.Datafeed, error) {
		return New(cfg)
	})
}

type queryMessage struct {
	Op       string `json:"op"` // "query_bars"
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Interval string `json:"interval"`
	Start    string `json:"start"`
	End      string `json:"end"`
	APIKey   string `json:"api_key,omitempty"`
}

type streamMessage struct {
	Type string `json:"type"` // "bars" / "end" / "error"
	Msg  string `json:"msg,omitempty"`
	Data []struct {
		Datetime     int64   `json:"datetime"`
		Volume       float64 `json:"volume"`
		Turnover     float64 `json:"turnover"`
		OpenInterest float64 `json:"open_interest"`
		Open         float64 `json:"open"`
		High         float64 `json:"high"`
		Low          float64 `json:"low"`
		Close        float64 `json:"close"`
	} `json:"data,omitempty"`
}

// Feed WebSocket 历史数据服务。每次查询建立一条独立连接，
// 查询结束即关闭，不维护长连接。
type Feed struct {
	url     string
	apiKey  string
	timeout time.Duration
}

// New 创建 WebSocket 数据服务
func New(cfg config.DatafeedConfig) (*Feed, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("wsfeed: base_url 未配置")
	}
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Feed{url: cfg.BaseURL, apiKey: cfg.APIKey, timeout: timeout}, nil
}

// QueryBarHistory 查询历史K线，阻塞直到收到 end 消息或超时
func (f *Feed) QueryBarHistory(ctx context.Context, req *domain.HistoryRequest) ([]*domain.BarData, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "wsfeed: dial")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	query := queryMessage{
		Op:       "query_bars",
		Symbol:   req.Symbol,
		Exchange: string(req.Exchange),
		Interval: string(req.Interval),
		Start:    req.Start.Format(time.RFC3339),
		End:      req.End.Format(time.RFC3339),
		APIKey:   f.apiKey,
	}
	if err := conn.WriteJSON(query); err != nil {
		return nil, errors.Wrap(err, "wsfeed: send query")
	}

	var bars []*domain.BarData
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, errors.Wrap(err, "wsfeed: read")
		}

		var msg streamMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warnf("丢弃无法解析的消息: %v", err)
			continue
		}

		switch msg.Type {
		case "bars":
			for _, row := range msg.Data {
				bars = append(bars, &domain.BarData{
					Symbol:       req.Symbol,
					Exchange:     req.Exchange,
					Interval:     req.Interval,
					Datetime:     time.UnixMilli(row.Datetime),
					Volume:       row.Volume,
					Turnover:     row.Turnover,
					OpenInterest: row.OpenInterest,
					OpenPrice:    row.Open,
					HighPrice:    row.High,
					LowPrice:     row.Low,
					ClosePrice:   row.Close,
				})
			}
		case "end":
			return bars, nil
		case "error":
			return nil, errors.Errorf("wsfeed: 服务端错误: %s", msg.Msg)
		default:
			log.Warnf("未知消息类型: %s", msg.Type)
		}
	}
}

// Close 无长连接，无需清理
func (f *Feed) Close() error {
	return nil
}
