// Package rest 基于 HTTP JSON API 的历史数据服务驱动。
package rest

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/quantbot/gotrader/internal/datafeed"
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
)

// DriverName 注册名
const DriverName = "rest"

func init() {
	datafeed.Register(DriverName, func(cfg config.DatafeedConfig) (datafeed.Datafeed, error) {
		return New(cfg)
	})
}

// barRow 服务端返回的单根K线
type barRow struct {
	Datetime     int64   `json:"datetime"` // 毫秒时间戳
	Volume       float64 `json:"volume"`
	Turnover     float64 `json:"turnover"`
	OpenInterest float64 `json:"open_interest"`
	Open         float64 `json:"open"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Close        float64 `json:"close"`
}

type historyResponse struct {
	Code int      `json:"code"`
	Msg  string   `json:"msg"`
	Data []barRow `json:"data"`
}

// Feed REST 历史数据服务
type Feed struct {
	client *resty.Client
}

// New 创建 REST 数据服务
func New(cfg config.DatafeedConfig) (*Feed, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rest: base_url 未配置")
	}

	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	return &Feed{client: client}, nil
}

// QueryBarHistory 查询历史K线
func (f *Feed) QueryBarHistory(ctx context.Context, req *domain.HistoryRequest) ([]*domain.BarData, error) {
	var out historyResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   req.Symbol,
			"exchange": string(req.Exchange),
			"interval": string(req.Interval),
			"start":    req.Start.Format(time.RFC3339),
			"end":      req.End.Format(time.RFC3339),
		}).
		SetResult(&out).
		Get("/history/bars")
	if err != nil {
		return nil, errors.Wrap(err, "rest: request")
	}
	if resp.IsError() {
		return nil, errors.Errorf("rest: http %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Code != 0 {
		return nil, errors.Errorf("rest: 服务端错误 code=%d msg=%s", out.Code, out.Msg)
	}

	bars := make([]*domain.BarData, 0, len(out.Data))
	for _, row := range out.Data {
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
	return bars, nil
}

// Close REST 客户端无需清理
func (f *Feed) Close() error {
	return nil
}
