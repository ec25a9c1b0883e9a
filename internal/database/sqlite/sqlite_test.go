package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbot/gotrader/internal/database"
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeBars(base time.Time, n int) []*domain.BarData {
	bars := make([]*domain.BarData, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, &domain.BarData{
			Symbol:     "rb2510",
			Exchange:   domain.ExchangeSHFE,
			Interval:   domain.IntervalMinute,
			Datetime:   base.Add(time.Duration(i) * time.Minute),
			OpenPrice:  100 + float64(i),
			HighPrice:  101 + float64(i),
			LowPrice:   99 + float64(i),
			ClosePrice: 100.5 + float64(i),
			Volume:     float64(10 * (i + 1)),
		})
	}
	return bars
}

// K线保存后按时间区间读回，升序排列
func TestBarRoundtrip(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveBars(makeBars(base, 10)))

	bars, err := db.LoadBars("rb2510", domain.ExchangeSHFE, domain.IntervalMinute,
		base, base.Add(4*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 5)
	assert.Equal(t, 100.0, bars[0].OpenPrice)
	assert.True(t, bars[0].Datetime.Before(bars[4].Datetime))

	// 其他品种查不到
	empty, err := db.LoadBars("hc2510", domain.ExchangeSHFE, domain.IntervalMinute,
		base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// 同键重复保存覆盖旧值
func TestBarUpsert(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	bars := makeBars(base, 1)
	require.NoError(t, db.SaveBars(bars))

	bars[0].ClosePrice = 999
	require.NoError(t, db.SaveBars(bars))

	loaded, err := db.LoadBars("rb2510", domain.ExchangeSHFE, domain.IntervalMinute,
		base, base)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 999.0, loaded[0].ClosePrice)
}

// 删除返回实际删除的条数
func TestDeleteBars(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.SaveBars(makeBars(base, 5)))

	n, err := db.DeleteBars("rb2510", domain.ExchangeSHFE, domain.IntervalMinute)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = db.DeleteBars("rb2510", domain.ExchangeSHFE, domain.IntervalMinute)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// Tick 保存读回
func TestTickRoundtrip(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	ticks := []*domain.TickData{
		{
			Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
			Datetime: base, LastPrice: 100.5,
			BidPrice1: 100.4, AskPrice1: 100.6,
			BidVolume1: 3, AskVolume1: 7,
		},
		{
			Symbol: "rb2510", Exchange: domain.ExchangeSHFE,
			Datetime: base.Add(time.Second), LastPrice: 100.7,
		},
	}
	require.NoError(t, db.SaveTicks(ticks))

	loaded, err := db.LoadTicks("rb2510", domain.ExchangeSHFE, base, base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 100.5, loaded[0].LastPrice)
	assert.Equal(t, 100.4, loaded[0].BidPrice1)
	assert.Equal(t, 100.7, loaded[1].LastPrice)
}

// 通过注册表按配置打开驱动
func TestRegistryOpen(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Driver: DriverName,
		Path:   filepath.Join(t.TempDir(), "reg.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = database.Open(config.DatabaseConfig{Driver: "nope"})
	assert.Error(t, err)
}
