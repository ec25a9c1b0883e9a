// Package sqlite 基于单文件 sqlite 的行情数据库驱动。
package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/quantbot/gotrader/internal/database"
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
)

// DriverName 注册名
const DriverName = "sqlite"

func init() {
	database.Register(DriverName, func(cfg config.DatabaseConfig) (database.Database, error) {
		return Open(cfg.Path)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS bar (
	symbol     TEXT NOT NULL,
	exchange   TEXT NOT NULL,
	interval   TEXT NOT NULL,
	datetime   INTEGER NOT NULL,
	volume     REAL NOT NULL DEFAULT 0,
	turnover   REAL NOT NULL DEFAULT 0,
	open_interest REAL NOT NULL DEFAULT 0,
	open_price  REAL NOT NULL DEFAULT 0,
	high_price  REAL NOT NULL DEFAULT 0,
	low_price   REAL NOT NULL DEFAULT 0,
	close_price REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, exchange, interval, datetime)
);
CREATE TABLE IF NOT EXISTS tick (
	symbol     TEXT NOT NULL,
	exchange   TEXT NOT NULL,
	datetime   INTEGER NOT NULL,
	last_price REAL NOT NULL DEFAULT 0,
	volume     REAL NOT NULL DEFAULT 0,
	turnover   REAL NOT NULL DEFAULT 0,
	open_interest REAL NOT NULL DEFAULT 0,
	bid_price_1  REAL NOT NULL DEFAULT 0,
	bid_volume_1 REAL NOT NULL DEFAULT 0,
	ask_price_1  REAL NOT NULL DEFAULT 0,
	ask_volume_1 REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, exchange, datetime)
);
`

// DB sqlite 驱动实例
type DB struct {
	conn *sql.DB
}

// Open 打开（必要时创建）数据库文件并初始化表结构
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "sqlite: create dir")
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open")
	}
	// modernc 驱动是进程内实现，单连接避免写锁竞争
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "sqlite: init schema")
	}
	return &DB{conn: conn}, nil
}

// SaveBars 批量保存K线，同键覆盖
func (d *DB) SaveBars(bars []*domain.BarData) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO bar (symbol, exchange, interval, datetime,
			volume, turnover, open_interest,
			open_price, high_price, low_price, close_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, exchange, interval, datetime) DO UPDATE SET
			volume = excluded.volume,
			turnover = excluded.turnover,
			open_interest = excluded.open_interest,
			open_price = excluded.open_price,
			high_price = excluded.high_price,
			low_price = excluded.low_price,
			close_price = excluded.close_price`)
	if err != nil {
		return errors.Wrap(err, "sqlite: prepare")
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.Exec(bar.Symbol, string(bar.Exchange), string(bar.Interval),
			bar.Datetime.UnixMilli(),
			bar.Volume, bar.Turnover, bar.OpenInterest,
			bar.OpenPrice, bar.HighPrice, bar.LowPrice, bar.ClosePrice)
		if err != nil {
			return errors.Wrap(err, "sqlite: insert bar")
		}
	}
	return errors.Wrap(tx.Commit(), "sqlite: commit")
}

// LoadBars 按时间区间加载K线（闭区间，升序）
func (d *DB) LoadBars(symbol string, exchange domain.Exchange, interval domain.Interval, start, end time.Time) ([]*domain.BarData, error) {
	rows, err := d.conn.Query(`
		SELECT datetime, volume, turnover, open_interest,
			open_price, high_price, low_price, close_price
		FROM bar
		WHERE symbol = ? AND exchange = ? AND interval = ?
			AND datetime >= ? AND datetime <= ?
		ORDER BY datetime`,
		symbol, string(exchange), string(interval),
		start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: query bars")
	}
	defer rows.Close()

	var bars []*domain.BarData
	for rows.Next() {
		var ts int64
		bar := &domain.BarData{
			Symbol:   symbol,
			Exchange: exchange,
			Interval: interval,
		}
		if err := rows.Scan(&ts, &bar.Volume, &bar.Turnover, &bar.OpenInterest,
			&bar.OpenPrice, &bar.HighPrice, &bar.LowPrice, &bar.ClosePrice); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan bar")
		}
		bar.Datetime = time.UnixMilli(ts)
		bars = append(bars, bar)
	}
	return bars, errors.Wrap(rows.Err(), "sqlite: iterate bars")
}

// DeleteBars 删除某品种某周期的全部K线，返回删除条数
func (d *DB) DeleteBars(symbol string, exchange domain.Exchange, interval domain.Interval) (int, error) {
	res, err := d.conn.Exec(`
		DELETE FROM bar WHERE symbol = ? AND exchange = ? AND interval = ?`,
		symbol, string(exchange), string(interval))
	if err != nil {
		return 0, errors.Wrap(err, "sqlite: delete bars")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SaveTicks 批量保存Tick，同键覆盖
func (d *DB) SaveTicks(ticks []*domain.TickData) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tick (symbol, exchange, datetime,
			last_price, volume, turnover, open_interest,
			bid_price_1, bid_volume_1, ask_price_1, ask_volume_1)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, exchange, datetime) DO UPDATE SET
			last_price = excluded.last_price,
			volume = excluded.volume,
			turnover = excluded.turnover,
			open_interest = excluded.open_interest,
			bid_price_1 = excluded.bid_price_1,
			bid_volume_1 = excluded.bid_volume_1,
			ask_price_1 = excluded.ask_price_1,
			ask_volume_1 = excluded.ask_volume_1`)
	if err != nil {
		return errors.Wrap(err, "sqlite: prepare")
	}
	defer stmt.Close()

	for _, tick := range ticks {
		_, err := stmt.Exec(tick.Symbol, string(tick.Exchange), tick.Datetime.UnixMilli(),
			tick.LastPrice, tick.Volume, tick.Turnover, tick.OpenInterest,
			tick.BidPrice1, tick.BidVolume1, tick.AskPrice1, tick.AskVolume1)
		if err != nil {
			return errors.Wrap(err, "sqlite: insert tick")
		}
	}
	return errors.Wrap(tx.Commit(), "sqlite: commit")
}

// LoadTicks 按时间区间加载Tick（闭区间，升序）
func (d *DB) LoadTicks(symbol string, exchange domain.Exchange, start, end time.Time) ([]*domain.TickData, error) {
	rows, err := d.conn.Query(`
		SELECT datetime, last_price, volume, turnover, open_interest,
			bid_price_1, bid_volume_1, ask_price_1, ask_volume_1
		FROM tick
		WHERE symbol = ? AND exchange = ?
			AND datetime >= ? AND datetime <= ?
		ORDER BY datetime`,
		symbol, string(exchange), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: query ticks")
	}
	defer rows.Close()

	var ticks []*domain.TickData
	for rows.Next() {
		var ts int64
		tick := &domain.TickData{
			Symbol:   symbol,
			Exchange: exchange,
		}
		if err := rows.Scan(&ts, &tick.LastPrice, &tick.Volume, &tick.Turnover,
			&tick.OpenInterest, &tick.BidPrice1, &tick.BidVolume1,
			&tick.AskPrice1, &tick.AskVolume1); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan tick")
		}
		tick.Datetime = time.UnixMilli(ts)
		ticks = append(ticks, tick)
	}
	return ticks, errors.Wrap(rows.Err(), "sqlite: iterate ticks")
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	return d.conn.Close()
}
