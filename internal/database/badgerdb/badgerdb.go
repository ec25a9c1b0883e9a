// Package badgerdb 基于 Badger KV 的行情数据库驱动，
// 适合不方便携带 sqlite 文件的纯 Go 嵌入场景。
package badgerdb

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/quantbot/gotrader/internal/database"
	"github.com/quantbot/gotrader/internal/domain"
	"github.com/quantbot/gotrader/pkg/config"
)

// DriverName 注册名
const DriverName = "badger"

func init() {
	database.Register(DriverName, func(cfg config.DatabaseConfig) (database.Database, error) {
		return Open(cfg.Path)
	})
}

// DB badger 驱动实例。
// 键格式：bar|symbol|exchange|interval|<毫秒时间戳13位> ，
// 时间戳定宽零填充保证字典序即时间序，值为 JSON 编码的数据对象。
type DB struct {
	db *badger.DB
}

// Open 打开（必要时创建）badger 目录
func Open(path string) (*DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "badgerdb: open")
	}
	return &DB{db: db}, nil
}

func barPrefix(symbol string, exchange domain.Exchange, interval domain.Interval) []byte {
	return []byte(fmt.Sprintf("bar|%s|%s|%s|", symbol, exchange, interval))
}

func barKey(bar *domain.BarData) []byte {
	return []byte(fmt.Sprintf("bar|%s|%s|%s|%013d",
		bar.Symbol, bar.Exchange, bar.Interval, bar.Datetime.UnixMilli()))
}

func tickPrefix(symbol string, exchange domain.Exchange) []byte {
	return []byte(fmt.Sprintf("tick|%s|%s|", symbol, exchange))
}

func tickKey(tick *domain.TickData) []byte {
	return []byte(fmt.Sprintf("tick|%s|%s|%013d",
		tick.Symbol, tick.Exchange, tick.Datetime.UnixMilli()))
}

// SaveBars 批量保存K线，同键覆盖
func (d *DB) SaveBars(bars []*domain.BarData) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()

	for _, bar := range bars {
		buf, err := json.Marshal(bar)
		if err != nil {
			return errors.Wrap(err, "badgerdb: marshal bar")
		}
		if err := wb.Set(barKey(bar), buf); err != nil {
			return errors.Wrap(err, "badgerdb: set bar")
		}
	}
	return errors.Wrap(wb.Flush(), "badgerdb: flush bars")
}

// LoadBars 按时间区间加载K线（闭区间，升序）
func (d *DB) LoadBars(symbol string, exchange domain.Exchange, interval domain.Interval, start, end time.Time) ([]*domain.BarData, error) {
	prefix := barPrefix(symbol, exchange, interval)
	startKey := []byte(fmt.Sprintf("%s%013d", prefix, start.UnixMilli()))
	endKey := []byte(fmt.Sprintf("%s%013d", prefix, end.UnixMilli()))

	var bars []*domain.BarData
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.Valid(); it.Next() {
			key := it.Item().Key()
			if string(key) > string(endKey) {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				bar := &domain.BarData{}
				if err := json.Unmarshal(val, bar); err != nil {
					return err
				}
				bars = append(bars, bar)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return bars, errors.Wrap(err, "badgerdb: load bars")
}

// DeleteBars 删除某品种某周期的全部K线，返回删除条数
func (d *DB) DeleteBars(symbol string, exchange domain.Exchange, interval domain.Interval) (int, error) {
	prefix := barPrefix(symbol, exchange, interval)

	var keys [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "badgerdb: collect keys")
	}

	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, errors.Wrap(err, "badgerdb: delete")
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, errors.Wrap(err, "badgerdb: flush delete")
	}
	return len(keys), nil
}

// SaveTicks 批量保存Tick，同键覆盖
func (d *DB) SaveTicks(ticks []*domain.TickData) error {
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()

	for _, tick := range ticks {
		buf, err := json.Marshal(tick)
		if err != nil {
			return errors.Wrap(err, "badgerdb: marshal tick")
		}
		if err := wb.Set(tickKey(tick), buf); err != nil {
			return errors.Wrap(err, "badgerdb: set tick")
		}
	}
	return errors.Wrap(wb.Flush(), "badgerdb: flush ticks")
}

// LoadTicks 按时间区间加载Tick（闭区间，升序）
func (d *DB) LoadTicks(symbol string, exchange domain.Exchange, start, end time.Time) ([]*domain.TickData, error) {
	prefix := tickPrefix(symbol, exchange)
	startKey := []byte(fmt.Sprintf("%s%013d", prefix, start.UnixMilli()))
	endKey := []byte(fmt.Sprintf("%s%013d", prefix, end.UnixMilli()))

	var ticks []*domain.TickData
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(startKey); it.Valid(); it.Next() {
			key := it.Item().Key()
			if string(key) > string(endKey) {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				tick := &domain.TickData{}
				if err := json.Unmarshal(val, tick); err != nil {
					return err
				}
				ticks = append(ticks, tick)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return ticks, errors.Wrap(err, "badgerdb: load ticks")
}

// Close 关闭数据库
func (d *DB) Close() error {
	return d.db.Close()
}
