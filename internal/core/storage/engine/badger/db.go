// Package badger 提供基于 BadgerDB 的存储引擎实现
//
//	db, err := badger.New(engine.DefaultConfig("/data/tcflink.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("core/storage/badger")

// Engine BadgerDB 存储引擎
type Engine struct {
	db     *badger.DB
	config *engine.Config
	closed atomic.Bool

	gcCtx    context.Context
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
}

var _ engine.Engine = (*Engine)(nil)

// New 创建 BadgerDB 存储引擎
func New(cfg *engine.Config) (*Engine, error) {
	if cfg == nil {
		return nil, engine.ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDir(); err != nil {
		return nil, err
	}

	db, err := badger.Open(buildOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		db:       db,
		config:   cfg,
		gcCtx:    ctx,
		gcCancel: cancel,
	}, nil
}

// buildOptions 根据配置构建 BadgerDB 选项
func buildOptions(cfg *engine.Config) badger.Options {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path).
			WithSyncWrites(cfg.SyncWrites).
			WithReadOnly(cfg.ReadOnly)
	}
	// 节点表很小，不需要默认的大内存表
	return opts.
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithLogger(badgerLogger{})
}

// badgerLogger 把 badger 日志接到 slog，Info 以下降为 Debug
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

// Start 启动存储引擎
func (e *Engine) Start() error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if e.config.GCInterval > 0 && !e.config.InMemory {
		e.startGC()
	}
	return nil
}

// startGC 启动 value log 垃圾回收
func (e *Engine) startGC() {
	e.gcWg.Add(1)
	go func() {
		defer e.gcWg.Done()

		ticker := time.NewTicker(e.config.GCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-e.gcCtx.Done():
				return
			case <-ticker.C:
				// 运行到没有可回收的空间为止
				for e.db.RunValueLogGC(e.config.GCDiscardRatio) == nil {
				}
			}
		}
	}()
}

// Get 获取指定键的值
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}
	if len(key) == 0 {
		return nil, engine.ErrEmptyKey
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, convertError(err)
	}
	return value, nil
}

// Put 设置键值对
func (e *Engine) Put(key, value []byte) error {
	return e.Update(func(w engine.Writer) error {
		return w.Put(key, value)
	})
}

// Delete 删除指定键
func (e *Engine) Delete(key []byte) error {
	return e.Update(func(w engine.Writer) error {
		return w.Delete(key)
	})
}

// Has 检查键是否存在
func (e *Engine) Has(key []byte) (bool, error) {
	_, err := e.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, engine.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Scan 按前缀遍历
func (e *Engine) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}

	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var cont bool
			if err := item.Value(func(val []byte) error {
				cont = fn(item.Key(), val)
				return nil
			}); err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// Update 在读写事务中执行 fn
func (e *Engine) Update(fn func(w engine.Writer) error) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if e.config.ReadOnly {
		return engine.ErrReadOnly
	}
	return convertError(e.db.Update(func(txn *badger.Txn) error {
		return fn(txnWriter{txn})
	}))
}

// Close 关闭存储引擎
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.gcCancel()
	e.gcWg.Wait()
	return e.db.Close()
}

// txnWriter 事务写入器
type txnWriter struct {
	txn *badger.Txn
}

func (w txnWriter) Put(key, value []byte) error {
	if len(key) == 0 {
		return engine.ErrEmptyKey
	}
	return w.txn.Set(key, value)
}

func (w txnWriter) Delete(key []byte) error {
	if len(key) == 0 {
		return engine.ErrEmptyKey
	}
	return w.txn.Delete(key)
}

// convertError 转换 BadgerDB 错误到引擎错误
func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return engine.ErrNotFound
	case errors.Is(err, badger.ErrEmptyKey):
		return engine.ErrEmptyKey
	case errors.Is(err, badger.ErrConflict):
		return engine.ErrTransactionConflict
	case errors.Is(err, badger.ErrReadOnlyTxn):
		return engine.ErrReadOnly
	default:
		return err
	}
}
