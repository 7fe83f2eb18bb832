package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
	"github.com/dep2p/go-tcflink/internal/core/storage/engine/badger"
	"github.com/dep2p/go-tcflink/internal/core/storage/kv"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("core/storage")

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result Storage 模块提供的结果
type Result struct {
	fx.Out

	Engine engine.Engine
}

// Module 返回 Storage Fx 模块
//
// 只在 Locator.Persist 开启时装配。OnStart 启动 value log GC，OnStop 关闭数据库。
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStorage),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStorage 打开存储引擎
func ProvideStorage(p Params) (Result, error) {
	sc := config.DefaultStorageConfig()
	if p.UnifiedCfg != nil {
		sc = p.UnifiedCfg.Storage
	}

	eng, err := Open(EngineConfig(sc))
	if err != nil {
		return Result{}, err
	}
	return Result{Engine: eng}, nil
}

// EngineConfig 把用户存储配置转换为引擎配置
func EngineConfig(sc config.StorageConfig) *engine.Config {
	cfg := engine.DefaultConfig(sc.DBPath())
	cfg.InMemory = sc.InMemory
	cfg.SyncWrites = sc.SyncWrites
	cfg.GCInterval = sc.GCInterval.Duration()
	if cfg.InMemory {
		// 内存模式没有 value log 可回收
		cfg.GCInterval = 0
	}
	return cfg
}

func registerLifecycle(lc fx.Lifecycle, eng engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := eng.Start(); err != nil {
				logger.Error("存储引擎启动失败", "error", err)
				return err
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if err := eng.Close(); err != nil {
				logger.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			logger.Debug("存储引擎已关闭")
			return nil
		},
	})
}

// Open 按引擎配置打开 BadgerDB
func Open(cfg *engine.Config) (engine.Engine, error) {
	eng, err := badger.New(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("存储引擎已打开", "path", cfg.Path, "inMemory", cfg.InMemory)
	return eng, nil
}

// NewMemory 打开内存引擎
func NewMemory() (engine.Engine, error) {
	return Open(EngineConfig(config.StorageConfig{InMemory: true}))
}

// NewKVStore 创建前缀记录集合
func NewKVStore(eng engine.Engine, prefix []byte) *kv.Store {
	return kv.New(eng, prefix)
}
