package locator

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	"github.com/dep2p/go-tcflink/internal/core/storage"
	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
)

// Params Locator 依赖参数
type Params struct {
	fx.In

	Manager    pkgif.ChannelManager
	Dispatcher *dispatch.Dispatcher
	EventBus   pkgif.EventBus
	UnifiedCfg *config.Config   `optional:"true"`
	Engine     engine.Engine    `optional:"true"`
	Reporter   metrics.Reporter `optional:"true"`
}

// Result Locator 模块输出
type Result struct {
	fx.Out

	Locator      *Locator
	LocatorIface pkgif.Locator
}

// Module 返回 Locator Fx 模块
//
// 生命周期:
//   - OnStart: 加载静态与持久化节点
//   - OnStop: 释放全部节点
func Module() fx.Option {
	return fx.Module("locator",
		fx.Provide(ProvideLocator),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideLocator 提供 Locator
//
// 只有配置开启持久化且注入了存储引擎时才持久化节点。
func ProvideLocator(p Params) (Result, error) {
	cfg := config.DefaultLocatorConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Locator
	}

	opts := []Option{
		WithStaticPeers(cfg.StaticPeers),
		WithReporter(p.Reporter),
		WithStateChangeTimeout(cfg.StateChangeTimeout.Duration()),
	}
	if cfg.Persist && p.Engine != nil {
		opts = append(opts, WithStore(storage.NewKVStore(p.Engine, StorePrefix)))
	}

	l, err := New(p.Manager, p.Dispatcher, p.EventBus, opts...)
	if err != nil {
		return Result{}, err
	}
	return Result{Locator: l, LocatorIface: l}, nil
}

func registerLifecycle(lc fx.Lifecycle, l *Locator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return l.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return l.Close()
		},
	})
}
