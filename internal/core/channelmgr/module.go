package channelmgr

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
)

// Params 通道管理器依赖参数
type Params struct {
	fx.In

	Dispatcher *dispatch.Dispatcher
	Transports []pkgif.Transport `group:"transports"`
	UnifiedCfg *config.Config    `optional:"true"`
	ValueAdds  ValueAddProvider  `optional:"true"`
	EventBus   pkgif.EventBus    `optional:"true"`
	Reporter   metrics.Reporter  `optional:"true"`
}

// Result 通道管理器输出
type Result struct {
	fx.Out

	Manager        *Manager
	ChannelManager pkgif.ChannelManager
}

// Module 返回通道管理器 Fx 模块
//
// 生命周期:
//   - OnStop: 关闭全部通道并等待完成
func Module() fx.Option {
	return fx.Module("channelmgr",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供通道管理器
func ProvideManager(p Params) Result {
	cfg := config.NewConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg
	}

	m := New(p.Dispatcher, p.Transports,
		WithConfig(cfg.Channel),
		WithPathMap(cfg.PathMap),
		WithValueAdds(p.ValueAdds),
		WithEventBus(p.EventBus),
		WithReporter(p.Reporter),
	)
	return Result{Manager: m, ChannelManager: m}
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭通道管理器")
			m.CloseAll(true)
			return m.Close()
		},
	})
}
