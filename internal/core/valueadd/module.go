package valueadd

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
)

// Params value-add 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Reporter   metrics.Reporter `optional:"true"`
}

// Result value-add 模块输出
type Result struct {
	fx.Out

	Manager  *Manager
	Provider channelmgr.ValueAddProvider
}

// Module 返回 value-add Fx 模块
func Module() fx.Option {
	return fx.Module("valueadd",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供 value-add 管理器
func ProvideManager(p Params) Result {
	cfg := config.DefaultValueAddConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.ValueAdd
	}
	m := NewManager(cfg, WithReporter(p.Reporter))
	return Result{Manager: m, Provider: m}
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.ShutdownAll()
		},
	})
}
