package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/locator"
)

// Module 返回自省服务 Fx 模块
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// Params 自省服务依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config        `optional:"true"`
	Manager    *channelmgr.Manager   `optional:"true"`
	Locator    *locator.Locator      `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Output 自省服务输出
type Output struct {
	fx.Out

	Server *Server
}

// NewFromParams 从参数创建自省服务；配置未启用时提供 nil
func NewFromParams(p Params) Output {
	cfg := config.DefaultDiagnosticsConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Diagnostics
	}
	if !cfg.EnableIntrospect {
		return Output{}
	}

	sc := Config{Addr: cfg.IntrospectAddr}
	if p.Manager != nil {
		sc.Channels = p.Manager
	}
	if p.Locator != nil {
		sc.Peers = p.Locator
	}
	// 注入的注册器同时是 Gatherer 时（例如 *prometheus.Registry）从它采集
	if g, ok := p.Registerer.(prometheus.Gatherer); ok {
		sc.Gatherer = g
	}
	return Output{Server: New(sc)}
}

func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
