package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Result Metrics 模块输出
type Result struct {
	fx.Out

	Reporter Reporter
}

// Module 返回 metrics Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideReporter),
	)
}

// ProvideReporter 按配置提供 Reporter
//
// 未注入 Registerer 时注册到 prometheus.DefaultRegisterer。
func ProvideReporter(p Params) Result {
	cfg := config.DefaultMetricsConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Metrics
	}
	if !cfg.Enable {
		return Result{Reporter: Noop()}
	}

	reg := p.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return Result{Reporter: NewCollector(cfg.Namespace, reg)}
}
