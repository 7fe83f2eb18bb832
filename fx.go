package tcflink

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/eventbus"
	"github.com/dep2p/go-tcflink/internal/core/locator"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	"github.com/dep2p/go-tcflink/internal/core/storage"
	"github.com/dep2p/go-tcflink/internal/core/transport"
	"github.com/dep2p/go-tcflink/internal/core/valueadd"
	"github.com/dep2p/go-tcflink/internal/debug/introspect"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var fxLogger = log.Logger("tcflink/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Dispatcher → EventBus → Metrics
//  2. Storage（仅持久化节点时）
//  3. Transports → ValueAdd → ChannelManager
//  4. Locator
//  5. Introspect（条件加载）
func buildFxApp(cfg *config.Config, o *options, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础组件
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),

		dispatch.Module(),
		eventbus.Module(),
		metrics.Module(),
	}
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 存储（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.Locator.Persist {
		modules = append(modules, storage.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. 通道层
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		transport.Module(),  // TCP / QUIC
		valueadd.Module(),   // 代理进程
		channelmgr.Module(), // 共享通道
		locator.Module(),    // 节点模型
	)

	// ════════════════════════════════════════════════════════════════════════
	// 5. 自省服务（条件加载）
	// ════════════════════════════════════════════════════════════════════════
	if cfg.Diagnostics.EnableIntrospect {
		modules = append(modules, introspect.Module())
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.userFx...)

	// ════════════════════════════════════════════════════════════════════════
	// 7. Node 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectNodeComponents(node)))

	// ════════════════════════════════════════════════════════════════════════
	// 8. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: fxLogger.With()}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
	)

	return fx.New(modules...), nil
}

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Dispatcher *dispatch.Dispatcher
	EventBus   pkgif.EventBus
	Manager    *channelmgr.Manager
	Locator    *locator.Locator
	ValueAdds  *valueadd.Manager
	Transports *transport.TransportManager

	Introspect *introspect.Server `optional:"true"`
}

func injectNodeComponents(node *Node) interface{} {
	return func(p nodeInjectParams) {
		node.dispatcher = p.Dispatcher
		node.bus = p.EventBus
		node.manager = p.Manager
		node.locator = p.Locator
		node.valueAdds = p.ValueAdds
		node.transports = p.Transports
		node.introspect = p.Introspect
	}
}
