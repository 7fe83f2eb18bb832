package tcflink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/locator"
	"github.com/dep2p/go-tcflink/internal/core/transport"
	"github.com/dep2p/go-tcflink/internal/core/valueadd"
	"github.com/dep2p/go-tcflink/internal/debug/introspect"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

var logger = log.Logger("tcflink")

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 30 * time.Second
)

// Node 通道管理节点
//
// Node 是用户交互的主入口，持有 Fx 应用及其装配出的组件。
type Node struct {
	mu sync.Mutex

	config *config.Config
	app    *fx.App

	dispatcher *dispatch.Dispatcher
	bus        pkgif.EventBus
	manager    *channelmgr.Manager
	locator    *locator.Locator
	valueAdds  *valueadd.Manager
	transports *transport.TransportManager
	introspect *introspect.Server

	started bool
	closed  bool
}

// New 创建节点（不启动）
//
//	node, err := tcflink.New(tcflink.WithConfigFile("tcflink.json"))
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	cfg := o.resolvedConfig()
	node := &Node{config: cfg}

	app, err := buildFxApp(cfg, o, node)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	node.app = app
	return node, nil
}

// Start 创建节点并立即启动，等价于 New() + Start()
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		_ = node.Close()
		return nil, err
	}
	return node, nil
}

// Start 启动节点
//
// 运行全部模块的 OnStart：加载静态与持久化节点、启动存储引擎。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := n.app.Start(startCtx); err != nil {
		logger.Error("节点启动失败", "error", err)
		return fmt.Errorf("start failed: %w", err)
	}
	n.started = true
	logger.Info("节点已启动",
		"transports", len(n.transports.GetTransports()),
		"peers", len(n.locator.Peers()),
		"valueAdds", len(n.valueAdds.IDs()))
	return nil
}

// Close 关闭节点
//
// 强制关闭全部通道、释放节点状态机、停止 value-add 进程。重复调用安全。
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	if !n.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	logger.Info("正在关闭节点")
	if err := n.app.Stop(ctx); err != nil {
		logger.Warn("节点关闭失败", "error", err)
		return err
	}
	logger.Info("节点已关闭")
	return nil
}

// Config 返回生效的配置
func (n *Node) Config() *config.Config {
	return n.config
}

// ChannelManager 返回回调风格的通道管理器
func (n *Node) ChannelManager() pkgif.ChannelManager {
	return n.manager
}

// Locator 返回节点模型
func (n *Node) Locator() *locator.Locator {
	return n.locator
}

// EventBus 返回事件总线
func (n *Node) EventBus() pkgif.EventBus {
	return n.bus
}

// Dispatcher 返回派发器
func (n *Node) Dispatcher() *dispatch.Dispatcher {
	return n.dispatcher
}

// ValueAdds 返回 value-add 管理器
func (n *Node) ValueAdds() *valueadd.Manager {
	return n.valueAdds
}

// IntrospectAddr 返回自省服务地址；未启用时返回空字符串
func (n *Node) IntrospectAddr() string {
	if n.introspect == nil {
		return ""
	}
	return n.introspect.Addr()
}

func (n *Node) checkStarted() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if !n.started {
		return ErrNotStarted
	}
	return nil
}
