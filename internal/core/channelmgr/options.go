package channelmgr

import (
	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// ValueAddProvider 返回节点需要的 value-add
type ValueAddProvider interface {
	ValueAddsFor(peer types.Peer) []pkgif.ValueAdd
}

// Option 管理器选项
type Option func(*Manager)

// WithConfig 设置通道配置
func WithConfig(cfg config.ChannelConfig) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithValueAdds 设置 value-add 来源
func WithValueAdds(p ValueAddProvider) Option {
	return func(m *Manager) {
		if p != nil {
			m.valueAdds = p
		}
	}
}

// WithPathMap 设置路径映射规则
func WithPathMap(cfg config.PathMapConfig) Option {
	return func(m *Manager) {
		m.pathMap = cfg
	}
}

// WithEventBus 设置事件总线，通道打开与关闭会以事件发出
func WithEventBus(bus pkgif.EventBus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithReporter 设置指标
func WithReporter(r metrics.Reporter) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// noValueAdds 空的 value-add 来源
type noValueAdds struct{}

func (noValueAdds) ValueAddsFor(types.Peer) []pkgif.ValueAdd { return nil }
