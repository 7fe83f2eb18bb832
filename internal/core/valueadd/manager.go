package valueadd

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/valueadd")

// Manager 持有配置的全部 value-add
type Manager struct {
	order []string
	byID  map[string]*ValueAdd
}

// Option 管理器选项
type Option func(*options)

type options struct {
	clock   clock.Clock
	metrics metrics.Reporter
}

// WithClock 设置时钟，测试中用于控制启动超时
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithReporter 设置指标
func WithReporter(r metrics.Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.metrics = r
		}
	}
}

// NewManager 按配置创建管理器
func NewManager(cfg config.ValueAddConfig, opts ...Option) *Manager {
	o := options{clock: clock.New(), metrics: metrics.Noop()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{byID: make(map[string]*ValueAdd, len(cfg.Entries))}
	for _, e := range cfg.Entries {
		m.order = append(m.order, e.ID)
		m.byID[e.ID] = newValueAdd(e, cfg, o.clock, o.metrics)
	}
	return m
}

// Get 按标识查找
func (m *Manager) Get(id string) (*ValueAdd, bool) {
	va, ok := m.byID[id]
	return va, ok
}

// IDs 返回全部标识，按配置顺序
func (m *Manager) IDs() []string {
	return append([]string(nil), m.order...)
}

// ValueAddsFor 返回节点属性声明的 value-add，按声明顺序
//
// 未配置的标识记录告警后跳过。
func (m *Manager) ValueAddsFor(peer types.Peer) []pkgif.ValueAdd {
	ids := peer.ValueAdds()
	if len(ids) == 0 {
		return nil
	}

	out := make([]pkgif.ValueAdd, 0, len(ids))
	for _, id := range ids {
		va, ok := m.byID[id]
		if !ok {
			logger.Warn("节点声明了未配置的 value-add", "peer", peer.ID.ShortString(), "id", id)
			continue
		}
		out = append(out, va)
	}
	return out
}

// ShutdownAll 停止全部进程
func (m *Manager) ShutdownAll() error {
	var err error
	for _, id := range m.order {
		err = multierr.Append(err, m.byID[id].shutdownAll())
	}
	return err
}
