package channelmgr

import (
	"context"
	"time"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	"github.com/dep2p/go-tcflink/internal/core/streamproxy"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/channelmgr")

// record 一条受管理的通道
type record struct {
	peer   types.Peer
	ch     pkgif.Channel
	forced bool

	// noValueAdd 通道没有经过 value-add
	noValueAdd bool

	// refs 共享通道的引用计数，私有通道恒为 0
	refs int

	// closing 关闭序列已开始
	closing bool
	opened  time.Time
}

// Manager 共享通道管理器
type Manager struct {
	disp       *dispatch.Dispatcher
	transports map[types.TransportKind]pkgif.Transport
	valueAdds  ValueAddProvider
	pathMap    config.PathMapConfig
	cfg        config.ChannelConfig
	bus        pkgif.EventBus
	metrics    metrics.Reporter

	openedEmitter pkgif.Emitter
	closedEmitter pkgif.Emitter

	// 以下字段只在派发协程上访问

	shared  map[types.PeerID]*record
	forced  map[types.PeerID][]*record
	records map[types.ChannelID]*record

	// pendingOpen 每个节点至多一个进行中的共享打开
	pendingOpen map[types.PeerID]*openJob
	// opening 全部进行中的打开（含私有通道）
	opening map[*openJob]struct{}
	// pendingClose 每个通道至多一个进行中的关闭
	pendingClose map[types.ChannelID]*closeJob

	streams *streamproxy.Registry
}

var _ pkgif.ChannelManager = (*Manager)(nil)

// New 创建通道管理器
func New(disp *dispatch.Dispatcher, transports []pkgif.Transport, opts ...Option) *Manager {
	m := &Manager{
		disp:         disp,
		transports:   make(map[types.TransportKind]pkgif.Transport, len(transports)),
		valueAdds:    noValueAdds{},
		cfg:          config.DefaultChannelConfig(),
		metrics:      metrics.Noop(),
		shared:       make(map[types.PeerID]*record),
		forced:       make(map[types.PeerID][]*record),
		records:      make(map[types.ChannelID]*record),
		pendingOpen:  make(map[types.PeerID]*openJob),
		opening:      make(map[*openJob]struct{}),
		pendingClose: make(map[types.ChannelID]*closeJob),
	}
	for _, t := range transports {
		if t != nil {
			m.transports[t.Kind()] = t
		}
	}
	for _, opt := range opts {
		opt(m)
	}

	m.streams = streamproxy.NewRegistry(disp, m.cfg.ServiceCallTimeout.Duration())

	if m.bus != nil {
		var err error
		if m.openedEmitter, err = m.bus.Emitter(new(types.EvtChannelOpened)); err != nil {
			logger.Warn("创建事件发射器失败", "error", err)
		}
		if m.closedEmitter, err = m.bus.Emitter(new(types.EvtChannelClosed)); err != nil {
			logger.Warn("创建事件发射器失败", "error", err)
		}
	}
	return m
}

// ============================================================================
//                              公共 API（任意协程）
// ============================================================================

// OpenChannel 打开到节点的通道
func (m *Manager) OpenChannel(peer types.Peer, flags *types.OpenFlags, done pkgif.OpenDone) {
	if done == nil {
		done = func(pkgif.Channel, error) {}
	}
	m.post(func() { m.openChannel(peer, flags, done) }, func(err error) { done(nil, err) })
}

// CloseChannel 关闭通道
func (m *Manager) CloseChannel(ch pkgif.Channel, done pkgif.Done) {
	done = orNop(done)
	if ch == nil {
		m.post(func() { done(nil) }, done)
		return
	}
	m.post(func() { m.closeChannel(ch, done) }, done)
}

// Shutdown 强制关闭到节点的全部通道
func (m *Manager) Shutdown(peer types.Peer, done pkgif.Done) {
	done = orNop(done)
	m.post(func() { m.shutdown(peer, done) }, done)
}

// CloseAll 强制关闭所有通道
//
// wait 为 true 时阻塞到所有关闭完成或超过关闭超时，不能在派发协程上以 wait=true 调用。
func (m *Manager) CloseAll(wait bool) {
	finished := make(chan error, 1)
	m.post(func() {
		m.closeAll(func(err error) { finished <- err })
	}, func(err error) { finished <- err })

	if !wait {
		return
	}

	timer := m.disp.Clock().Timer(m.cfg.CloseTimeout.Duration())
	defer timer.Stop()
	select {
	case err := <-finished:
		if err != nil {
			logger.Warn("关闭全部通道时出错", "error", err)
		}
	case <-timer.C:
		logger.Warn("等待关闭全部通道超时", "timeout", m.cfg.CloseTimeout.Duration())
	}
}

// SubscribeStream 订阅通道上的流事件
func (m *Manager) SubscribeStream(ch pkgif.Channel, streamType string, listener pkgif.StreamListener, done pkgif.Done) {
	done = orNop(done)
	m.post(func() {
		if !m.isManaged(ch) {
			done(types.ErrChannelClosed)
			return
		}
		m.streams.Subscribe(ch, streamType, listener, done)
	}, done)
}

// UnsubscribeStream 取消订阅
func (m *Manager) UnsubscribeStream(ch pkgif.Channel, streamType string, listener pkgif.StreamListener, done pkgif.Done) {
	done = orNop(done)
	m.post(func() { m.streams.Unsubscribe(ch, streamType, listener, done) }, done)
}

// ProcessDelayedCreatedEvents 重放通道上缓存的 created 事件
//
// 监听器获得上下文后调用。
func (m *Manager) ProcessDelayedCreatedEvents(ch pkgif.Channel, streamType string, done pkgif.Done) {
	done = orNop(done)
	m.post(func() { done(m.streams.ProcessDelayedCreatedEvents(ch.ID(), streamType)) }, done)
}

// ============================================================================
//                              内部工具
// ============================================================================

// post 投递到派发协程，失败时（派发器已关闭）以错误调用 fail
func (m *Manager) post(fn func(), fail func(error)) {
	if err := m.disp.InvokeLater(fn); err != nil {
		logger.Debug("任务投递失败", "error", err)
		if fail != nil {
			go fail(err)
		}
	}
}

// isManaged 通道是否由本管理器管理且未关闭
func (m *Manager) isManaged(ch pkgif.Channel) bool {
	if ch == nil {
		return false
	}
	rec, ok := m.records[ch.ID()]
	return ok && rec.ch == ch && !rec.closing
}

func (m *Manager) now() time.Time {
	return m.disp.Clock().Now()
}

func (m *Manager) emitOpened(rec *record) {
	if m.openedEmitter == nil {
		return
	}
	if err := m.openedEmitter.Emit(types.EvtChannelOpened{
		PeerID:    rec.peer.ID,
		ChannelID: rec.ch.ID(),
		Shared:    !rec.forced,
		Time:      m.now(),
	}); err != nil {
		logger.Debug("发射事件失败", "error", err)
	}
}

func (m *Manager) emitClosed(rec *record, unsolicited bool, cause error) {
	if m.closedEmitter == nil {
		return
	}
	if err := m.closedEmitter.Emit(types.EvtChannelClosed{
		PeerID:      rec.peer.ID,
		ChannelID:   rec.ch.ID(),
		Unsolicited: unsolicited,
		Err:         cause,
		Time:        m.now(),
	}); err != nil {
		logger.Debug("发射事件失败", "error", err)
	}
}

// Close 释放事件发射器
func (m *Manager) Close() error {
	if m.openedEmitter != nil {
		_ = m.openedEmitter.Close()
	}
	if m.closedEmitter != nil {
		_ = m.closedEmitter.Close()
	}
	return nil
}

func orNop(done pkgif.Done) pkgif.Done {
	if done == nil {
		return func(error) {}
	}
	return done
}

// callTimeout 远端服务调用的 ctx
func (m *Manager) callTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.cfg.ServiceCallTimeout.Duration())
}
