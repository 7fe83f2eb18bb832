package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-tcflink/internal/core/metrics"
	"github.com/dep2p/go-tcflink/internal/core/peernode"
	"github.com/dep2p/go-tcflink/internal/core/storage/kv"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/locator")

// StorePrefix 持久化节点的键前缀
var StorePrefix = []byte("l/p/")

// entry 一个已知节点
type entry struct {
	peer   types.Peer
	static bool
	node   *peernode.Node
}

// Locator 节点模型
type Locator struct {
	mgr     pkgif.ChannelManager
	inv     peernode.Invoker
	bus     pkgif.EventBus
	store   *kv.Store
	static  []types.Peer
	metrics metrics.Reporter
	timeout time.Duration

	addedEm   pkgif.Emitter
	changedEm pkgif.Emitter
	removedEm pkgif.Emitter
	stateEm   pkgif.Emitter

	mu      sync.RWMutex
	peers   map[types.PeerID]*entry
	started bool
	closed  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ pkgif.Locator = (*Locator)(nil)

// Option 选项
type Option func(*Locator)

// WithStore 启用持久化
func WithStore(s *kv.Store) Option {
	return func(l *Locator) { l.store = s }
}

// WithStaticPeers 设置静态节点
func WithStaticPeers(peers []types.Peer) Option {
	return func(l *Locator) { l.static = peers }
}

// WithReporter 设置指标
func WithReporter(r metrics.Reporter) Option {
	return func(l *Locator) {
		if r != nil {
			l.metrics = r
		}
	}
}

// WithStateChangeTimeout 设置节点连接与断开作业的超时
func WithStateChangeTimeout(d time.Duration) Option {
	return func(l *Locator) { l.timeout = d }
}

// New 创建 Locator
func New(mgr pkgif.ChannelManager, inv peernode.Invoker, bus pkgif.EventBus, opts ...Option) (*Locator, error) {
	l := &Locator{
		mgr:     mgr,
		inv:     inv,
		bus:     bus,
		metrics: metrics.Noop(),
		peers:   make(map[types.PeerID]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}

	var err error
	if l.addedEm, err = bus.Emitter(new(types.EvtPeerAdded)); err != nil {
		return nil, err
	}
	if l.changedEm, err = bus.Emitter(new(types.EvtPeerChanged)); err != nil {
		return nil, err
	}
	if l.removedEm, err = bus.Emitter(new(types.EvtPeerRemoved)); err != nil {
		return nil, err
	}
	if l.stateEm, err = bus.Emitter(new(types.EvtConnectStateChanged)); err != nil {
		return nil, err
	}
	return l, nil
}

// Start 加载节点并开始路由通道关闭事件
func (l *Locator) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.mu.Unlock()

	for _, p := range l.static {
		if err := l.add(p, true, false); err != nil {
			return fmt.Errorf("load static peer %s: %w", p.ID, err)
		}
	}
	if err := l.loadPersisted(); err != nil {
		return err
	}

	sub, err := l.bus.Subscribe(new(types.EvtChannelClosed), pkgif.WithBuffer(64), pkgif.WithSubscriberName("locator"))
	if err != nil {
		return err
	}
	rctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.routeChannelClosed(rctx, sub)

	logger.Info("locator 已启动", "peers", len(l.Peers()))
	return nil
}

// loadPersisted 恢复持久化的节点
func (l *Locator) loadPersisted() error {
	if l.store == nil {
		return nil
	}

	var loaded []types.Peer
	err := l.store.ForEach(func(id string, raw []byte) bool {
		var p types.Peer
		if err := json.Unmarshal(raw, &p); err != nil {
			logger.Warn("跳过损坏的节点记录", "key", id, "err", err)
			return true
		}
		loaded = append(loaded, p)
		return true
	})
	if err != nil {
		return fmt.Errorf("load persisted peers: %w", err)
	}

	for _, p := range loaded {
		if err := l.add(p, false, false); err != nil {
			logger.Warn("跳过持久化节点", "peer", p.ID.ShortString(), "err", err)
		}
	}
	return nil
}

// routeChannelClosed 把通道关闭事件交给对应节点
func (l *Locator) routeChannelClosed(ctx context.Context, sub pkgif.Subscription) {
	defer l.wg.Done()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Out():
			if !ok {
				return
			}
			evt, ok := e.(types.EvtChannelClosed)
			if !ok {
				continue
			}
			if node, found := l.Node(evt.PeerID); found {
				node.HandleChannelClosed(evt)
			}
		}
	}
}

// ============================================================================
//                              查询
// ============================================================================

// Peers 返回所有已知节点，按 ID 排序
func (l *Locator) Peers() []types.Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.Peer, 0, len(l.peers))
	for _, e := range l.peers {
		out = append(out, e.peer.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Peer 按 ID 查询节点
func (l *Locator) Peer(id types.PeerID) (types.Peer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.peers[id]
	if !ok {
		return types.Peer{}, false
	}
	return e.peer.Clone(), true
}

// PeerInfo 节点快照
type PeerInfo struct {
	Peer     types.Peer         `json:"peer"`
	Static   bool               `json:"static"`
	State    types.ConnectState `json:"state"`
	Services []string           `json:"services,omitempty"`
}

// Snapshot 返回全部节点及其连接状态，按 ID 排序
func (l *Locator) Snapshot() []PeerInfo {
	l.mu.RLock()
	out := make([]PeerInfo, 0, len(l.peers))
	for _, e := range l.peers {
		out = append(out, PeerInfo{
			Peer:     e.peer.Clone(),
			Static:   e.static,
			State:    e.node.State(),
			Services: e.node.Services(),
		})
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Peer.ID < out[j].Peer.ID })
	return out
}

// Node 返回节点的连接状态机
func (l *Locator) Node(id types.PeerID) (*peernode.Node, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.peers[id]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// IsStatic 是否为配置中的静态节点
func (l *Locator) IsStatic(id types.PeerID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.peers[id]
	return ok && e.static
}

// ============================================================================
//                              修改
// ============================================================================

// AddPeer 添加节点
func (l *Locator) AddPeer(peer types.Peer) error {
	return l.add(peer, false, true)
}

func (l *Locator) add(peer types.Peer, static, persist bool) error {
	if err := peer.Validate(); err != nil {
		return err
	}
	peer = peer.Clone()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLocatorClosed
	}
	if _, exists := l.peers[peer.ID]; exists {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPeerExists, peer.ID)
	}
	if persist {
		if err := l.persist(peer); err != nil {
			l.mu.Unlock()
			return err
		}
	}
	node := peernode.New(peer, l.mgr, l.inv,
		peernode.WithEmitter(l.stateEm),
		peernode.WithReporter(l.metrics),
		peernode.WithJobTimeout(l.timeout),
	)
	l.peers[peer.ID] = &entry{peer: peer, static: static, node: node}
	l.mu.Unlock()

	logger.Debug("添加节点", "peer", peer.String(), "static", static)
	l.emit(l.addedEm, types.EvtPeerAdded{Peer: peer.Clone(), Time: time.Now()})
	return nil
}

// UpdatePeer 更新节点
//
// 新描述在节点下一次连接时生效。
func (l *Locator) UpdatePeer(peer types.Peer) error {
	if err := peer.Validate(); err != nil {
		return err
	}
	peer = peer.Clone()

	l.mu.Lock()
	e, ok := l.peers[peer.ID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrPeerNotFound, peer.ID)
	}
	if e.static {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStaticPeer, peer.ID)
	}
	if e.peer.Equal(peer) {
		l.mu.Unlock()
		return nil
	}
	if err := l.persist(peer); err != nil {
		l.mu.Unlock()
		return err
	}
	e.peer = peer
	e.node.SetPeer(peer)
	l.mu.Unlock()

	l.emit(l.changedEm, types.EvtPeerChanged{Peer: peer.Clone(), Time: time.Now()})
	return nil
}

// RemovePeer 移除节点，节点的连接状态机被释放
func (l *Locator) RemovePeer(id types.PeerID) error {
	l.mu.Lock()
	e, ok := l.peers[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrPeerNotFound, id)
	}
	if e.static {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStaticPeer, id)
	}
	if l.store != nil {
		if err := l.store.Delete(string(id)); err != nil {
			l.mu.Unlock()
			return fmt.Errorf("delete peer %s: %w", id, err)
		}
	}
	delete(l.peers, id)
	l.mu.Unlock()

	e.node.Dispose()
	logger.Debug("移除节点", "peer", id.ShortString())
	l.emit(l.removedEm, types.EvtPeerRemoved{PeerID: id, Time: time.Now()})
	return nil
}

// Connect 连接节点
func (l *Locator) Connect(id types.PeerID, done pkgif.Done) error {
	return l.change(id, types.ActionConnect, done)
}

// Disconnect 断开节点
func (l *Locator) Disconnect(id types.PeerID, done pkgif.Done) error {
	return l.change(id, types.ActionDisconnect, done)
}

func (l *Locator) change(id types.PeerID, action types.Action, done pkgif.Done) error {
	node, ok := l.Node(id)
	if !ok {
		err := fmt.Errorf("%w: %s", types.ErrPeerNotFound, id)
		if done != nil {
			done(err)
		}
		return err
	}
	return node.ChangeConnectState(action, done)
}

// persist 写入存储，调用方持有锁
func (l *Locator) persist(peer types.Peer) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Put(string(peer.ID), peer); err != nil {
		return fmt.Errorf("persist peer %s: %w", peer.ID, err)
	}
	return nil
}

func (l *Locator) emit(em pkgif.Emitter, evt interface{}) {
	if err := em.Emit(evt); err != nil {
		logger.Debug("发出节点事件失败", "err", err)
	}
}

// Close 停止事件路由并释放全部节点
func (l *Locator) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	entries := make([]*entry, 0, len(l.peers))
	for _, e := range l.peers {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()

	for _, e := range entries {
		e.node.Dispose()
	}

	return multierr.Combine(
		l.addedEm.Close(),
		l.changedEm.Close(),
		l.removedEm.Close(),
		l.stateEm.Close(),
	)
}
