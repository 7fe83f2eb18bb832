package peernode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dep2p/go-tcflink/internal/core/metrics"
	"github.com/dep2p/go-tcflink/internal/core/stepper"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/peernode")

// Invoker 派发协程
type Invoker interface {
	InvokeLater(fn func()) error
}

// Listener 状态变化监听器，在派发协程上调用
type Listener func(evt types.EvtConnectStateChanged)

// ============================================================================
//                              Node
// ============================================================================

// Node 单个节点的连接状态机
type Node struct {
	mgr     pkgif.ChannelManager
	inv     Invoker
	emitter pkgif.Emitter
	metrics metrics.Reporter
	now     func() time.Time
	timeout time.Duration

	mu        sync.Mutex
	peer      types.Peer
	state     types.ConnectState
	ch        pkgif.Channel
	services  []string
	listeners map[int]Listener
	nextID    int
	steps     map[types.Action]StepsFactory
	cancel    context.CancelFunc
	disposed  bool
}

// Option 节点选项
type Option func(*Node)

// WithEmitter 设置 EvtConnectStateChanged 的发射器
func WithEmitter(e pkgif.Emitter) Option {
	return func(n *Node) { n.emitter = e }
}

// WithReporter 设置指标
func WithReporter(r metrics.Reporter) Option {
	return func(n *Node) {
		if r != nil {
			n.metrics = r
		}
	}
}

// WithSteps 替换动作的步骤
func WithSteps(action types.Action, f StepsFactory) Option {
	return func(n *Node) { n.steps[action] = f }
}

// WithJobTimeout 设置单次状态变更作业的超时
func WithJobTimeout(d time.Duration) Option {
	return func(n *Node) { n.timeout = d }
}

// WithNow 设置事件时间来源
func WithNow(now func() time.Time) Option {
	return func(n *Node) { n.now = now }
}

// New 创建节点，初始状态为 UNKNOWN
func New(peer types.Peer, mgr pkgif.ChannelManager, inv Invoker, opts ...Option) *Node {
	n := &Node{
		mgr:       mgr,
		inv:       inv,
		metrics:   metrics.Noop(),
		now:       time.Now,
		peer:      peer.Clone(),
		state:     types.StateUnknown,
		listeners: make(map[int]Listener),
		steps: map[types.Action]StepsFactory{
			types.ActionConnect:    DefaultConnectSteps,
			types.ActionDisconnect: DefaultDisconnectSteps,
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Peer 返回节点描述
func (n *Node) Peer() types.Peer {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peer.Clone()
}

// SetPeer 更新节点描述，下一次连接生效
func (n *Node) SetPeer(peer types.Peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peer = peer.Clone()
}

// State 返回当前连接状态
func (n *Node) State() types.ConnectState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Channel 返回已连接时持有的通道
func (n *Node) Channel() (pkgif.Channel, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch, n.ch != nil
}

// Services 返回缓存的远端服务列表
func (n *Node) Services() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.services...)
}

// AllowedActions 返回当前状态允许的动作
func (n *Node) AllowedActions() []types.Action {
	return AllowedActions(n.State())
}

// RegisterSteps 替换动作的步骤
func (n *Node) RegisterSteps(action types.Action, f StepsFactory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps[action] = f
}

// AddListener 注册状态监听器，返回注销函数
func (n *Node) AddListener(l Listener) (remove func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// ============================================================================
//                              状态变更
// ============================================================================

// ChangeConnectState 发起连接或断开
//
// 动作不合法时返回 ErrIllegalAction，同时也以该错误调用 done。
// 合法时同步进入 *_SCHEDULED 并返回 nil，done 在终态确定后于派发协程上调用。
func (n *Node) ChangeConnectState(action types.Action, done pkgif.Done) error {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		n.complete(done, ErrDisposed)
		return ErrDisposed
	}
	from := n.state
	if !IsActionAllowed(from, action) {
		n.mu.Unlock()
		err := fmt.Errorf("%w: %s in state %s", ErrIllegalAction, action, from)
		n.complete(done, err)
		return err
	}

	scheduled, _, _ := actionStates(action)
	n.setStateLocked(scheduled)

	props := stepper.NewProperties()
	props.Set(PropPeer, n.peer.Clone())
	if n.ch != nil {
		props.Set(PropChannel, n.ch)
	}
	if n.services != nil {
		props.Set(PropServices, append([]string(nil), n.services...))
	}
	var jobOpts []stepper.JobOption
	if n.timeout > 0 {
		jobOpts = append(jobOpts, stepper.WithTimeout(n.timeout))
	}
	job := stepper.NewJob(fmt.Sprintf("%s %s", action, n.peer.ID.ShortString()), n.steps[action](n), props, jobOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.mu.Unlock()

	go n.run(ctx, cancel, action, job, done)
	return nil
}

// run 在工作协程上执行作业并确定终态
func (n *Node) run(ctx context.Context, cancel context.CancelFunc, action types.Action, job *stepper.Job, done pkgif.Done) {
	defer cancel()

	_, running, success := actionStates(action)
	if !n.transition(running) {
		n.complete(done, fmt.Errorf("%s %s: %w", action, n.Peer().ID.ShortString(), types.ErrCanceled))
		return
	}

	err := job.Run(ctx)
	props := job.Properties()

	n.mu.Lock()
	n.cancel = nil
	ch, hasCh := stepper.Value[pkgif.Channel](props, PropChannel)
	services, _ := stepper.Value[[]string](props, PropServices)

	// 打开步骤之后通道可能已被远端关闭，此时的关闭事件不会再到达节点
	if err == nil && action == types.ActionConnect && (!hasCh || ch.State() == types.ChannelClosed) {
		err = fmt.Errorf("%s %s: %w", action, n.peer.ID.ShortString(), types.ErrChannelClosed)
		hasCh = false
	}

	target := success
	switch {
	case err == nil && action == types.ActionConnect:
		n.ch, n.services = ch, services
	case err == nil:
		n.ch, n.services = nil, nil
	case action == types.ActionDisconnect && hasCh && ch.State() != types.ChannelClosed:
		target = types.StateConnected
		n.ch, n.services = ch, services
	default:
		target = types.StateDisconnected
		n.ch, n.services = nil, nil
	}

	if !n.setStateLocked(target) {
		// 作业期间节点被外部改变（例如通道意外关闭），放弃作业结果
		stale := n.ch
		n.ch, n.services = nil, nil
		n.mu.Unlock()
		if stale != nil {
			n.mgr.CloseChannel(stale, nil)
		}
		if err == nil {
			err = fmt.Errorf("%s %s: %w", action, n.Peer().ID.ShortString(), types.ErrCanceled)
		}
		n.complete(done, err)
		return
	}
	peerID := n.peer.ID
	held := n.ch
	n.mu.Unlock()

	if target == types.StateConnected && held != nil {
		held.OnClose(func(cerr error) { n.channelLost(held, cerr) })
	}

	if err != nil {
		logger.Warn("连接状态变更失败", "peer", peerID.ShortString(), "action", action, "state", target, "err", err)
	} else {
		logger.Debug("连接状态变更完成", "peer", peerID.ShortString(), "action", action, "state", target)
	}
	n.complete(done, err)
}

// HandleChannelClosed 处理通道关闭事件
//
// 只关心节点持有的通道被意外关闭的情况：迁移到 DISCONNECTED 并清除服务缓存。
func (n *Node) HandleChannelClosed(evt types.EvtChannelClosed) {
	if !evt.Unsolicited {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch == nil || n.ch.ID() != evt.ChannelID {
		return
	}
	if !n.setStateLocked(types.StateDisconnected) {
		return
	}
	n.ch, n.services = nil, nil
	logger.Info("通道意外关闭，节点已断开", "peer", n.peer.ID.ShortString(), "err", evt.Err)
}

// channelLost 已连接节点持有的通道关闭
//
// 节点持有一个共享引用，CONNECTED 期间通道关闭只能来自远端或强制关闭。
func (n *Node) channelLost(ch pkgif.Channel, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != ch || n.state != types.StateConnected {
		return
	}
	if !n.setStateLocked(types.StateDisconnected) {
		return
	}
	n.ch, n.services = nil, nil
	logger.Info("通道已关闭，节点已断开", "peer", n.peer.ID.ShortString(), "err", err)
}

// Dispose 取消进行中的作业并释放持有的通道
func (n *Node) Dispose() {
	n.mu.Lock()
	if n.disposed {
		n.mu.Unlock()
		return
	}
	n.disposed = true
	cancel := n.cancel
	ch := n.ch
	n.ch, n.services = nil, nil
	if n.state != types.StateDisconnected {
		n.forceStateLocked(types.StateDisconnected)
	}
	n.mu.Unlock()

	// 有作业在运行时由作业负责归还通道
	if cancel != nil {
		cancel()
		return
	}
	if ch != nil {
		n.mgr.CloseChannel(ch, nil)
	}
}

// transition 加锁迁移
func (n *Node) transition(to types.ConnectState) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setStateLocked(to)
}

// setStateLocked 按迁移表迁移并投递通知，调用方持有锁
func (n *Node) setStateLocked(to types.ConnectState) bool {
	if !CanTransition(n.state, to) {
		return false
	}
	n.forceStateLocked(to)
	return true
}

// forceStateLocked 不检查迁移表
func (n *Node) forceStateLocked(to types.ConnectState) {
	evt := types.EvtConnectStateChanged{
		PeerID: n.peer.ID,
		From:   n.state,
		To:     to,
		Time:   n.now(),
	}
	n.state = to
	n.metrics.ConnectStateChanged(to)

	listeners := make([]Listener, 0, len(n.listeners))
	for id := 0; id < n.nextID; id++ {
		if l, ok := n.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	emitter := n.emitter

	// 持锁投递保证通知顺序与迁移顺序一致
	if err := n.inv.InvokeLater(func() {
		for _, l := range listeners {
			l(evt)
		}
		if emitter != nil {
			if err := emitter.Emit(evt); err != nil {
				logger.Debug("发出连接状态事件失败", "err", err)
			}
		}
	}); err != nil {
		logger.Debug("投递状态通知失败", "peer", evt.PeerID.ShortString(), "err", err)
	}
}

// complete 在派发协程上调用 done
func (n *Node) complete(done pkgif.Done, err error) {
	if done == nil {
		return
	}
	if perr := n.inv.InvokeLater(func() { done(err) }); perr != nil {
		done(err)
	}
}
