package channelmgr

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-tcflink/internal/core/stepper"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// 打开序列步骤之间传递的属性
const (
	propDialPeer = "dial.peer"
	propHops     = "redirect.hops"
	propLaunched = "valueadd.launched"
	propChannel  = "channel"
)

// openJob 进行中的打开
type openJob struct {
	peer   types.Peer
	flags  types.OpenFlags
	shared bool

	// dones 按注册顺序保存的等待者
	dones []pkgif.OpenDone

	cancel    context.CancelFunc
	stopTimer func() bool
	started   time.Time
	finished  bool
}

// openChannel 在派发协程上处理打开请求
func (m *Manager) openChannel(peer types.Peer, flags *types.OpenFlags, done pkgif.OpenDone) {
	if err := peer.Validate(); err != nil {
		done(nil, &OpenError{Peer: peer.ID, Err: err})
		return
	}

	var f types.OpenFlags
	if flags != nil {
		f = *flags
	}

	if !flags.Shared() {
		m.startOpen(&openJob{peer: peer.Clone(), flags: f, dones: []pkgif.OpenDone{done}})
		return
	}

	if rec := m.shared[peer.ID]; rec != nil && !rec.closing {
		if rec.ch.State() == types.ChannelOpen {
			rec.refs++
			m.metrics.RefCountChanged(1)
			logger.Debug("复用共享通道", "peer", peer.ID.ShortString(), "refs", rec.refs)
			done(rec.ch, nil)
			return
		}
		// 通道已断开但关闭通知还在队列中
		m.channelClosed(rec.ch, types.ErrChannelClosed)
	}

	if job := m.pendingOpen[peer.ID]; job != nil {
		job.dones = append(job.dones, done)
		logger.Debug("等待进行中的打开", "peer", peer.ID.ShortString(), "waiters", len(job.dones))
		return
	}

	job := &openJob{peer: peer.Clone(), flags: f, shared: true, dones: []pkgif.OpenDone{done}}
	m.pendingOpen[peer.ID] = job
	m.startOpen(job)
}

// startOpen 启动打开序列与超时
func (m *Manager) startOpen(job *openJob) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	job.started = m.now()
	m.opening[job] = struct{}{}

	timeout := m.cfg.OpenTimeout.Duration()
	job.stopTimer = m.disp.InvokeAfter(timeout, func() {
		m.finishOpen(job, nil, fmt.Errorf("%w: open exceeded %s", types.ErrTimeout, timeout))
	})

	logger.Debug("开始打开通道", "peer", job.peer.String(), "shared", job.shared)

	props := stepper.NewProperties()
	j := stepper.NewJob("open-channel", m.openSteps(job), props)
	j.Start(ctx, func(err error) {
		var ch pkgif.Channel
		if err == nil {
			ch, _ = stepper.Value[pkgif.Channel](props, propChannel)
		}
		m.post(func() { m.finishOpen(job, ch, err) }, func(error) {
			if ch != nil {
				_ = ch.Close()
			}
		})
	})
}

// finishOpen 打开完成、失败、超时或被取消
func (m *Manager) finishOpen(job *openJob, ch pkgif.Channel, err error) {
	if job.finished {
		// 超时或取消之后才完成的打开
		if err == nil && ch != nil {
			logger.Debug("丢弃迟到的通道", "peer", job.peer.ID.ShortString(), "channel", log.TruncateID(string(ch.ID()), 8))
			go func() { _ = ch.Close() }()
		}
		return
	}
	job.finished = true
	job.stopTimer()
	job.cancel()
	delete(m.opening, job)
	if job.shared && m.pendingOpen[job.peer.ID] == job {
		delete(m.pendingOpen, job.peer.ID)
	}

	if err == nil && ch == nil {
		err = types.ErrChannelClosed
	}
	if err != nil {
		openErr := &OpenError{Peer: job.peer.ID, Err: err}
		m.metrics.ChannelOpenFailed(job.shared)
		logger.Warn("打开通道失败", "peer", job.peer.String(), "waiters", len(job.dones), "error", err)
		for _, done := range job.dones {
			done(nil, openErr)
		}
		return
	}

	rec := &record{
		peer:       job.peer,
		ch:         ch,
		forced:     !job.shared,
		noValueAdd: job.flags.SkipValueAdd(),
		opened:     m.now(),
	}
	m.records[ch.ID()] = rec
	if job.shared {
		rec.refs = len(job.dones)
		m.shared[rec.peer.ID] = rec
		m.metrics.RefCountChanged(rec.refs)
	} else {
		m.forced[rec.peer.ID] = append(m.forced[rec.peer.ID], rec)
	}
	m.metrics.ChannelOpened(job.shared, m.now().Sub(job.started))

	ch.OnClose(func(cause error) {
		m.post(func() { m.channelClosed(ch, cause) }, nil)
	})

	logger.Info("通道已打开",
		"peer", rec.peer.String(),
		"channel", log.TruncateID(string(ch.ID()), 8),
		"shared", job.shared,
		"refs", rec.refs)
	m.emitOpened(rec)

	for _, done := range job.dones {
		done(ch, nil)
	}
}

// cancelOpens 取消匹配的进行中打开，返回被取消的节点
func (m *Manager) cancelOpens(match func(*openJob) bool) []types.Peer {
	var peers []types.Peer
	for job := range m.opening {
		if match(job) {
			peers = append(peers, job.peer)
			m.finishOpen(job, nil, types.ErrCanceled)
		}
	}
	return peers
}

// ============================================================================
//                              打开步骤
// ============================================================================

func (m *Manager) openSteps(job *openJob) []stepper.Step {
	return []stepper.Step{
		&stepper.FuncStep{
			StepName: "launch-value-adds",
			Run:      m.launchValueAdds(job),
			Undo:     stopLaunched(job.peer),
		},
		&stepper.FuncStep{
			StepName: "dial",
			Run:      m.dial,
			Undo:     closeDialed,
		},
		&stepper.FuncStep{
			StepName: "redirect",
			Run:      redirect,
		},
		&stepper.FuncStep{
			StepName: "path-map",
			Run:      m.applyPathMap(job),
		},
	}
}

// launchValueAdds 启动节点需要的 value-add，确定拨号目标与重定向路径
//
// 第一个 value-add 是拨号目标，通道随后依次重定向到其余 value-add，最后到真正的节点。
func (m *Manager) launchValueAdds(job *openJob) func(ctx context.Context, props *stepper.Properties) error {
	return func(ctx context.Context, props *stepper.Properties) error {
		peer := job.peer
		props.Set(propDialPeer, peer)
		if job.flags.SkipValueAdd() {
			return nil
		}

		var proxies []types.Peer
		var launched []pkgif.ValueAdd
		for _, va := range m.valueAdds.ValueAddsFor(peer) {
			if err := ctx.Err(); err != nil {
				return err
			}

			wasAlive := va.IsAlive(peer.ID)
			proxy, err := va.Launch(ctx, peer)
			m.metrics.ValueAddLaunched(va.ID(), err == nil)
			if err != nil {
				if va.IsOptional() {
					logger.Warn("可选 value-add 启动失败，跳过", "valueAdd", va.ID(), "peer", peer.ID.ShortString(), "error", err)
					continue
				}
				return fmt.Errorf("%w: %s: %w", ErrValueAddFailed, va.ID(), err)
			}
			if !wasAlive {
				launched = append(launched, va)
				props.Set(propLaunched, launched)
			}
			proxies = append(proxies, proxy)
		}

		if len(proxies) > 0 {
			hops := append(append([]types.Peer(nil), proxies[1:]...), peer)
			props.Set(propDialPeer, proxies[0])
			props.Set(propHops, hops)
		}
		return nil
	}
}

// stopLaunched 停止本次打开新启动的 value-add
func stopLaunched(peer types.Peer) func(ctx context.Context, props *stepper.Properties, cause error) error {
	return func(_ context.Context, props *stepper.Properties, _ error) error {
		launched, _ := stepper.Value[[]pkgif.ValueAdd](props, propLaunched)
		var err error
		for _, va := range launched {
			err = multierr.Append(err, va.Shutdown(peer.ID))
		}
		return err
	}
}

func (m *Manager) dial(ctx context.Context, props *stepper.Properties) error {
	target, _ := stepper.Value[types.Peer](props, propDialPeer)
	t, ok := m.transports[target.Transport]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransport, target.Transport)
	}

	ch, err := t.Dial(ctx, target)
	if err != nil {
		return err
	}
	props.Set(propChannel, ch)
	return nil
}

func closeDialed(_ context.Context, props *stepper.Properties, _ error) error {
	ch, ok := stepper.Value[pkgif.Channel](props, propChannel)
	if !ok {
		return nil
	}
	props.Delete(propChannel)
	return ch.Close()
}

func redirect(ctx context.Context, props *stepper.Properties) error {
	hops, _ := stepper.Value[[]types.Peer](props, propHops)
	if len(hops) == 0 {
		return nil
	}
	ch, _ := stepper.Value[pkgif.Channel](props, propChannel)
	for _, hop := range hops {
		if err := ch.Redirect(ctx, hop); err != nil {
			return fmt.Errorf("redirect to %s: %w", hop, err)
		}
	}
	return nil
}

// applyPathMap 下发路径映射，远端没有该服务时跳过
func (m *Manager) applyPathMap(job *openJob) func(ctx context.Context, props *stepper.Properties) error {
	return func(ctx context.Context, props *stepper.Properties) error {
		if job.flags.SkipPathMap() {
			return nil
		}
		rules := m.pathMap.RulesFor(job.peer)
		if len(rules) == 0 {
			return nil
		}

		ch, _ := stepper.Value[pkgif.Channel](props, propChannel)
		svc, ok := ch.RemoteService(pkgif.PathMapServiceName)
		if !ok {
			logger.Debug("远端没有路径映射服务", "peer", job.peer.ID.ShortString())
			return nil
		}
		pm, ok := svc.(pkgif.PathMapService)
		if !ok {
			return nil
		}

		callCtx, cancel := m.callTimeout(ctx)
		defer cancel()
		if err := pm.Set(callCtx, rules); err != nil {
			return fmt.Errorf("set path map: %w", err)
		}
		return nil
	}
}
