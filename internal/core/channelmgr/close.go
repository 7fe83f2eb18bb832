package channelmgr

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-tcflink/internal/core/metrics"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// valueAddShutdownLimit 并行停止 value-add 的上限
const valueAddShutdownLimit = 4

// closeJob 进行中的关闭
type closeJob struct {
	rec       *record
	reason    string
	dones     []pkgif.Done
	stopTimer func() bool
	finished  bool
}

// closeChannel 在派发协程上处理关闭请求
func (m *Manager) closeChannel(ch pkgif.Channel, done pkgif.Done) {
	rec, ok := m.records[ch.ID()]
	if !ok || rec.ch != ch {
		// 已关闭或不受管理，多余的关闭是空操作
		done(nil)
		return
	}

	if job := m.pendingClose[ch.ID()]; job != nil {
		job.dones = append(job.dones, done)
		return
	}

	if !rec.forced {
		if rec.refs > 0 {
			rec.refs--
			m.metrics.RefCountChanged(-1)
		}
		if rec.refs > 0 {
			logger.Debug("共享通道引用减少", "peer", rec.peer.ID.ShortString(), "refs", rec.refs)
			done(nil)
			return
		}
	}

	shutdownValueAdds := !rec.noValueAdd && !m.valueAddInUse(rec)
	m.startClose(rec, metrics.CloseRequested, shutdownValueAdds, done)
}

// valueAddInUse 同一节点上除 except 之外是否还有需要 value-add 的通道
func (m *Manager) valueAddInUse(except *record) bool {
	id := except.peer.ID
	if rec := m.shared[id]; rec != nil && rec != except && !rec.closing {
		return true
	}
	for _, rec := range m.forced[id] {
		if rec != except && !rec.closing && !rec.noValueAdd {
			return true
		}
	}
	for job := range m.opening {
		if job.peer.ID == id && !job.flags.SkipValueAdd() {
			return true
		}
	}
	return false
}

// startClose 启动关闭序列
func (m *Manager) startClose(rec *record, reason string, shutdownValueAdds bool, done pkgif.Done) {
	rec.closing = true
	if !rec.forced && m.shared[rec.peer.ID] == rec {
		delete(m.shared, rec.peer.ID)
		if rec.refs > 0 {
			m.metrics.RefCountChanged(-rec.refs)
			rec.refs = 0
		}
	}

	job := &closeJob{rec: rec, reason: reason, dones: []pkgif.Done{done}}
	m.pendingClose[rec.ch.ID()] = job

	timeout := m.cfg.CloseTimeout.Duration()
	job.stopTimer = m.disp.InvokeAfter(timeout, func() {
		m.finishClose(job, fmt.Errorf("%w: close exceeded %s", types.ErrTimeout, timeout))
	})

	logger.Debug("开始关闭通道",
		"peer", rec.peer.ID.ShortString(),
		"channel", log.TruncateID(string(rec.ch.ID()), 8),
		"reason", reason,
		"shutdownValueAdds", shutdownValueAdds)

	go func() {
		err := rec.ch.Close()
		if shutdownValueAdds {
			err = multierr.Append(err, m.shutdownValueAdds(rec.peer))
		}
		m.post(func() { m.finishClose(job, err) }, nil)
	}()
}

// finishClose 关闭完成或超时
func (m *Manager) finishClose(job *closeJob, err error) {
	if job.finished {
		return
	}
	job.finished = true
	job.stopTimer()

	rec := job.rec
	id := rec.ch.ID()
	if m.pendingClose[id] == job {
		delete(m.pendingClose, id)
	}
	delete(m.records, id)
	m.removeForced(rec)
	m.streams.ChannelClosed(id)

	m.metrics.ChannelClosed(!rec.forced, job.reason)
	if err != nil {
		logger.Warn("关闭通道出错", "peer", rec.peer.ID.ShortString(), "error", err)
	} else {
		logger.Info("通道已关闭", "peer", rec.peer.String(), "channel", log.TruncateID(string(id), 8), "reason", job.reason)
	}
	m.emitClosed(rec, false, err)

	for _, done := range job.dones {
		done(err)
	}
}

// channelClosed 传输层报告通道关闭
//
// 没有关闭序列在进行时视为远端主动关闭：清理簿记，释放流代理，发出 Unsolicited 事件。
func (m *Manager) channelClosed(ch pkgif.Channel, cause error) {
	rec, ok := m.records[ch.ID()]
	if !ok || rec.ch != ch || rec.closing {
		return
	}

	logger.Info("通道被动关闭", "peer", rec.peer.String(), "channel", log.TruncateID(string(ch.ID()), 8), "cause", cause)

	if !rec.forced && m.shared[rec.peer.ID] == rec {
		delete(m.shared, rec.peer.ID)
		m.metrics.RefCountChanged(-rec.refs)
		rec.refs = 0
	}
	delete(m.records, ch.ID())
	m.removeForced(rec)
	m.streams.ChannelClosed(ch.ID())

	m.metrics.ChannelClosed(!rec.forced, metrics.CloseUnsolicited)
	m.emitClosed(rec, true, cause)

	if !rec.noValueAdd && !m.valueAddInUse(rec) {
		go func() {
			if err := m.shutdownValueAdds(rec.peer); err != nil {
				logger.Warn("停止 value-add 失败", "peer", rec.peer.ID.ShortString(), "error", err)
			}
		}()
	}
}

func (m *Manager) removeForced(rec *record) {
	if !rec.forced {
		return
	}
	list := m.forced[rec.peer.ID]
	for i, r := range list {
		if r == rec {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.forced, rec.peer.ID)
	} else {
		m.forced[rec.peer.ID] = list
	}
}

// ============================================================================
//                              强制关闭
// ============================================================================

// shutdown 强制关闭节点的全部通道并停止其 value-add
func (m *Manager) shutdown(peer types.Peer, done pkgif.Done) {
	logger.Info("强制关闭节点通道", "peer", peer.String())

	m.cancelOpens(func(job *openJob) bool { return job.peer.ID == peer.ID })

	var recs []*record
	for _, rec := range m.records {
		if rec.peer.ID == peer.ID {
			recs = append(recs, rec)
		}
	}

	m.forceClose(recs, func(err error) {
		go func() {
			err := multierr.Append(err, m.shutdownValueAdds(peer))
			m.post(func() { done(err) }, done)
		}()
	})
}

// closeAll 强制关闭全部通道并停止相关 value-add
func (m *Manager) closeAll(done pkgif.Done) {
	peers := make(map[types.PeerID]types.Peer)
	for _, p := range m.cancelOpens(func(*openJob) bool { return true }) {
		peers[p.ID] = p
	}

	recs := make([]*record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
		peers[rec.peer.ID] = rec.peer
	}
	logger.Info("关闭全部通道", "channels", len(recs), "peers", len(peers))

	m.forceClose(recs, func(err error) {
		go func() {
			var mu sync.Mutex
			var g errgroup.Group
			g.SetLimit(valueAddShutdownLimit)
			for _, p := range peers {
				p := p
				g.Go(func() error {
					if verr := m.shutdownValueAdds(p); verr != nil {
						mu.Lock()
						err = multierr.Append(err, verr)
						mu.Unlock()
					}
					return nil
				})
			}
			_ = g.Wait()
			m.post(func() { done(err) }, done)
		}()
	})
}

// forceClose 忽略引用计数关闭 recs，全部完成后以汇总错误调用 done
func (m *Manager) forceClose(recs []*record, done pkgif.Done) {
	if len(recs) == 0 {
		done(nil)
		return
	}

	remaining := len(recs)
	var errs error
	collect := func(err error) {
		errs = multierr.Append(errs, err)
		remaining--
		if remaining == 0 {
			done(errs)
		}
	}

	for _, rec := range recs {
		if job := m.pendingClose[rec.ch.ID()]; job != nil {
			job.dones = append(job.dones, collect)
			continue
		}
		// value-add 由调用者统一停止
		m.startClose(rec, metrics.CloseForced, false, collect)
	}
}

// shutdownValueAdds 停止节点的全部存活 value-add
func (m *Manager) shutdownValueAdds(peer types.Peer) error {
	var mu sync.Mutex
	var errs error
	var g errgroup.Group
	g.SetLimit(valueAddShutdownLimit)

	for _, va := range m.valueAdds.ValueAddsFor(peer) {
		va := va
		g.Go(func() error {
			if !va.IsAlive(peer.ID) {
				return nil
			}
			if err := va.Shutdown(peer.ID); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("value-add %s: %w", va.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
