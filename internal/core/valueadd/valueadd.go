package valueadd

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/metrics"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// ValueAdd 一种 value-add 定义，按节点管理进程
type ValueAdd struct {
	entry         config.ValueAddEntry
	launchTimeout time.Duration
	relaunchEvery time.Duration
	clock         clock.Clock
	metrics       metrics.Reporter

	group singleflight.Group

	mu       sync.Mutex
	procs    map[types.PeerID]*process
	limiters map[types.PeerID]*rate.Limiter
}

// newValueAdd 创建 value-add
func newValueAdd(entry config.ValueAddEntry, cfg config.ValueAddConfig, clk clock.Clock, rep metrics.Reporter) *ValueAdd {
	return &ValueAdd{
		entry:         entry,
		launchTimeout: cfg.LaunchTimeout.Duration(),
		relaunchEvery: cfg.RelaunchInterval.Duration(),
		clock:         clk,
		metrics:       rep,
		procs:         make(map[types.PeerID]*process),
		limiters:      make(map[types.PeerID]*rate.Limiter),
	}
}

// ID 返回标识
func (v *ValueAdd) ID() string { return v.entry.ID }

// IsOptional 启动失败是否可跳过
func (v *ValueAdd) IsOptional() bool { return v.entry.Optional }

// IsAlive 进程是否存活
func (v *ValueAdd) IsAlive(peerID types.PeerID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.procs[peerID]
	return ok && p.alive()
}

// Launch 启动或复用到 peer 的进程，返回代理节点
//
// 同一节点的并发调用共享一次启动。
func (v *ValueAdd) Launch(ctx context.Context, peer types.Peer) (types.Peer, error) {
	if err := peer.Validate(); err != nil {
		return types.Peer{}, err
	}

	v.mu.Lock()
	if p, ok := v.procs[peer.ID]; ok && p.alive() {
		v.mu.Unlock()
		return p.proxy.Clone(), nil
	}
	v.mu.Unlock()

	ch := v.group.DoChan(string(peer.ID), func() (interface{}, error) {
		return v.launch(ctx, peer)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return types.Peer{}, res.Err
		}
		return res.Val.(types.Peer).Clone(), nil
	case <-ctx.Done():
		return types.Peer{}, ctx.Err()
	}
}

// launch 实际启动进程并等待就绪行
func (v *ValueAdd) launch(ctx context.Context, peer types.Peer) (types.Peer, error) {
	if err := v.limiter(peer.ID).Wait(ctx); err != nil {
		return types.Peer{}, fmt.Errorf("%w: %v", ErrRelaunchTooSoon, err)
	}

	cmd := exec.Command(v.entry.Command, expandArgs(v.entry.Args, peer)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return types.Peer{}, fmt.Errorf("value-add %s stdout: %w", v.entry.ID, err)
	}
	if err := cmd.Start(); err != nil {
		v.metrics.ValueAddLaunched(v.entry.ID, false)
		return types.Peer{}, fmt.Errorf("start value-add %s: %w", v.entry.ID, err)
	}

	proc := &process{cmd: cmd, exited: make(chan struct{})}
	lines := make(chan []byte, 1)
	go readFirstLine(stdout, lines)
	go func() {
		err := cmd.Wait()
		proc.mu.Lock()
		proc.exitErr = err
		proc.mu.Unlock()
		close(proc.exited)
		logger.Debug("value-add 进程退出", "id", v.entry.ID, "peer", peer.ID.ShortString(), "err", err)
	}()

	timer := v.clock.Timer(v.launchTimeout)
	defer timer.Stop()

	var (
		proxy   types.Peer
		failErr error
	)
	select {
	case line := <-lines:
		proxy, failErr = parseReady(line, v.entry.ID, peer)
	case <-proc.exited:
		// 进程退出前可能已写出就绪行
		select {
		case line := <-lines:
			_, failErr = parseReady(line, v.entry.ID, peer)
			if failErr == nil {
				failErr = ErrExited
			}
		default:
			failErr = ErrExited
		}
	case <-timer.C:
		failErr = ErrLaunchTimeout
	case <-ctx.Done():
		failErr = ctx.Err()
	}

	if failErr != nil {
		if err := proc.kill(); err != nil {
			logger.Warn("清理失败的 value-add 进程出错", "id", v.entry.ID, "err", err)
		}
		v.metrics.ValueAddLaunched(v.entry.ID, false)
		return types.Peer{}, fmt.Errorf("value-add %s for %s: %w", v.entry.ID, peer.ID.ShortString(), failErr)
	}

	proc.proxy = proxy
	v.mu.Lock()
	v.procs[peer.ID] = proc
	v.mu.Unlock()

	v.metrics.ValueAddLaunched(v.entry.ID, true)
	logger.Info("value-add 已就绪", "id", v.entry.ID, "peer", peer.ID.ShortString(), "proxy", proxy.Addr())
	return proxy, nil
}

// limiter 返回节点的重启限速器
func (v *ValueAdd) limiter(id types.PeerID) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	l, ok := v.limiters[id]
	if !ok {
		limit := rate.Inf
		if v.relaunchEvery > 0 {
			limit = rate.Every(v.relaunchEvery)
		}
		l = rate.NewLimiter(limit, 1)
		v.limiters[id] = l
	}
	return l
}

// Shutdown 停止节点的进程，进程不存在时为空操作
func (v *ValueAdd) Shutdown(peerID types.PeerID) error {
	v.mu.Lock()
	p, ok := v.procs[peerID]
	delete(v.procs, peerID)
	v.mu.Unlock()

	if !ok {
		return nil
	}
	return p.kill()
}

// shutdownAll 停止全部进程
func (v *ValueAdd) shutdownAll() error {
	v.mu.Lock()
	procs := v.procs
	v.procs = make(map[types.PeerID]*process)
	v.mu.Unlock()

	var err error
	for _, p := range procs {
		err = multierr.Append(err, p.kill())
	}
	return err
}
