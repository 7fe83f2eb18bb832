package tcflink

import (
	"context"

	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
// 阻塞式通道 API
// ════════════════════════════════════════════════════════════════════════════

// OpenChannel 打开到节点的通道并等待结果
//
// ctx 取消后若打开仍然成功，通道引用会被立即归还。
func (n *Node) OpenChannel(ctx context.Context, peer types.Peer, flags *types.OpenFlags) (pkgif.Channel, error) {
	if err := n.checkStarted(); err != nil {
		return nil, err
	}

	type result struct {
		ch  pkgif.Channel
		err error
	}
	res := make(chan result, 1)
	n.manager.OpenChannel(peer, flags, func(ch pkgif.Channel, err error) {
		res <- result{ch, err}
	})

	select {
	case r := <-res:
		return r.ch, r.err
	case <-ctx.Done():
		go func() {
			if r := <-res; r.err == nil {
				n.manager.CloseChannel(r.ch, nil)
			}
		}()
		return nil, ctx.Err()
	}
}

// CloseChannel 释放通道引用并等待结果
func (n *Node) CloseChannel(ctx context.Context, ch pkgif.Channel) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return wait(ctx, func(done pkgif.Done) {
		n.manager.CloseChannel(ch, done)
	})
}

// Shutdown 强制关闭到节点的全部通道并等待结果
func (n *Node) Shutdown(ctx context.Context, peer types.Peer) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return wait(ctx, func(done pkgif.Done) {
		n.manager.Shutdown(peer, done)
	})
}

// Connect 把 Locator 中的节点切换到已连接状态并等待结果
func (n *Node) Connect(ctx context.Context, id types.PeerID) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return waitErr(ctx, func(done pkgif.Done) error {
		return n.locator.Connect(id, done)
	})
}

// Disconnect 把 Locator 中的节点切换到断开状态并等待结果
func (n *Node) Disconnect(ctx context.Context, id types.PeerID) error {
	if err := n.checkStarted(); err != nil {
		return err
	}
	return waitErr(ctx, func(done pkgif.Done) error {
		return n.locator.Disconnect(id, done)
	})
}

func wait(ctx context.Context, call func(done pkgif.Done)) error {
	return waitErr(ctx, func(done pkgif.Done) error {
		call(done)
		return nil
	})
}

// waitErr 调用 call 并等待其完成回调
//
// call 同步返回错误时 done 仍可能被调用，结果通道带缓冲。
func waitErr(ctx context.Context, call func(done pkgif.Done) error) error {
	res := make(chan error, 1)
	err := call(func(err error) {
		select {
		case res <- err:
		default:
		}
	})
	if err != nil {
		return err
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
