package peernode

import (
	"context"
	"fmt"

	"github.com/dep2p/go-tcflink/internal/core/stepper"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// 作业属性键
const (
	// PropPeer 目标节点 (types.Peer)
	PropPeer = "peer"
	// PropChannel 节点持有的通道 (pkgif.Channel)
	PropChannel = "channel"
	// PropServices 远端服务列表 ([]string)
	PropServices = "services"
)

// StepsFactory 为一次状态变更生成步骤
type StepsFactory func(n *Node) []stepper.Step

// DefaultConnectSteps 默认连接步骤：打开共享通道，然后缓存远端服务
func DefaultConnectSteps(n *Node) []stepper.Step {
	return []stepper.Step{
		&stepper.FuncStep{
			StepName: "open-channel",
			Run: func(ctx context.Context, props *stepper.Properties) error {
				peer, _ := stepper.Value[types.Peer](props, PropPeer)
				ch, err := openChannel(ctx, n.mgr, peer)
				if err != nil {
					return err
				}
				props.Set(PropChannel, ch)
				return nil
			},
			Undo: func(ctx context.Context, props *stepper.Properties, _ error) error {
				ch, ok := stepper.Value[pkgif.Channel](props, PropChannel)
				if !ok {
					return nil
				}
				props.Delete(PropChannel)
				return closeChannel(ctx, n.mgr, ch)
			},
		},
		&stepper.FuncStep{
			StepName: "cache-services",
			Run: func(_ context.Context, props *stepper.Properties) error {
				ch, ok := stepper.Value[pkgif.Channel](props, PropChannel)
				if !ok {
					return fmt.Errorf("cache-services: %w", types.ErrChannelClosed)
				}
				props.Set(PropServices, ch.Services())
				return nil
			},
			Undo: func(_ context.Context, props *stepper.Properties, _ error) error {
				props.Delete(PropServices)
				return nil
			},
		},
	}
}

// DefaultDisconnectSteps 默认断开步骤：释放通道引用，然后清除服务缓存
func DefaultDisconnectSteps(n *Node) []stepper.Step {
	return []stepper.Step{
		&stepper.FuncStep{
			StepName: "close-channel",
			Run: func(ctx context.Context, props *stepper.Properties) error {
				ch, ok := stepper.Value[pkgif.Channel](props, PropChannel)
				if !ok {
					return nil
				}
				if err := closeChannel(ctx, n.mgr, ch); err != nil {
					return err
				}
				props.Delete(PropChannel)
				return nil
			},
		},
		&stepper.FuncStep{
			StepName: "clear-services",
			Run: func(_ context.Context, props *stepper.Properties) error {
				props.Delete(PropServices)
				return nil
			},
		},
	}
}

// openChannel 在工作协程上等待管理器回调
func openChannel(ctx context.Context, mgr pkgif.ChannelManager, peer types.Peer) (pkgif.Channel, error) {
	type result struct {
		ch  pkgif.Channel
		err error
	}
	res := make(chan result, 1)
	mgr.OpenChannel(peer, nil, func(ch pkgif.Channel, err error) {
		res <- result{ch, err}
	})

	select {
	case r := <-res:
		return r.ch, r.err
	case <-ctx.Done():
		// 打开仍可能完成，完成后立即归还引用
		go func() {
			if r := <-res; r.err == nil {
				mgr.CloseChannel(r.ch, nil)
			}
		}()
		return nil, ctx.Err()
	}
}

// closeChannel 在工作协程上等待管理器回调
func closeChannel(ctx context.Context, mgr pkgif.ChannelManager, ch pkgif.Channel) error {
	res := make(chan error, 1)
	mgr.CloseChannel(ch, func(err error) {
		res <- err
	})

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
