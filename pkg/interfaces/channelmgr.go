package interfaces

import (
	"context"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// OpenDone 打开通道完成回调，在派发协程上执行
type OpenDone func(ch Channel, err error)

// Done 通用完成回调，在派发协程上执行
type Done func(err error)

// ChannelManager 共享通道管理器
//
// 所有方法都是非阻塞的，结果通过回调在派发协程上返回。
type ChannelManager interface {
	// OpenChannel 打开到节点的通道
	//
	// flags 为 nil 或全为 false 时复用共享通道并增加引用计数。
	OpenChannel(peer types.Peer, flags *types.OpenFlags, done OpenDone)

	// CloseChannel 关闭通道
	//
	// 共享通道只减少引用计数，计数归零时才真正关闭。
	CloseChannel(ch Channel, done Done)

	// Shutdown 忽略引用计数，强制关闭到节点的全部通道
	Shutdown(peer types.Peer, done Done)

	// CloseAll 强制关闭所有通道；wait 为 true 时等待关闭完成
	CloseAll(wait bool)

	// SubscribeStream 订阅通道上的流事件
	SubscribeStream(ch Channel, streamType string, listener StreamListener, done Done)

	// UnsubscribeStream 取消订阅
	UnsubscribeStream(ch Channel, streamType string, listener StreamListener, done Done)
}

// ValueAdd 代理进程
//
// value-add 是位于本地与目标之间的中间进程（例如协议转换器），
// 通道先连接到 value-add，再由其转发到目标节点。
type ValueAdd interface {
	// ID 返回 value-add 标识
	ID() string

	// IsOptional 启动失败时是否可以跳过
	IsOptional() bool

	// IsAlive 到指定节点的 value-add 进程是否存活
	IsAlive(peerID types.PeerID) bool

	// Launch 为节点启动（或复用）进程，返回应拨号的代理节点
	Launch(ctx context.Context, peer types.Peer) (types.Peer, error)

	// Shutdown 停止为节点启动的进程
	Shutdown(peerID types.PeerID) error
}
