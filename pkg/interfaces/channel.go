package interfaces

import (
	"context"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// Channel 到远端节点的双向通道
//
// 通道由 Transport 创建，生命周期由 ChannelManager 的引用计数决定。
// 所有方法必须是并发安全的。
type Channel interface {
	// ID 返回通道标识
	ID() types.ChannelID

	// RemotePeer 返回实际拨号的节点（经过 value-add 时为代理地址）
	RemotePeer() types.Peer

	// State 返回通道状态
	State() types.ChannelState

	// Services 返回远端在握手时声明的服务列表
	Services() []string

	// RemoteService 按名称获取远端服务
	RemoteService(name string) (Service, bool)

	// Redirect 让代理（value-add）把通道转发到目标节点
	Redirect(ctx context.Context, target types.Peer) error

	// OnClose 注册关闭回调
	//
	// 通道已关闭时回调会被立即调用。回调在传输层协程上执行。
	OnClose(fn func(err error))

	// Close 关闭通道
	Close() error
}

// Service 远端服务句柄
type Service interface {
	// Name 服务名
	Name() string
}

// Transport 通道拨号器
type Transport interface {
	// Kind 返回传输类型
	Kind() types.TransportKind

	// Dial 打开到节点的通道，返回时通道处于 ChannelOpen 状态
	Dial(ctx context.Context, peer types.Peer) (Channel, error)

	// Close 关闭传输
	Close() error
}

// PathMapServiceName 远端路径映射服务名
const PathMapServiceName = "PathMap"

// PathMapService 远端路径映射服务
type PathMapService interface {
	Service

	// Set 下发路径映射规则
	Set(ctx context.Context, rules []types.PathMapRule) error
}
