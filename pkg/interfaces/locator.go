package interfaces

import "github.com/dep2p/go-tcflink/pkg/types"

// Locator 节点模型
//
// 节点的增删改通过 EventBus 以 EvtPeerAdded / EvtPeerChanged / EvtPeerRemoved 通知。
type Locator interface {
	// Peers 返回所有已知节点
	Peers() []types.Peer

	// Peer 按 ID 查询节点
	Peer(id types.PeerID) (types.Peer, bool)

	// AddPeer 添加静态节点
	AddPeer(peer types.Peer) error

	// UpdatePeer 更新节点属性
	UpdatePeer(peer types.Peer) error

	// RemovePeer 移除节点
	RemovePeer(id types.PeerID) error
}
