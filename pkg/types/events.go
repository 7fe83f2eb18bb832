package types

import "time"

// ============================================================================
//                              Locator 事件
// ============================================================================

// EvtPeerAdded 节点加入
type EvtPeerAdded struct {
	Peer Peer
	Time time.Time
}

// EvtPeerChanged 节点属性变化
type EvtPeerChanged struct {
	Peer Peer
	Time time.Time
}

// EvtPeerRemoved 节点移除
type EvtPeerRemoved struct {
	PeerID PeerID
	Time   time.Time
}

// ============================================================================
//                              通道事件
// ============================================================================

// EvtChannelOpened 通道打开
type EvtChannelOpened struct {
	PeerID    PeerID
	ChannelID ChannelID
	// Shared 是否为共享通道
	Shared bool
	Time   time.Time
}

// EvtChannelClosed 通道关闭
type EvtChannelClosed struct {
	PeerID    PeerID
	ChannelID ChannelID
	// Unsolicited 为 true 表示不是由 CloseChannel/Shutdown 触发的关闭
	Unsolicited bool
	Err         error
	Time        time.Time
}

// ============================================================================
//                              连接状态事件
// ============================================================================

// EvtConnectStateChanged 节点连接状态变化
type EvtConnectStateChanged struct {
	PeerID PeerID
	From   ConnectState
	To     ConnectState
	Time   time.Time
}
