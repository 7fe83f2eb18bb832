package types

// PeerID 节点标识
//
// 由发现服务（Locator）分配，在本子系统中视为不透明字符串。
type PeerID string

// String 返回字符串形式
func (id PeerID) String() string {
	return string(id)
}

// ShortString 返回用于日志的短形式
func (id PeerID) ShortString() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// IsEmpty 是否为空
func (id PeerID) IsEmpty() bool {
	return id == ""
}

// Validate 校验节点 ID
func (id PeerID) Validate() error {
	if id.IsEmpty() {
		return ErrEmptyPeerID
	}
	return nil
}

// ChannelID 通道标识，由 Transport 在拨号时生成
type ChannelID string

// String 返回字符串形式
func (id ChannelID) String() string {
	return string(id)
}
