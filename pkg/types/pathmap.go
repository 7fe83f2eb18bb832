package types

// PathMapRule 路径映射规则
//
// 打开通道后下发给远端，用于在本地与远端文件路径之间转换。
type PathMapRule struct {
	// Source 远端路径前缀
	Source string `json:"source"`
	// Destination 本地路径前缀
	Destination string `json:"destination"`
	// Host 仅对指定主机生效，空值表示所有主机
	Host string `json:"host,omitempty"`
}

// AppliesTo 规则是否适用于指定节点
func (r PathMapRule) AppliesTo(p Peer) bool {
	return r.Host == "" || r.Host == p.Host
}
