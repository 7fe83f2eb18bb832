package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ============================================================================
//                              TransportKind - 传输类型
// ============================================================================

// TransportKind 传输类型
type TransportKind int

const (
	// TransportUnknown 未知传输
	TransportUnknown TransportKind = iota
	// TransportTCP TCP + yamux
	TransportTCP
	// TransportQUIC QUIC
	TransportQUIC
)

// String 返回传输类型名称
func (k TransportKind) String() string {
	switch k {
	case TransportTCP:
		return "tcp"
	case TransportQUIC:
		return "quic"
	default:
		return "unknown"
	}
}

// ParseTransportKind 解析传输类型名称
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp", "":
		return TransportTCP, nil
	case "quic", "udp":
		return TransportQUIC, nil
	default:
		return TransportUnknown, fmt.Errorf("%w: %q", ErrUnknownTransport, s)
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (k TransportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *TransportKind) UnmarshalText(text []byte) error {
	v, err := ParseTransportKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ============================================================================
//                              Peer - 远端节点
// ============================================================================

// 常用节点属性键
const (
	// AttrValueAdds 逗号分隔的 value-add ID 列表，声明该节点需要的代理进程
	AttrValueAdds = "ValueAdds"
	// AttrAgentID 远端 agent 标识
	AttrAgentID = "AgentID"
	// AttrOSName 远端操作系统
	AttrOSName = "OSName"
)

// Peer 远端节点描述
//
// Peer 由 Locator 创建和销毁，对通道管理器而言是不可变值。
// 修改属性时必须先 Clone。
type Peer struct {
	// ID 节点标识
	ID PeerID `json:"id"`

	// Name 可读名称
	Name string `json:"name,omitempty"`

	// Host 主机地址
	Host string `json:"host"`

	// Port 端口
	Port int `json:"port"`

	// Transport 传输类型
	Transport TransportKind `json:"transport"`

	// Attrs 其他属性
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Addr 返回 host:port 形式的地址
func (p Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Attr 返回属性值
func (p Peer) Attr(key string) string {
	if p.Attrs == nil {
		return ""
	}
	return p.Attrs[key]
}

// ValueAdds 返回节点声明的 value-add ID 列表
func (p Peer) ValueAdds() []string {
	raw := p.Attr(AttrValueAdds)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Clone 深拷贝
func (p Peer) Clone() Peer {
	c := p
	if p.Attrs != nil {
		c.Attrs = make(map[string]string, len(p.Attrs))
		for k, v := range p.Attrs {
			c.Attrs[k] = v
		}
	}
	return c
}

// Equal 比较两个节点描述是否一致
func (p Peer) Equal(o Peer) bool {
	if p.ID != o.ID || p.Name != o.Name || p.Host != o.Host ||
		p.Port != o.Port || p.Transport != o.Transport {
		return false
	}
	if len(p.Attrs) != len(o.Attrs) {
		return false
	}
	for k, v := range p.Attrs {
		if o.Attrs[k] != v {
			return false
		}
	}
	return true
}

// Validate 校验节点描述
func (p Peer) Validate() error {
	if err := p.ID.Validate(); err != nil {
		return err
	}
	if p.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidPeer)
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPeer, p.Port)
	}
	if p.Transport == TransportUnknown {
		return fmt.Errorf("%w: %v", ErrUnknownTransport, p.Transport)
	}
	return nil
}

// String 返回用于日志的描述
func (p Peer) String() string {
	return fmt.Sprintf("%s(%s/%s)", p.ID.ShortString(), p.Transport, p.Addr())
}
