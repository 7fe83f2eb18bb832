package wire

import (
	"fmt"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// Kind 消息类型
type Kind uint64

const (
	// KindHello 握手，双方各发送一次；代理端携带服务列表
	KindHello Kind = iota + 1
	// KindRedirect 请求代理转发到 Peer
	KindRedirect
	// KindPathMap 下发路径映射规则
	KindPathMap
	// KindSubscribe 订阅流类型
	KindSubscribe
	// KindUnsubscribe 取消订阅
	KindUnsubscribe
	// KindDisconnect 断开流
	KindDisconnect
	// KindReply 请求应答，Seq 与请求一致
	KindReply
	// KindStreamCreated 流创建事件
	KindStreamCreated
	// KindStreamDisposed 流销毁事件
	KindStreamDisposed

	kindMax = KindStreamDisposed
)

// String 返回类型名
func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindRedirect:
		return "redirect"
	case KindPathMap:
		return "pathmap"
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	case KindDisconnect:
		return "disconnect"
	case KindReply:
		return "reply"
	case KindStreamCreated:
		return "stream-created"
	case KindStreamDisposed:
		return "stream-disposed"
	default:
		return fmt.Sprintf("kind(%d)", uint64(k))
	}
}

// IsRequest 是否需要对端应答
func (k Kind) IsRequest() bool {
	switch k {
	case KindRedirect, KindPathMap, KindSubscribe, KindUnsubscribe, KindDisconnect:
		return true
	default:
		return false
	}
}

// Message 控制流消息
type Message struct {
	Kind       Kind
	Seq        uint64
	Error      string
	Services   []string
	AgentID    string
	Peer       *types.Peer
	Rules      []types.PathMapRule
	StreamType string
	StreamID   string
	ContextID  string
}

// Reply 创建对 m 的应答
func (m *Message) Reply(err error) *Message {
	r := &Message{Kind: KindReply, Seq: m.Seq}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
