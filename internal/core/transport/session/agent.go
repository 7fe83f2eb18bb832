package session

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dep2p/go-tcflink/internal/core/transport/wire"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// AgentHandler 代理端行为
type AgentHandler struct {
	// ID 握手时声明的标识
	ID string

	// Services 声明的服务；为空时声明 Streams 与 PathMap
	Services []string

	// Redirect 处理重定向，返回目标的服务列表；为 nil 时接受重定向且服务不变
	Redirect func(target types.Peer) ([]string, error)

	// Disconnect 处理断开流请求；为 nil 时直接接受
	Disconnect func(streamID string) error
}

func (h *AgentHandler) services() []string {
	if h == nil || len(h.Services) == 0 {
		return []string{pkgif.PathMapServiceName, pkgif.StreamsServiceName}
	}
	return h.Services
}

// Agent 代理端的一条控制流
type Agent struct {
	handler *AgentHandler
	stream  io.ReadWriteCloser

	writeMu sync.Mutex

	mu           sync.Mutex
	clientID     string
	subs         map[string]bool
	rules        []types.PathMapRule
	redirects    []types.Peer
	disconnected []string

	done chan struct{}
	err  error
}

// Serve 在控制流上运行代理端，立即返回
func Serve(stream io.ReadWriteCloser, h *AgentHandler) *Agent {
	if h == nil {
		h = &AgentHandler{}
	}
	a := &Agent{
		handler: h,
		stream:  stream,
		subs:    make(map[string]bool),
		done:    make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Agent) loop() {
	defer close(a.done)
	defer a.stream.Close()

	r := wire.NewReader(a.stream)
	for {
		m, err := r.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.mu.Lock()
				a.err = err
				a.mu.Unlock()
			}
			return
		}
		if err := a.handle(m); err != nil {
			a.mu.Lock()
			a.err = err
			a.mu.Unlock()
			return
		}
	}
}

func (a *Agent) handle(m *wire.Message) error {
	switch m.Kind {
	case wire.KindHello:
		a.mu.Lock()
		a.clientID = m.AgentID
		a.mu.Unlock()
		return a.send(&wire.Message{Kind: wire.KindHello, AgentID: a.handler.ID, Services: a.handler.services()})

	case wire.KindRedirect:
		if m.Peer == nil {
			return a.send(m.Reply(errors.New("redirect without target")))
		}
		reply := m.Reply(nil)
		if a.handler.Redirect != nil {
			services, err := a.handler.Redirect(*m.Peer)
			if err != nil {
				return a.send(m.Reply(err))
			}
			reply.Services = services
		}
		a.mu.Lock()
		a.redirects = append(a.redirects, *m.Peer)
		a.mu.Unlock()
		return a.send(reply)

	case wire.KindPathMap:
		a.mu.Lock()
		a.rules = append([]types.PathMapRule(nil), m.Rules...)
		a.mu.Unlock()
		return a.send(m.Reply(nil))

	case wire.KindSubscribe, wire.KindUnsubscribe:
		a.mu.Lock()
		if m.Kind == wire.KindSubscribe {
			a.subs[m.StreamType] = true
		} else {
			delete(a.subs, m.StreamType)
		}
		a.mu.Unlock()
		return a.send(m.Reply(nil))

	case wire.KindDisconnect:
		var err error
		if a.handler.Disconnect != nil {
			err = a.handler.Disconnect(m.StreamID)
		}
		if err == nil {
			a.mu.Lock()
			a.disconnected = append(a.disconnected, m.StreamID)
			a.mu.Unlock()
		}
		return a.send(m.Reply(err))

	default:
		if m.Kind.IsRequest() {
			return a.send(m.Reply(fmt.Errorf("%w: %s", ErrUnexpected, m.Kind)))
		}
		return nil
	}
}

func (a *Agent) send(m *wire.Message) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return wire.WriteMessage(a.stream, m)
}

// StreamCreated 推送流创建事件，未订阅该类型时不发送并返回 false
func (a *Agent) StreamCreated(streamType, streamID, contextID string) (bool, error) {
	if !a.Subscribed(streamType) {
		return false, nil
	}
	return true, a.send(&wire.Message{
		Kind:       wire.KindStreamCreated,
		StreamType: streamType,
		StreamID:   streamID,
		ContextID:  contextID,
	})
}

// StreamDisposed 推送流销毁事件
func (a *Agent) StreamDisposed(streamType, streamID string) (bool, error) {
	if !a.Subscribed(streamType) {
		return false, nil
	}
	return true, a.send(&wire.Message{Kind: wire.KindStreamDisposed, StreamType: streamType, StreamID: streamID})
}

// Subscribed 客户端是否订阅了流类型
func (a *Agent) Subscribed(streamType string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subs[streamType]
}

// Subscriptions 返回已订阅的流类型
func (a *Agent) Subscriptions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.subs))
	for t := range a.subs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ClientID 返回客户端在握手时声明的标识
func (a *Agent) ClientID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clientID
}

// Rules 返回最近一次下发的路径映射规则
func (a *Agent) Rules() []types.PathMapRule {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.PathMapRule(nil), a.rules...)
}

// Redirects 返回收到的重定向目标
func (a *Agent) Redirects() []types.Peer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.Peer(nil), a.redirects...)
}

// Disconnected 返回被断开的流
func (a *Agent) Disconnected() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.disconnected...)
}

// Done 控制流结束后关闭
func (a *Agent) Done() <-chan struct{} { return a.done }

// Err 控制流异常结束的原因
func (a *Agent) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close 关闭控制流
func (a *Agent) Close() error {
	return a.stream.Close()
}
