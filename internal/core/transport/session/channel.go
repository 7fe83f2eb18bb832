package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-tcflink/internal/core/transport/wire"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/transport/session")

// Channel 基于控制流的客户端通道
type Channel struct {
	id        types.ChannelID
	peer      types.Peer
	stream    io.ReadWriteCloser
	closeConn func() error

	writeMu sync.Mutex

	mu        sync.Mutex
	state     types.ChannelState
	services  []string
	agentID   string
	nextSeq   uint64
	pending   map[uint64]chan *wire.Message
	listeners map[string][]pkgif.StreamsServiceListener
	onClose   []func(error)
	closeErr  error
	hello     chan *wire.Message

	done chan struct{}
}

var _ pkgif.Channel = (*Channel)(nil)

// Open 在控制流上完成握手并返回已打开的通道
//
// closeConn 在通道关闭时调用，用于释放底层连接。握手失败时控制流与连接都会被关闭。
func Open(ctx context.Context, peer types.Peer, localID string, stream io.ReadWriteCloser, closeConn func() error) (*Channel, error) {
	c := &Channel{
		id:        types.ChannelID(uuid.NewString()),
		peer:      peer.Clone(),
		stream:    stream,
		closeConn: closeConn,
		state:     types.ChannelOpening,
		pending:   make(map[uint64]chan *wire.Message),
		listeners: make(map[string][]pkgif.StreamsServiceListener),
		hello:     make(chan *wire.Message, 1),
		done:      make(chan struct{}),
	}

	go c.readLoop()

	if err := c.send(&wire.Message{Kind: wire.KindHello, AgentID: localID}); err != nil {
		c.terminate(err)
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	select {
	case m := <-c.hello:
		c.mu.Lock()
		c.services = append([]string(nil), m.Services...)
		c.agentID = m.AgentID
		c.state = types.ChannelOpen
		c.mu.Unlock()
		logger.Debug("通道握手完成", "peer", peer.ID.ShortString(), "agent", m.AgentID, "services", m.Services)
		return c, nil
	case <-c.done:
		return nil, fmt.Errorf("%w: %v", ErrHandshake, c.err())
	case <-ctx.Done():
		c.terminate(ctx.Err())
		return nil, fmt.Errorf("%w: %v", ErrHandshake, ctx.Err())
	}
}

// ID 返回通道标识
func (c *Channel) ID() types.ChannelID { return c.id }

// RemotePeer 返回拨号的节点
func (c *Channel) RemotePeer() types.Peer { return c.peer.Clone() }

// AgentID 返回对端在握手时声明的标识
func (c *Channel) AgentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentID
}

// State 返回通道状态
func (c *Channel) State() types.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Services 返回远端服务列表
func (c *Channel) Services() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.services...)
}

// RemoteService 按名称获取远端服务
func (c *Channel) RemoteService(name string) (pkgif.Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, s := range c.services {
		if s == name {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}

	switch name {
	case pkgif.StreamsServiceName:
		return &streamsService{c: c}, true
	case pkgif.PathMapServiceName:
		return &pathMapService{c: c}, true
	default:
		return namedService(name), true
	}
}

// Redirect 请求代理转发到 target，成功后服务列表更新为目标的服务
func (c *Channel) Redirect(ctx context.Context, target types.Peer) error {
	t := target.Clone()
	reply, err := c.request(ctx, &wire.Message{Kind: wire.KindRedirect, Peer: &t})
	if err != nil {
		return fmt.Errorf("redirect to %s: %w", target.ID.ShortString(), err)
	}
	if reply.Services != nil {
		c.mu.Lock()
		c.services = append([]string(nil), reply.Services...)
		c.mu.Unlock()
	}
	return nil
}

// OnClose 注册关闭回调；已关闭时立即调用
func (c *Channel) OnClose(fn func(err error)) {
	c.mu.Lock()
	if c.state == types.ChannelClosed {
		err := c.closeErr
		c.mu.Unlock()
		fn(err)
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Close 关闭通道
func (c *Channel) Close() error {
	c.terminate(nil)
	return nil
}

// Done 通道关闭后关闭
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// ============================================================================
//                              请求 / 应答
// ============================================================================

func (c *Channel) send(m *wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteMessage(c.stream, m)
}

// request 发送请求并等待应答
func (c *Channel) request(ctx context.Context, m *wire.Message) (*wire.Message, error) {
	c.mu.Lock()
	if c.state == types.ChannelClosed {
		c.mu.Unlock()
		return nil, types.ErrChannelClosed
	}
	c.nextSeq++
	m.Seq = c.nextSeq
	reply := make(chan *wire.Message, 1)
	c.pending[m.Seq] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, m.Seq)
		c.mu.Unlock()
	}()

	if err := c.send(m); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		if r.Error != "" {
			return r, fmt.Errorf("%w: %s", ErrRemote, r.Error)
		}
		return r, nil
	case <-c.done:
		return nil, types.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop 读取对端消息直到流结束
func (c *Channel) readLoop() {
	r := wire.NewReader(c.stream)
	for {
		m, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			c.terminate(err)
			return
		}
		c.handle(m)
	}
}

func (c *Channel) handle(m *wire.Message) {
	switch m.Kind {
	case wire.KindHello:
		select {
		case c.hello <- m:
		default:
		}
	case wire.KindReply:
		c.mu.Lock()
		ch, ok := c.pending[m.Seq]
		c.mu.Unlock()
		if ok {
			ch <- m
		}
	case wire.KindStreamCreated, wire.KindStreamDisposed:
		c.mu.Lock()
		ls := append([]pkgif.StreamsServiceListener(nil), c.listeners[m.StreamType]...)
		c.mu.Unlock()
		for _, l := range ls {
			if m.Kind == wire.KindStreamCreated {
				l.Created(m.StreamType, m.StreamID, m.ContextID)
			} else {
				l.Disposed(m.StreamType, m.StreamID)
			}
		}
	default:
		logger.Debug("忽略意外的消息", "kind", m.Kind, "peer", c.peer.ID.ShortString())
	}
}

// terminate 关闭通道，err 为 nil 表示主动关闭
func (c *Channel) terminate(err error) {
	c.mu.Lock()
	if c.state == types.ChannelClosed {
		c.mu.Unlock()
		return
	}
	c.state = types.ChannelClosed
	c.closeErr = err
	callbacks := c.onClose
	c.onClose = nil
	c.mu.Unlock()

	close(c.done)
	_ = c.stream.Close()
	if c.closeConn != nil {
		if cerr := c.closeConn(); cerr != nil {
			logger.Debug("关闭底层连接失败", "err", cerr)
		}
	}
	if err != nil {
		logger.Debug("通道异常关闭", "peer", c.peer.ID.ShortString(), "err", err)
	}
	for _, fn := range callbacks {
		fn(err)
	}
}

// ============================================================================
//                              远端服务
// ============================================================================

type namedService string

func (s namedService) Name() string { return string(s) }

// streamsService 远端流服务
type streamsService struct {
	c *Channel
}

var _ pkgif.StreamsService = (*streamsService)(nil)

func (s *streamsService) Name() string { return pkgif.StreamsServiceName }

// Subscribe 订阅流类型；首个监听器注册时才向远端发送订阅
func (s *streamsService) Subscribe(ctx context.Context, streamType string, l pkgif.StreamsServiceListener) error {
	s.c.mu.Lock()
	first := len(s.c.listeners[streamType]) == 0
	s.c.listeners[streamType] = append(s.c.listeners[streamType], l)
	s.c.mu.Unlock()

	if !first {
		return nil
	}
	if _, err := s.c.request(ctx, &wire.Message{Kind: wire.KindSubscribe, StreamType: streamType}); err != nil {
		s.remove(streamType, l)
		return fmt.Errorf("subscribe %s: %w", streamType, err)
	}
	return nil
}

// Unsubscribe 取消订阅；最后一个监听器移除时才向远端发送
func (s *streamsService) Unsubscribe(ctx context.Context, streamType string, l pkgif.StreamsServiceListener) error {
	if last := s.remove(streamType, l); !last {
		return nil
	}
	if _, err := s.c.request(ctx, &wire.Message{Kind: wire.KindUnsubscribe, StreamType: streamType}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", streamType, err)
	}
	return nil
}

// remove 移除监听器，返回该类型是否已无监听器
func (s *streamsService) remove(streamType string, l pkgif.StreamsServiceListener) bool {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	ls := s.c.listeners[streamType]
	for i, x := range ls {
		if x == l {
			ls = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(ls) == 0 {
		delete(s.c.listeners, streamType)
		return true
	}
	s.c.listeners[streamType] = ls
	return false
}

// Disconnect 断开远端流
func (s *streamsService) Disconnect(ctx context.Context, streamID string) error {
	_, err := s.c.request(ctx, &wire.Message{Kind: wire.KindDisconnect, StreamID: streamID})
	return err
}

// pathMapService 远端路径映射服务
type pathMapService struct {
	c *Channel
}

var _ pkgif.PathMapService = (*pathMapService)(nil)

func (s *pathMapService) Name() string { return pkgif.PathMapServiceName }

// Set 下发规则
func (s *pathMapService) Set(ctx context.Context, rules []types.PathMapRule) error {
	_, err := s.c.request(ctx, &wire.Message{Kind: wire.KindPathMap, Rules: rules})
	return err
}
