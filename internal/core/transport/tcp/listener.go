package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-tcflink/internal/core/transport/session"
)

// ============================================================================
//                              Listener 实现
// ============================================================================

// Listener 代理端 TCP 监听器
//
// 每条入站连接上接受第一条 yamux 流作为控制流并运行 session.Agent。
type Listener struct {
	listener net.Listener
	handler  *session.AgentHandler
	yamuxCfg *yamux.Config
	agents   chan *session.Agent

	mu       sync.Mutex
	sessions map[*yamux.Session]struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// Listen 在 addr 上监听
func Listen(addr string, h *session.AgentHandler) (*Listener, error) {
	nl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	l := &Listener{
		listener: nl,
		handler:  h,
		yamuxCfg: YamuxConfig(0),
		agents:   make(chan *session.Agent, 16),
		sessions: make(map[*yamux.Session]struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr 返回实际监听地址
func (l *Listener) Addr() *net.TCPAddr {
	return l.listener.Addr().(*net.TCPAddr)
}

// Agents 返回新建立的控制流；监听器关闭后关闭
//
// 消费方不读取时新的 Agent 被丢弃（连接仍然可用）。
func (l *Listener) Agents() <-chan *session.Agent {
	return l.agents
}

// Next 阻塞等待下一个控制流，监听器关闭后返回 ErrListenerClosed
func (l *Listener) Next(ctx context.Context) (*session.Agent, error) {
	select {
	case a, ok := <-l.agents:
		if !ok {
			return nil, ErrListenerClosed
		}
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if !l.closed.Load() && !errors.Is(err, net.ErrClosed) {
				logger.Warn("接受连接失败", "err", err)
			}
			return
		}

		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn net.Conn) {
	defer l.wg.Done()

	sess, err := yamux.Server(conn, l.yamuxCfg)
	if err != nil {
		_ = conn.Close()
		logger.Warn("创建 yamux 会话失败", "remote", conn.RemoteAddr(), "err", err)
		return
	}

	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		_ = sess.Close()
		return
	}
	l.sessions[sess] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.sessions, sess)
		l.mu.Unlock()
		_ = sess.Close()
	}()

	stream, err := sess.AcceptStream()
	if err != nil {
		return
	}
	agent := session.Serve(stream, l.handler)

	select {
	case l.agents <- agent:
	default:
		logger.Debug("Agent 通知被丢弃", "remote", conn.RemoteAddr())
	}

	select {
	case <-agent.Done():
	case <-sess.CloseChan():
	}
}

// Close 关闭监听器及全部会话
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	err := l.listener.Close()

	l.mu.Lock()
	for sess := range l.sessions {
		_ = sess.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	close(l.agents)
	return err
}
