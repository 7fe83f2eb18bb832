package quic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/transport/session"
)

// Listener 代理端 QUIC 监听器
type Listener struct {
	listener *quic.Listener
	handler  *session.AgentHandler
	agents   chan *session.Agent

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Listen 在 UDP 地址 addr 上监听
func Listen(addr string, h *session.AgentHandler) (*Listener, error) {
	id := "agent"
	if h != nil && h.ID != "" {
		id = h.ID
	}
	tlsConf, err := ServerTLSConfig(id)
	if err != nil {
		return nil, err
	}

	ql, err := quic.ListenAddr(addr, tlsConf, QUICConfig(config.DefaultTransportConfig()))
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		listener: ql,
		handler:  h,
		agents:   make(chan *session.Agent, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Addr 返回实际监听地址
func (l *Listener) Addr() *net.UDPAddr {
	return l.listener.Addr().(*net.UDPAddr)
}

// Agents 返回新建立的控制流；监听器关闭后关闭
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
		conn, err := l.listener.Accept(l.ctx)
		if err != nil {
			if !l.closed.Load() && !errors.Is(err, quic.ErrServerClosed) {
				logger.Warn("接受连接失败", "err", err)
			}
			return
		}
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func (l *Listener) serveConn(conn quic.Connection) {
	defer l.wg.Done()
	defer conn.CloseWithError(codeNormal, "agent closed")

	stream, err := conn.AcceptStream(l.ctx)
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
	case <-conn.Context().Done():
	case <-l.ctx.Done():
	}
}

// Close 关闭监听器及全部连接
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	l.cancel()
	err := l.listener.Close()
	l.wg.Wait()
	close(l.agents)
	return err
}
