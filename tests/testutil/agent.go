package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/transport/quic"
	"github.com/dep2p/go-tcflink/internal/core/transport/session"
	"github.com/dep2p/go-tcflink/internal/core/transport/tcp"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// TestAgent 本地测试 Agent
//
// 在回环地址上监听，Peer 字段可以直接交给通道管理器打开。
type TestAgent struct {
	Peer    types.Peer
	Handler *session.AgentHandler

	source agentSource
}

// agentSource tcp.Listener 与 quic.Listener 的共同部分
type agentSource interface {
	Next(ctx context.Context) (*session.Agent, error)
}

// Next 等待下一个客户端控制流
func (a *TestAgent) Next(t *testing.T) *session.Agent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	agent, err := a.source.Next(ctx)
	require.NoError(t, err, "等待客户端连接超时")
	return agent
}

// StartTCPAgent 启动 TCP Agent，测试结束时自动关闭
//
// h 为 nil 时使用 id 作为握手标识并声明默认服务。
func StartTCPAgent(t *testing.T, id string, h *session.AgentHandler) *TestAgent {
	t.Helper()
	if h == nil {
		h = &session.AgentHandler{ID: id}
	}

	l, err := tcp.Listen(LoopbackHost+":0", h)
	require.NoError(t, err, "启动 TCP Agent 失败")
	t.Cleanup(func() { _ = l.Close() })

	return &TestAgent{
		Peer: types.Peer{
			ID:        types.PeerID(id),
			Host:      LoopbackHost,
			Port:      l.Addr().Port,
			Transport: types.TransportTCP,
		},
		Handler: h,
		source:  l,
	}
}

// StartQUICAgent 启动 QUIC Agent，测试结束时自动关闭
func StartQUICAgent(t *testing.T, id string, h *session.AgentHandler) *TestAgent {
	t.Helper()
	if h == nil {
		h = &session.AgentHandler{ID: id}
	}

	l, err := quic.Listen(LoopbackHost+":0", h)
	require.NoError(t, err, "启动 QUIC Agent 失败")
	t.Cleanup(func() { _ = l.Close() })

	return &TestAgent{
		Peer: types.Peer{
			ID:        types.PeerID(id),
			Host:      LoopbackHost,
			Port:      l.Addr().Port,
			Transport: types.TransportQUIC,
		},
		Handler: h,
		source:  l,
	}
}
