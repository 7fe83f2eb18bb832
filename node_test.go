package tcflink

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/transport/session"
	"github.com/dep2p/go-tcflink/internal/core/transport/tcp"
	"github.com/dep2p/go-tcflink/pkg/types"
)

const waitFor = 5 * time.Second

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Transport.EnableQUIC = false
	cfg.Transport.DialTimeout = config.Duration(waitFor)
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func startAgent(t *testing.T, id string) (*tcp.Listener, types.Peer) {
	t.Helper()
	l, err := tcp.Listen("127.0.0.1:0", &session.AgentHandler{ID: id})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	peer := types.Peer{ID: types.PeerID(id), Host: "127.0.0.1", Port: l.Addr().Port, Transport: types.TransportTCP}
	return l, peer
}

func newTestNode(t *testing.T, cfg *config.Config, opts ...Option) *Node {
	t.Helper()
	opts = append([]Option{WithConfig(cfg), WithRegisterer(prometheus.NewRegistry())}, opts...)
	n, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

// TestNew_InvalidConfig 测试非法配置在构建时被拒绝
func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport.EnableTCP = false
	cfg.Transport.EnableQUIC = false

	_, err := New(WithConfig(cfg))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)
}

// TestNode_Lifecycle 测试启动与关闭
func TestNode_Lifecycle(t *testing.T) {
	n := newTestNode(t, testConfig(t))

	_, err := n.OpenChannel(context.Background(), types.Peer{ID: "x"}, nil)
	assert.ErrorIs(t, err, ErrNotStarted)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, n.Start(ctx))
	assert.ErrorIs(t, n.Start(ctx), ErrAlreadyStarted)

	assert.NotNil(t, n.ChannelManager())
	assert.NotNil(t, n.Locator())
	assert.NotNil(t, n.EventBus())
	assert.NotNil(t, n.Dispatcher())
	assert.NotNil(t, n.ValueAdds())

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Start(ctx), ErrNodeClosed)
}

// TestNode_SharedChannelOverTCP 测试共享通道经真实 TCP 传输打开并按引用计数关闭
func TestNode_SharedChannelOverTCP(t *testing.T) {
	l, peer := startAgent(t, "agent-1")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	n := newTestNode(t, testConfig(t))
	require.NoError(t, n.Start(ctx))

	ch1, err := n.OpenChannel(ctx, peer, nil)
	require.NoError(t, err)
	ch2, err := n.OpenChannel(ctx, peer, nil)
	require.NoError(t, err)

	assert.Equal(t, ch1.ID(), ch2.ID())
	assert.Equal(t, types.ChannelOpen, ch1.State())
	assert.Equal(t, 2, n.manager.RefCount(peer.ID))

	var agent *session.Agent
	select {
	case agent = <-l.Agents():
	case <-time.After(waitFor):
		t.Fatal("agent not accepted")
	}

	require.NoError(t, n.CloseChannel(ctx, ch1))
	assert.Equal(t, types.ChannelOpen, ch2.State())
	assert.Equal(t, 1, n.manager.RefCount(peer.ID))

	require.NoError(t, n.CloseChannel(ctx, ch2))
	assert.Equal(t, types.ChannelClosed, ch2.State())
	assert.Equal(t, 0, n.manager.ChannelCount())

	select {
	case <-agent.Done():
	case <-time.After(waitFor):
		t.Fatal("agent session still open")
	}
}

// TestNode_ConnectStaticPeer 测试静态节点的连接与断开
func TestNode_ConnectStaticPeer(t *testing.T) {
	_, peer := startAgent(t, "agent-static")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	n := newTestNode(t, testConfig(t), WithStaticPeers(peer))
	require.NoError(t, n.Start(ctx))

	assert.True(t, n.Locator().IsStatic(peer.ID))

	require.NoError(t, n.Connect(ctx, peer.ID))
	node, ok := n.Locator().Node(peer.ID)
	require.True(t, ok)
	assert.Equal(t, types.StateConnected, node.State())
	assert.ElementsMatch(t, []string{"Streams", "PathMap"}, node.Services())
	assert.Equal(t, 1, n.manager.RefCount(peer.ID))

	require.NoError(t, n.Disconnect(ctx, peer.ID))
	assert.Equal(t, types.StateDisconnected, node.State())
	assert.Empty(t, node.Services())
	assert.Equal(t, 0, n.manager.ChannelCount())
}

// TestNode_PersistedPeers 测试持久化节点在重启后恢复
func TestNode_PersistedPeers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Locator.Persist = true
	peer := types.Peer{ID: "saved", Host: "127.0.0.1", Port: 1534, Transport: types.TransportTCP}

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	n1 := newTestNode(t, cfg)
	require.NoError(t, n1.Start(ctx))
	require.NoError(t, n1.Locator().AddPeer(peer))
	require.NoError(t, n1.Close())

	n2 := newTestNode(t, cfg)
	require.NoError(t, n2.Start(ctx))
	got, ok := n2.Locator().Peer(peer.ID)
	require.True(t, ok)
	assert.True(t, peer.Equal(got))
	assert.False(t, n2.Locator().IsStatic(peer.ID))
}

// TestNode_Introspect 测试启用自省服务后导出通道快照与指标
func TestNode_Introspect(t *testing.T) {
	_, peer := startAgent(t, "agent-introspect")

	cfg := testConfig(t)
	cfg.Diagnostics.EnableIntrospect = true
	cfg.Diagnostics.IntrospectAddr = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	n := newTestNode(t, cfg)
	require.NoError(t, n.Start(ctx))
	require.NotEmpty(t, n.IntrospectAddr())

	ch, err := n.OpenChannel(ctx, peer, nil)
	require.NoError(t, err)
	defer func() { _ = n.CloseChannel(ctx, ch) }()

	body := httpGet(t, "http://"+n.IntrospectAddr()+"/debug/introspect/channels")
	assert.Contains(t, body, `"peer": "agent-introspect"`)
	assert.Contains(t, body, `"state": "open"`)

	body = httpGet(t, "http://"+n.IntrospectAddr()+"/metrics")
	assert.Contains(t, body, "tcflink_channel_shared_refs 1")
}

func httpGet(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
