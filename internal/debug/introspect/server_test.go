package introspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/locator"
	"github.com/dep2p/go-tcflink/pkg/types"
)

type fakeChannels []channelmgr.ChannelInfo

func (f fakeChannels) Channels() []channelmgr.ChannelInfo { return f }

type fakePeers []locator.PeerInfo

func (f fakePeers) Snapshot() []locator.PeerInfo { return f }

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	server := New(cfg)
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func get(t *testing.T, server *Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

// TestNew 测试默认配置
func TestNew(t *testing.T) {
	server := New(Config{})
	assert.Equal(t, DefaultAddr, server.config.Addr)
	assert.Equal(t, prometheus.DefaultGatherer, server.config.Gatherer)

	server = New(Config{Addr: "127.0.0.1:8080"})
	assert.Equal(t, "127.0.0.1:8080", server.config.Addr)
}

// TestServer_StartStop 测试重复启动与停止
func TestServer_StartStop(t *testing.T) {
	server := New(Config{Addr: "127.0.0.1:0"})

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.running)
	assert.NotEqual(t, "127.0.0.1:0", server.Addr())

	require.NoError(t, server.Start(ctx))

	require.NoError(t, server.Stop())
	assert.False(t, server.running)
	require.NoError(t, server.Stop())
}

// TestServer_Health 测试健康检查
func TestServer_Health(t *testing.T) {
	server := startServer(t, Config{})

	resp, body := get(t, server, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "degraded", health.Status)

	server2 := startServer(t, Config{
		Channels: fakeChannels{
			{Peer: "a", State: types.ChannelOpen},
			{Peer: "b", State: types.ChannelOpen, Closing: true},
			{Peer: "c", State: types.ChannelOpening},
		},
		Peers: fakePeers{
			{Peer: types.Peer{ID: "a"}, State: types.StateConnected},
			{Peer: types.Peer{ID: "c"}, State: types.StateConnecting},
		},
	})
	_, body = get(t, server2, "/health")
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.OpenChannels)
	assert.Equal(t, 1, health.ConnectedPeers)
}

// TestServer_Channels 测试通道快照端点
func TestServer_Channels(t *testing.T) {
	opened := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	server := startServer(t, Config{Channels: fakeChannels{{
		Peer:     "agent-1",
		Channel:  "c-1",
		Remote:   "127.0.0.1:1534",
		State:    types.ChannelOpen,
		Refs:     2,
		OpenedAt: opened,
	}}})

	resp, body := get(t, server, "/debug/introspect/channels")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "agent-1", got[0]["peer"])
	assert.Equal(t, "open", got[0]["state"])
	assert.EqualValues(t, 2, got[0]["refs"])
}

// TestServer_ChannelsFilter 测试按节点过滤通道
func TestServer_ChannelsFilter(t *testing.T) {
	server := startServer(t, Config{Channels: fakeChannels{
		{Peer: "agent-1", Channel: "c-1", State: types.ChannelOpen},
		{Peer: "agent-2", Channel: "c-2", State: types.ChannelOpen},
		{Peer: "agent-2", Channel: "c-3", State: types.ChannelOpen, Forced: true},
	}})

	_, body := get(t, server, "/debug/introspect/channels?peer=agent-2")
	var got []channelmgr.ChannelInfo
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 2)
	assert.Equal(t, types.ChannelID("c-3"), got[1].Channel)
	assert.True(t, got[1].Forced)

	_, body = get(t, server, "/debug/introspect/channels?peer=nobody")
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got)
}

// TestServer_PeersUnavailable 测试缺少来源时返回 503
func TestServer_PeersUnavailable(t *testing.T) {
	server := startServer(t, Config{})

	resp, _ := get(t, server, "/debug/introspect/peers")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = get(t, server, "/debug/introspect/channels")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// TestServer_Introspect 测试完整报告
func TestServer_Introspect(t *testing.T) {
	server := startServer(t, Config{
		Peers: fakePeers{{
			Peer:   types.Peer{ID: "agent-1", Host: "127.0.0.1", Port: 1534},
			Static: true,
			State:  types.StateConnected,
		}},
	})

	resp, body := get(t, server, "/debug/introspect")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Uptime string `json:"uptime"`
		Peers  []struct {
			Static bool   `json:"static"`
			State  string `json:"state"`
		} `json:"peers"`
		Runtime RuntimeInfo `json:"runtime"`
	}
	require.NoError(t, json.Unmarshal(body, &report))
	assert.NotEmpty(t, report.Uptime)
	require.Len(t, report.Peers, 1)
	assert.True(t, report.Peers[0].Static)
	assert.Equal(t, "connected", report.Peers[0].State)
	assert.Greater(t, report.Runtime.NumGoroutine, 0)
}

// TestServer_Metrics 测试从注入的 Gatherer 导出指标
func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "tcflink_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	server := startServer(t, Config{Gatherer: reg})

	resp, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tcflink_test_total 1")
}

// TestServer_MethodNotAllowed 测试非 GET 请求
func TestServer_MethodNotAllowed(t *testing.T) {
	server := startServer(t, Config{})

	resp, err := http.Post("http://"+server.Addr()+"/debug/introspect", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
