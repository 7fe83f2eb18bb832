package testutil

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink"
	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// TestNodeBuilder 测试节点构建器
//
// 使用 Builder 模式简化测试节点的创建和配置。
//
//	node := testutil.NewTestNode(t).
//		WithStaticPeers(agent.Peer).
//		Start()
type TestNodeBuilder struct {
	t       *testing.T
	cfg     *config.Config
	peers   []types.Peer
	options []tcflink.Option
}

// NewTestNode 创建测试节点构建器
//
// 默认配置:
//   - TCP 与 QUIC 均启用
//   - dataDir: t.TempDir()
//   - 独立的 prometheus 注册器
func NewTestNode(t *testing.T) *TestNodeBuilder {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Transport.DialTimeout = config.Duration(DefaultTimeout)
	return &TestNodeBuilder{t: t, cfg: cfg}
}

// WithConfig 修改配置
func (b *TestNodeBuilder) WithConfig(mutate func(cfg *config.Config)) *TestNodeBuilder {
	b.t.Helper()
	mutate(b.cfg)
	return b
}

// WithStaticPeers 追加静态节点
func (b *TestNodeBuilder) WithStaticPeers(peers ...types.Peer) *TestNodeBuilder {
	b.t.Helper()
	b.peers = append(b.peers, peers...)
	return b
}

// WithValueAdd 追加 value-add 定义
func (b *TestNodeBuilder) WithValueAdd(entry config.ValueAddEntry) *TestNodeBuilder {
	b.t.Helper()
	b.cfg.ValueAdd.Entries = append(b.cfg.ValueAdd.Entries, entry)
	return b
}

// WithOptions 追加节点选项
func (b *TestNodeBuilder) WithOptions(opts ...tcflink.Option) *TestNodeBuilder {
	b.t.Helper()
	b.options = append(b.options, opts...)
	return b
}

// Build 创建节点（不启动）并注册清理函数
func (b *TestNodeBuilder) Build() *tcflink.Node {
	b.t.Helper()

	opts := []tcflink.Option{
		tcflink.WithConfig(b.cfg),
		tcflink.WithRegisterer(prometheus.NewRegistry()),
		tcflink.WithStaticPeers(b.peers...),
	}
	opts = append(opts, b.options...)

	node, err := tcflink.New(opts...)
	require.NoError(b.t, err, "创建测试节点失败")
	require.NotNil(b.t, node, "节点不应为 nil")

	b.t.Cleanup(func() {
		if err := node.Close(); err != nil {
			b.t.Logf("关闭节点失败: %v", err)
		}
	})
	return node
}

// Start 创建并启动节点
//
// 节点会在测试结束时自动关闭。
func (b *TestNodeBuilder) Start() *tcflink.Node {
	b.t.Helper()

	node := b.Build()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	require.NoError(b.t, node.Start(ctx), "启动测试节点失败")
	return node
}
