package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/yamux"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/transport/session"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输
type Transport struct {
	dialTimeout time.Duration
	keepAlive   time.Duration
	localID     string
	yamuxCfg    *yamux.Config

	mu       sync.Mutex
	channels map[types.ChannelID]*session.Channel
	closed   bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建 TCP 传输
func New(cfg config.TransportConfig) *Transport {
	return &Transport{
		dialTimeout: cfg.DialTimeout.Duration(),
		keepAlive:   cfg.KeepAliveInterval.Duration(),
		localID:     cfg.LocalID,
		yamuxCfg:    YamuxConfig(cfg.KeepAliveInterval.Duration()),
		channels:    make(map[types.ChannelID]*session.Channel),
	}
}

// YamuxConfig 返回通道使用的 yamux 配置
func YamuxConfig(keepAlive time.Duration) *yamux.Config {
	c := yamux.DefaultConfig()
	c.AcceptBacklog = 64
	c.LogOutput = io.Discard
	c.ConnectionWriteTimeout = 10 * time.Second
	if keepAlive > 0 {
		c.EnableKeepAlive = true
		c.KeepAliveInterval = keepAlive
	} else {
		c.EnableKeepAlive = false
	}
	return c
}

// Kind 返回传输类型
func (t *Transport) Kind() types.TransportKind {
	return types.TransportTCP
}

// Dial 建立到节点的通道
func (t *Transport) Dial(ctx context.Context, peer types.Peer) (pkgif.Channel, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	if t.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{KeepAlive: t.keepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", peer.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peer.Addr(), err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	sess, err := yamux.Client(conn, t.yamuxCfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("yamux client: %w", err)
	}

	stream, err := sess.OpenStream()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("open control stream: %w", err)
	}

	ch, err := session.Open(ctx, peer, t.localID, stream, sess.Close)
	if err != nil {
		return nil, err
	}

	t.track(ch)
	logger.Debug("TCP 通道已建立", "peer", peer.ID.ShortString(), "addr", peer.Addr(), "channel", ch.ID())
	return ch, nil
}

// track 记录通道，关闭后自动移除
func (t *Transport) track(ch *session.Channel) {
	t.mu.Lock()
	t.channels[ch.ID()] = ch
	t.mu.Unlock()

	ch.OnClose(func(error) {
		t.mu.Lock()
		delete(t.channels, ch.ID())
		t.mu.Unlock()
	})
}

// ChannelCount 返回存活的通道数
func (t *Transport) ChannelCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels)
}

// Close 关闭传输及其全部通道
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	channels := make([]*session.Channel, 0, len(t.channels))
	for _, ch := range t.channels {
		channels = append(channels, ch)
	}
	t.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close()
	}
	return nil
}
