package quic

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-tcflink/config"
	"github.com/dep2p/go-tcflink/internal/core/transport/session"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/lib/log"
	"github.com/dep2p/go-tcflink/pkg/types"
)

var logger = log.Logger("core/transport/quic")

// 通道关闭时使用的应用错误码
const (
	codeNormal quic.ApplicationErrorCode = 0
)

// Transport QUIC 传输
type Transport struct {
	dialTimeout time.Duration
	localID     string
	tlsConf     *tls.Config
	quicConf    *quic.Config

	mu       sync.Mutex
	channels map[types.ChannelID]*session.Channel
	closed   bool
}

var _ pkgif.Transport = (*Transport)(nil)

// New 创建 QUIC 传输
func New(cfg config.TransportConfig) *Transport {
	return &Transport{
		dialTimeout: cfg.DialTimeout.Duration(),
		localID:     cfg.LocalID,
		tlsConf:     ClientTLSConfig(),
		quicConf:    QUICConfig(cfg),
		channels:    make(map[types.ChannelID]*session.Channel),
	}
}

// QUICConfig 返回连接配置
func QUICConfig(cfg config.TransportConfig) *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        cfg.MaxIdleTimeout.Duration(),
		KeepAlivePeriod:       cfg.KeepAliveInterval.Duration(),
		HandshakeIdleTimeout:  cfg.DialTimeout.Duration(),
		MaxIncomingStreams:    64,
		MaxIncomingUniStreams: -1,
	}
}

// Kind 返回传输类型
func (t *Transport) Kind() types.TransportKind {
	return types.TransportQUIC
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

	conn, err := quic.DialAddr(ctx, peer.Addr(), t.tlsConf, t.quicConf)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peer.Addr(), err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(codeNormal, "open stream failed")
		return nil, fmt.Errorf("open control stream: %w", err)
	}

	closeConn := func() error {
		return conn.CloseWithError(codeNormal, "channel closed")
	}
	ch, err := session.Open(ctx, peer, t.localID, stream, closeConn)
	if err != nil {
		return nil, err
	}

	t.track(ch)
	logger.Debug("QUIC 通道已建立", "peer", peer.ID.ShortString(), "addr", peer.Addr(), "channel", ch.ID())
	return ch, nil
}

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
