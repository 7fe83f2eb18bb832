package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// MockTransport 模拟 Transport 接口实现
//
// 默认每次 Dial 创建一个带 Streams 与 PathMap 服务的 MockChannel。
type MockTransport struct {
	mu sync.Mutex

	KindValue types.TransportKind
	gate      chan struct{}
	closed    bool

	// 可覆盖的方法
	DialFunc func(ctx context.Context, peer types.Peer) (interfaces.Channel, error)

	// 调用记录
	DialCalls []types.Peer
	Channels  []*MockChannel
	Streams   []*MockStreamsService
	PathMaps  []*MockPathMapService
}

var _ interfaces.Transport = (*MockTransport)(nil)

// NewMockTransport 创建 MockTransport
func NewMockTransport(kind types.TransportKind) *MockTransport {
	return &MockTransport{KindValue: kind}
}

// Kind 返回传输类型
func (t *MockTransport) Kind() types.TransportKind {
	return t.KindValue
}

// Hold 让之后的 Dial 阻塞到 Release
func (t *MockTransport) Hold() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = make(chan struct{})
}

// Release 放行阻塞中的 Dial
func (t *MockTransport) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gate != nil {
		close(t.gate)
		t.gate = nil
	}
}

// Dial 打开通道
func (t *MockTransport) Dial(ctx context.Context, peer types.Peer) (interfaces.Channel, error) {
	t.mu.Lock()
	t.DialCalls = append(t.DialCalls, peer)
	gate := t.gate
	fn := t.DialFunc
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fn != nil {
		return fn(ctx, peer)
	}

	streams := NewMockStreamsService()
	pathMap := &MockPathMapService{}
	ch := NewMockChannel(peer, streams, pathMap)

	t.mu.Lock()
	t.Channels = append(t.Channels, ch)
	t.Streams = append(t.Streams, streams)
	t.PathMaps = append(t.PathMaps, pathMap)
	t.mu.Unlock()
	return ch, nil
}

// DialCount 返回 Dial 调用次数
func (t *MockTransport) DialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.DialCalls)
}

// Channel 返回第 i 个创建的通道
func (t *MockTransport) Channel(i int) *MockChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.Channels) {
		return nil
	}
	return t.Channels[i]
}

// StreamsService 返回第 i 个通道的流服务
func (t *MockTransport) StreamsService(i int) *MockStreamsService {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.Streams) {
		return nil
	}
	return t.Streams[i]
}

// PathMapService 返回第 i 个通道的路径映射服务
func (t *MockTransport) PathMapService(i int) *MockPathMapService {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.PathMaps) {
		return nil
	}
	return t.PathMaps[i]
}

// Close 关闭传输
func (t *MockTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
