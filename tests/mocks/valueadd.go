package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// MockValueAdd 模拟 value-add 代理进程
//
// Launch 返回 Proxy（为空时返回目标节点本身）并把节点标记为存活。
type MockValueAdd struct {
	mu sync.Mutex

	IDValue  string
	Optional bool
	Proxy    types.Peer
	alive    map[types.PeerID]bool

	// 可覆盖的方法
	LaunchFunc func(ctx context.Context, peer types.Peer) (types.Peer, error)

	// 调用记录
	LaunchCalls   int
	ShutdownCalls []types.PeerID
}

var _ interfaces.ValueAdd = (*MockValueAdd)(nil)

// NewMockValueAdd 创建 MockValueAdd
func NewMockValueAdd(id string, proxy types.Peer) *MockValueAdd {
	return &MockValueAdd{IDValue: id, Proxy: proxy, alive: make(map[types.PeerID]bool)}
}

// ID 返回标识
func (v *MockValueAdd) ID() string {
	return v.IDValue
}

// IsOptional 实现 ValueAdd
func (v *MockValueAdd) IsOptional() bool {
	return v.Optional
}

// IsAlive 实现 ValueAdd
func (v *MockValueAdd) IsAlive(peerID types.PeerID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alive[peerID]
}

// Launch 实现 ValueAdd
func (v *MockValueAdd) Launch(ctx context.Context, peer types.Peer) (types.Peer, error) {
	v.mu.Lock()
	v.LaunchCalls++
	fn := v.LaunchFunc
	v.mu.Unlock()

	proxy := v.Proxy
	if fn != nil {
		p, err := fn(ctx, peer)
		if err != nil {
			return types.Peer{}, err
		}
		proxy = p
	}
	if proxy.ID.IsEmpty() {
		proxy = peer
	}

	v.mu.Lock()
	v.alive[peer.ID] = true
	v.mu.Unlock()
	return proxy, nil
}

// Shutdown 实现 ValueAdd
func (v *MockValueAdd) Shutdown(peerID types.PeerID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ShutdownCalls = append(v.ShutdownCalls, peerID)
	delete(v.alive, peerID)
	return nil
}

// Launches 返回 Launch 调用次数
func (v *MockValueAdd) Launches() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.LaunchCalls
}

// Shutdowns 返回 Shutdown 调用次数
func (v *MockValueAdd) Shutdowns() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.ShutdownCalls)
}
