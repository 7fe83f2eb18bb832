package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// MockChannel 模拟 Channel 接口实现
type MockChannel struct {
	mu sync.Mutex

	IDValue  types.ChannelID
	Peer     types.Peer
	state    types.ChannelState
	services map[string]interfaces.Service
	closeFns []func(error)

	// 可覆盖的方法
	RedirectFunc func(ctx context.Context, target types.Peer) error
	CloseFunc    func() error

	// 调用记录
	RedirectCalls []types.Peer
	CloseCalls    int
}

var _ interfaces.Channel = (*MockChannel)(nil)

// NewMockChannel 创建处于打开状态的 MockChannel
func NewMockChannel(peer types.Peer, services ...interfaces.Service) *MockChannel {
	c := &MockChannel{
		IDValue:  types.ChannelID(uuid.NewString()),
		Peer:     peer,
		state:    types.ChannelOpen,
		services: make(map[string]interfaces.Service),
	}
	for _, s := range services {
		c.services[s.Name()] = s
	}
	return c
}

// ID 返回通道标识
func (c *MockChannel) ID() types.ChannelID {
	return c.IDValue
}

// RemotePeer 返回远端节点
func (c *MockChannel) RemotePeer() types.Peer {
	return c.Peer
}

// State 返回通道状态
func (c *MockChannel) State() types.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Services 返回服务名列表
func (c *MockChannel) Services() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoteService 按名称获取服务
func (c *MockChannel) RemoteService(name string) (interfaces.Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[name]
	return s, ok
}

// AddService 添加服务
func (c *MockChannel) AddService(s interfaces.Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[s.Name()] = s
}

// Redirect 记录重定向
func (c *MockChannel) Redirect(ctx context.Context, target types.Peer) error {
	c.mu.Lock()
	c.RedirectCalls = append(c.RedirectCalls, target)
	fn := c.RedirectFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, target)
	}
	return nil
}

// Redirects 返回重定向记录
func (c *MockChannel) Redirects() []types.Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Peer(nil), c.RedirectCalls...)
}

// OnClose 注册关闭回调，已关闭时立即调用
func (c *MockChannel) OnClose(fn func(err error)) {
	c.mu.Lock()
	if c.state == types.ChannelClosed {
		c.mu.Unlock()
		fn(types.ErrChannelClosed)
		return
	}
	c.closeFns = append(c.closeFns, fn)
	c.mu.Unlock()
}

// Close 关闭通道
func (c *MockChannel) Close() error {
	c.mu.Lock()
	c.CloseCalls++
	fn := c.CloseFunc
	c.mu.Unlock()

	var err error
	if fn != nil {
		err = fn()
	}
	c.terminate(nil)
	return err
}

// Drop 模拟远端主动关闭
func (c *MockChannel) Drop(err error) {
	c.terminate(err)
}

// CloseCount 返回 Close 调用次数
func (c *MockChannel) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CloseCalls
}

func (c *MockChannel) terminate(err error) {
	c.mu.Lock()
	if c.state == types.ChannelClosed {
		c.mu.Unlock()
		return
	}
	c.state = types.ChannelClosed
	fns := c.closeFns
	c.closeFns = nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}
