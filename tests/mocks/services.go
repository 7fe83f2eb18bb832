package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// ============================================================================
//                              MockStreamsService
// ============================================================================

// MockStreamsService 模拟远端流服务
type MockStreamsService struct {
	mu sync.Mutex

	listeners map[string][]interfaces.StreamsServiceListener

	// 可覆盖的方法
	SubscribeFunc func(ctx context.Context, streamType string, l interfaces.StreamsServiceListener) error

	// 调用记录
	SubscribeCalls   []string
	UnsubscribeCalls []string
	DisconnectCalls  []string
}

var _ interfaces.StreamsService = (*MockStreamsService)(nil)

// NewMockStreamsService 创建 MockStreamsService
func NewMockStreamsService() *MockStreamsService {
	return &MockStreamsService{listeners: make(map[string][]interfaces.StreamsServiceListener)}
}

// Name 返回服务名
func (s *MockStreamsService) Name() string {
	return interfaces.StreamsServiceName
}

// Subscribe 订阅
func (s *MockStreamsService) Subscribe(ctx context.Context, streamType string, l interfaces.StreamsServiceListener) error {
	s.mu.Lock()
	s.SubscribeCalls = append(s.SubscribeCalls, streamType)
	fn := s.SubscribeFunc
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, streamType, l); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[streamType] = append(s.listeners[streamType], l)
	return nil
}

// Unsubscribe 取消订阅
func (s *MockStreamsService) Unsubscribe(_ context.Context, streamType string, l interfaces.StreamsServiceListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UnsubscribeCalls = append(s.UnsubscribeCalls, streamType)
	ls := s.listeners[streamType]
	for i, existing := range ls {
		if existing == l {
			s.listeners[streamType] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	return nil
}

// Disconnect 断开流
func (s *MockStreamsService) Disconnect(_ context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DisconnectCalls = append(s.DisconnectCalls, streamID)
	return nil
}

// FireCreated 向订阅者推送 created 事件
func (s *MockStreamsService) FireCreated(streamType, streamID, contextID string) {
	for _, l := range s.snapshot(streamType) {
		l.Created(streamType, streamID, contextID)
	}
}

// FireDisposed 向订阅者推送 disposed 事件
func (s *MockStreamsService) FireDisposed(streamType, streamID string) {
	for _, l := range s.snapshot(streamType) {
		l.Disposed(streamType, streamID)
	}
}

// SubscribeCount 返回 Subscribe 调用次数
func (s *MockStreamsService) SubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SubscribeCalls)
}

// UnsubscribeCount 返回 Unsubscribe 调用次数
func (s *MockStreamsService) UnsubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.UnsubscribeCalls)
}

// Disconnected 返回被断开的流 ID
func (s *MockStreamsService) Disconnected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.DisconnectCalls...)
}

func (s *MockStreamsService) snapshot(streamType string) []interfaces.StreamsServiceListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interfaces.StreamsServiceListener(nil), s.listeners[streamType]...)
}

// ============================================================================
//                              MockPathMapService
// ============================================================================

// MockPathMapService 记录下发的路径映射
type MockPathMapService struct {
	mu sync.Mutex

	SetFunc func(ctx context.Context, rules []types.PathMapRule) error

	SetCalls [][]types.PathMapRule
}

var _ interfaces.PathMapService = (*MockPathMapService)(nil)

// Name 返回服务名
func (s *MockPathMapService) Name() string {
	return interfaces.PathMapServiceName
}

// Set 下发规则
func (s *MockPathMapService) Set(ctx context.Context, rules []types.PathMapRule) error {
	s.mu.Lock()
	s.SetCalls = append(s.SetCalls, rules)
	fn := s.SetFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, rules)
	}
	return nil
}

// Rules 返回最后一次下发的规则
func (s *MockPathMapService) Rules() []types.PathMapRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.SetCalls) == 0 {
		return nil
	}
	return s.SetCalls[len(s.SetCalls)-1]
}

// ============================================================================
//                              MockStreamListener
// ============================================================================

// MockStreamListener 记录流事件的上层监听器
type MockStreamListener struct {
	mu sync.Mutex

	hasContext bool

	// ConsumeFunc 决定是否消费 created 事件，nil 表示全部消费
	ConsumeFunc func(streamType, streamID, contextID string) bool

	CreatedEvents  []types.StreamKey
	DisposedEvents []types.StreamKey
	DisposeCalls   int
}

var (
	_ interfaces.StreamListener = (*MockStreamListener)(nil)
	_ interfaces.Disposable     = (*MockStreamListener)(nil)
)

// NewMockStreamListener 创建监听器
func NewMockStreamListener(hasContext bool) *MockStreamListener {
	return &MockStreamListener{hasContext: hasContext}
}

// SetContext 设置是否已有上下文
func (l *MockStreamListener) SetContext(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasContext = v
}

// HasContext 实现 StreamListener
func (l *MockStreamListener) HasContext() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasContext
}

// Created 记录 created 事件
func (l *MockStreamListener) Created(streamType, streamID, contextID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.CreatedEvents = append(l.CreatedEvents, types.StreamKey{Type: streamType, ID: streamID, Context: contextID})
}

// IsCreatedConsumed 实现 StreamListener
func (l *MockStreamListener) IsCreatedConsumed(streamType, streamID, contextID string) bool {
	if l.ConsumeFunc == nil {
		return true
	}
	return l.ConsumeFunc(streamType, streamID, contextID)
}

// Disposed 记录 disposed 事件
func (l *MockStreamListener) Disposed(streamType, streamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.DisposedEvents = append(l.DisposedEvents, types.StreamKey{Type: streamType, ID: streamID})
}

// Dispose 实现 Disposable
func (l *MockStreamListener) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.DisposeCalls++
}

// Creates 返回收到的 created 事件
func (l *MockStreamListener) Creates() []types.StreamKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.StreamKey(nil), l.CreatedEvents...)
}

// Disposes 返回收到的 disposed 事件
func (l *MockStreamListener) Disposes() []types.StreamKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.StreamKey(nil), l.DisposedEvents...)
}

// Disposals 返回 Dispose 调用次数
func (l *MockStreamListener) Disposals() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.DisposeCalls
}
