package streamproxy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/pkg/types"
	"github.com/dep2p/go-tcflink/tests/mocks"
)

func newDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	d := dispatch.New()
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// on 在派发协程上同步执行 fn
func on(t *testing.T, d *dispatch.Dispatcher, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.InvokeAndWait(ctx, fn))
}

func key(id, ctx string) types.StreamKey {
	return types.StreamKey{Type: "Terminal", ID: id, Context: ctx}
}

// TestProxy_DelaysUntilContext 测试监听器没有上下文时缓存 created 事件
func TestProxy_DelaysUntilContext(t *testing.T) {
	d := newDispatcher(t)
	svc := mocks.NewMockStreamsService()
	p := NewProxy(d, svc, "Terminal", time.Second)

	ready := mocks.NewMockStreamListener(true)
	waiting := mocks.NewMockStreamListener(false)

	on(t, d, func() {
		p.AddListener(ready)
		p.AddListener(waiting)
		p.HandleCreated("Terminal", "s1", "ctx1")
		p.HandleCreated("Terminal", "s2", "ctx2")
		p.HandleCreated("Terminal", "s1", "ctx1")
	})

	assert.Empty(t, ready.Creates(), "no listener sees created before all have context")
	assert.Empty(t, waiting.Creates())
	on(t, d, func() {
		assert.Equal(t, []types.StreamKey{key("s1", "ctx1"), key("s2", "ctx2")}, p.Delayed())
	})

	waiting.SetContext(true)
	on(t, d, func() {
		p.ProcessDelayedCreatedEvents()
		p.ProcessDelayedCreatedEvents()
	})

	want := []types.StreamKey{key("s1", "ctx1"), key("s2", "ctx2")}
	assert.Equal(t, want, ready.Creates())
	assert.Equal(t, want, waiting.Creates())
	on(t, d, func() { assert.Empty(t, p.Delayed()) })
}

// TestProxy_ReplayRebuffersWhenStillWaiting 测试重放时仍缺少上下文的事件重新缓存
func TestProxy_ReplayRebuffersWhenStillWaiting(t *testing.T) {
	d := newDispatcher(t)
	p := NewProxy(d, mocks.NewMockStreamsService(), "Terminal", time.Second)
	l := mocks.NewMockStreamListener(false)

	on(t, d, func() {
		p.AddListener(l)
		p.HandleCreated("Terminal", "s1", "c")
		p.ProcessDelayedCreatedEvents()
		assert.Equal(t, []types.StreamKey{key("s1", "c")}, p.Delayed())
	})
	assert.Empty(t, l.Creates())
}

// TestProxy_EmptyContextDisconnects 测试不带上下文的流被断开
func TestProxy_EmptyContextDisconnects(t *testing.T) {
	d := newDispatcher(t)
	svc := mocks.NewMockStreamsService()
	p := NewProxy(d, svc, "Terminal", time.Second)
	l := mocks.NewMockStreamListener(false)

	on(t, d, func() {
		p.AddListener(l)
		p.HandleCreated("Terminal", "old", "")
		assert.Empty(t, p.Delayed())
	})

	require.Eventually(t, func() bool { return len(svc.Disconnected()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"old"}, svc.Disconnected())
	assert.Empty(t, l.Creates())
}

// TestProxy_UnconsumedDisconnects 测试无人消费的流被断开
func TestProxy_UnconsumedDisconnects(t *testing.T) {
	d := newDispatcher(t)
	svc := mocks.NewMockStreamsService()
	p := NewProxy(d, svc, "Terminal", time.Second)

	l := mocks.NewMockStreamListener(true)
	l.ConsumeFunc = func(_, id, _ string) bool { return id == "mine" }

	on(t, d, func() {
		p.AddListener(l)
		p.HandleCreated("Terminal", "mine", "c")
		p.HandleCreated("Terminal", "other", "c")
	})

	require.Eventually(t, func() bool { return len(svc.Disconnected()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"other"}, svc.Disconnected())
	assert.Len(t, l.Creates(), 2)
}

// TestProxy_Disposed 测试 disposed 移除缓存并分发
func TestProxy_Disposed(t *testing.T) {
	d := newDispatcher(t)
	p := NewProxy(d, mocks.NewMockStreamsService(), "Terminal", time.Second)
	l := mocks.NewMockStreamListener(false)

	on(t, d, func() {
		p.AddListener(l)
		p.HandleCreated("Terminal", "s1", "c1")
		p.HandleCreated("Terminal", "s2", "c2")
		p.HandleDisposed("Terminal", "s1")
		assert.Equal(t, []types.StreamKey{key("s2", "c2")}, p.Delayed())
	})
	assert.Equal(t, []types.StreamKey{{Type: "Terminal", ID: "s1"}}, l.Disposes())
}

// TestProxy_Dispose 测试释放监听器
func TestProxy_Dispose(t *testing.T) {
	d := newDispatcher(t)
	p := NewProxy(d, mocks.NewMockStreamsService(), "Terminal", time.Second)
	l1 := mocks.NewMockStreamListener(false)
	l2 := mocks.NewMockStreamListener(true)

	on(t, d, func() {
		p.AddListener(l1)
		assert.False(t, p.AddListener(l1))
		p.AddListener(l2)
		p.HandleCreated("Terminal", "s1", "c1")
		p.Dispose()
		p.Dispose()
		p.HandleCreated("Terminal", "s2", "c2")

		assert.True(t, p.IsDisposed())
		assert.Equal(t, 0, p.Len())
		assert.Empty(t, p.Delayed())
	})
	assert.Equal(t, 1, l1.Disposals())
	assert.Equal(t, 1, l2.Disposals())
}

// TestProxy_RemoteEventsArePosted 测试远端回调经派发协程到达
func TestProxy_RemoteEventsArePosted(t *testing.T) {
	d := newDispatcher(t)
	p := NewProxy(d, mocks.NewMockStreamsService(), "Terminal", time.Second)
	l := mocks.NewMockStreamListener(true)
	on(t, d, func() { p.AddListener(l) })

	go p.Created("Terminal", "s1", "c1")
	require.Eventually(t, func() bool { return len(l.Creates()) == 1 }, time.Second, 5*time.Millisecond)

	p.Created("Other", "s2", "c2")
	p.Disposed("Terminal", "s1")
	require.Eventually(t, func() bool { return len(l.Disposes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, l.Creates(), 1)
}
