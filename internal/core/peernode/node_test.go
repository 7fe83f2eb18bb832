package peernode

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/eventbus"
	"github.com/dep2p/go-tcflink/internal/core/stepper"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
	"github.com/dep2p/go-tcflink/tests/mocks"
)

const waitFor = 2 * time.Second

var agent = types.Peer{ID: "agent-1", Host: "10.0.0.1", Port: 1534, Transport: types.TransportTCP}

type harness struct {
	t    *testing.T
	disp *dispatch.Dispatcher
	tr   *mocks.MockTransport
	bus  *eventbus.Bus
	mgr  *channelmgr.Manager
	node *Node

	mu     sync.Mutex
	states []types.ConnectState
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		disp: dispatch.New(),
		tr:   mocks.NewMockTransport(types.TransportTCP),
		bus:  eventbus.NewBus(),
	}
	t.Cleanup(func() { _ = h.disp.Close() })

	h.mgr = channelmgr.New(h.disp, []pkgif.Transport{h.tr}, channelmgr.WithEventBus(h.bus))
	t.Cleanup(func() { _ = h.mgr.Close() })

	h.node = New(agent, h.mgr, h.disp, opts...)
	h.node.AddListener(func(evt types.EvtConnectStateChanged) {
		h.mu.Lock()
		h.states = append(h.states, evt.To)
		h.mu.Unlock()
	})
	return h
}

func (h *harness) change(action types.Action) error {
	h.t.Helper()
	out := make(chan error, 1)
	require.NoError(h.t, h.node.ChangeConnectState(action, func(err error) { out <- err }))
	select {
	case err := <-out:
		return err
	case <-time.After(waitFor):
		h.t.Fatal("done not invoked")
		return nil
	}
}

// seen 等待通知全部投递后返回状态序列
func (h *harness) seen() []types.ConnectState {
	h.t.Helper()
	require.NoError(h.t, h.disp.InvokeAndWait(context.Background(), func() {}))
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ConnectState(nil), h.states...)
}

// ============================================================================
//                              连接 / 断开
// ============================================================================

// TestConnect 测试连接经过中间态并缓存服务
func TestConnect(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.change(types.ActionConnect))

	assert.Equal(t, types.StateConnected, h.node.State())
	assert.Equal(t, []types.ConnectState{
		types.StateConnectScheduled, types.StateConnecting, types.StateConnected,
	}, h.seen())
	assert.Equal(t, []string{pkgif.PathMapServiceName, pkgif.StreamsServiceName}, h.node.Services())

	ch, ok := h.node.Channel()
	require.True(t, ok)
	assert.Equal(t, h.tr.Channel(0).ID(), ch.ID())
	assert.Equal(t, 1, h.mgr.RefCount(agent.ID))
}

// TestDisconnect 测试断开释放通道并清除缓存
func TestDisconnect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.change(types.ActionConnect))

	require.NoError(t, h.change(types.ActionDisconnect))

	assert.Equal(t, types.StateDisconnected, h.node.State())
	assert.Empty(t, h.node.Services())
	_, ok := h.node.Channel()
	assert.False(t, ok)
	assert.Equal(t, 1, h.tr.Channel(0).CloseCount())
	assert.Equal(t, 0, h.mgr.ChannelCount())
	assert.Equal(t, []types.ConnectState{
		types.StateConnectScheduled, types.StateConnecting, types.StateConnected,
		types.StateDisconnectScheduled, types.StateDisconnecting, types.StateDisconnected,
	}, h.seen())
}

// TestDisconnect_FromUnknown 测试未知状态也可以断开
func TestDisconnect_FromUnknown(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.change(types.ActionDisconnect))
	assert.Equal(t, types.StateDisconnected, h.node.State())
	assert.Equal(t, 0, h.tr.DialCount())
}

// TestChangeConnectState_Illegal 测试非法动作
func TestChangeConnectState_Illegal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.change(types.ActionConnect))

	got := make(chan error, 1)
	err := h.node.ChangeConnectState(types.ActionConnect, func(err error) { got <- err })
	require.ErrorIs(t, err, ErrIllegalAction)

	select {
	case cbErr := <-got:
		assert.ErrorIs(t, cbErr, ErrIllegalAction)
	case <-time.After(waitFor):
		t.Fatal("done not invoked")
	}
	assert.Equal(t, types.StateConnected, h.node.State())
}

// TestChangeConnectState_ScheduledSynchronously 测试计划态同步生效
func TestChangeConnectState_ScheduledSynchronously(t *testing.T) {
	h := newHarness(t)
	h.tr.Hold()

	require.NoError(t, h.node.ChangeConnectState(types.ActionConnect, nil))
	state := h.node.State()
	assert.True(t, state == types.StateConnectScheduled || state == types.StateConnecting, state.String())

	// 中间态不接受新的动作
	require.ErrorIs(t, h.node.ChangeConnectState(types.ActionDisconnect, nil), ErrIllegalAction)

	h.tr.Release()
	require.Eventually(t, func() bool { return h.node.State() == types.StateConnected }, waitFor, time.Millisecond)
}

// ============================================================================
//                              失败处理
// ============================================================================

// TestConnect_FailureAllowsRetry 测试连接失败回到 DISCONNECTED 后可以重试
func TestConnect_FailureAllowsRetry(t *testing.T) {
	h := newHarness(t)
	errDial := errors.New("refused")
	h.tr.DialFunc = func(context.Context, types.Peer) (pkgif.Channel, error) { return nil, errDial }

	err := h.change(types.ActionConnect)
	require.ErrorIs(t, err, errDial)
	assert.Equal(t, types.StateDisconnected, h.node.State())

	h.tr.DialFunc = nil
	require.NoError(t, h.change(types.ActionConnect))
	assert.Equal(t, types.StateConnected, h.node.State())
}

// TestConnect_RollbackReleasesChannel 测试后续步骤失败时回滚已打开的通道
func TestConnect_RollbackReleasesChannel(t *testing.T) {
	errStep := errors.New("handshake failed")
	h := newHarness(t, WithSteps(types.ActionConnect, func(n *Node) []stepper.Step {
		return append(DefaultConnectSteps(n), &stepper.FuncStep{
			StepName: "verify",
			Run: func(context.Context, *stepper.Properties) error {
				return errStep
			},
		})
	}))

	err := h.change(types.ActionConnect)
	require.ErrorIs(t, err, errStep)

	assert.Equal(t, types.StateDisconnected, h.node.State())
	assert.Empty(t, h.node.Services())
	assert.Equal(t, 0, h.mgr.ChannelCount())
	assert.Equal(t, 1, h.tr.Channel(0).CloseCount())
}

// TestConnect_JobTimeout 测试作业超时后回滚并回到 DISCONNECTED
func TestConnect_JobTimeout(t *testing.T) {
	h := newHarness(t, WithJobTimeout(50*time.Millisecond), WithSteps(types.ActionConnect, func(n *Node) []stepper.Step {
		return append(DefaultConnectSteps(n), &stepper.FuncStep{
			StepName: "wait-agent",
			Run: func(ctx context.Context, _ *stepper.Properties) error {
				<-ctx.Done()
				return ctx.Err()
			},
		})
	}))

	err := h.change(types.ActionConnect)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, types.StateDisconnected, h.node.State())
	require.Eventually(t, func() bool { return h.mgr.ChannelCount() == 0 }, waitFor, time.Millisecond)
}

// TestDisconnect_FailureKeepsConnected 测试断开失败且通道存活时回到 CONNECTED
func TestDisconnect_FailureKeepsConnected(t *testing.T) {
	errStep := errors.New("busy")
	h := newHarness(t)
	require.NoError(t, h.change(types.ActionConnect))

	h.node.RegisterSteps(types.ActionDisconnect, func(n *Node) []stepper.Step {
		return []stepper.Step{&stepper.FuncStep{
			StepName: "detach-debugger",
			Run: func(context.Context, *stepper.Properties) error {
				return errStep
			},
		}}
	})

	err := h.change(types.ActionDisconnect)
	require.ErrorIs(t, err, errStep)
	assert.Equal(t, types.StateConnected, h.node.State())
	_, ok := h.node.Channel()
	assert.True(t, ok)
	assert.NotEmpty(t, h.node.Services())
}

// ============================================================================
//                              意外关闭
// ============================================================================

// TestChannelClosedUnsolicited 测试通道意外关闭后节点断开并清除服务
func TestChannelClosedUnsolicited(t *testing.T) {
	h := newHarness(t)
	sub, err := h.bus.Subscribe(new(types.EvtChannelClosed))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, h.change(types.ActionConnect))
	h.tr.Channel(0).Drop(errors.New("reset by peer"))

	select {
	case e := <-sub.Out():
		evt := e.(types.EvtChannelClosed)
		require.True(t, evt.Unsolicited)
		h.node.HandleChannelClosed(evt)
	case <-time.After(waitFor):
		t.Fatal("no close event")
	}

	assert.Equal(t, types.StateDisconnected, h.node.State())
	assert.Empty(t, h.node.Services())

	// 可以重新连接
	require.NoError(t, h.change(types.ActionConnect))
	assert.Equal(t, 2, h.tr.DialCount())
}

// TestConnect_ChannelClosedDuringJob 测试打开步骤之后通道被关闭时连接失败并回到 DISCONNECTED
func TestConnect_ChannelClosedDuringJob(t *testing.T) {
	h := newHarness(t)
	h.node.RegisterSteps(types.ActionConnect, func(n *Node) []stepper.Step {
		return append(DefaultConnectSteps(n), &stepper.FuncStep{
			StepName: "attach",
			Run: func(_ context.Context, props *stepper.Properties) error {
				ch, ok := stepper.Value[pkgif.Channel](props, PropChannel)
				if !ok {
					return errors.New("no channel")
				}
				h.tr.Channel(0).Drop(errors.New("reset by peer"))
				n.HandleChannelClosed(types.EvtChannelClosed{
					PeerID: agent.ID, ChannelID: ch.ID(), Unsolicited: true,
				})
				return nil
			},
		})
	})

	err := h.change(types.ActionConnect)
	require.ErrorIs(t, err, types.ErrChannelClosed)

	assert.Equal(t, types.StateDisconnected, h.node.State())
	assert.Empty(t, h.node.Services())
	_, ok := h.node.Channel()
	assert.False(t, ok)

	require.Eventually(t, func() bool { return h.mgr.ChannelCount() == 0 }, waitFor, time.Millisecond)
	h.node.RegisterSteps(types.ActionConnect, DefaultConnectSteps)
	require.NoError(t, h.change(types.ActionConnect))
	assert.Equal(t, types.StateConnected, h.node.State())
}

// TestChannelClosed_WithoutEvent 测试没有收到关闭事件时节点仍跟随通道关闭
func TestChannelClosed_WithoutEvent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.change(types.ActionConnect))

	h.tr.Channel(0).Drop(errors.New("reset by peer"))

	assert.Equal(t, types.StateDisconnected, h.node.State())
	assert.Empty(t, h.node.Services())
	_, ok := h.node.Channel()
	assert.False(t, ok)
	assert.Equal(t, []types.ConnectState{
		types.StateConnectScheduled, types.StateConnecting, types.StateConnected, types.StateDisconnected,
	}, h.seen())
}

// TestChannelClosed_IgnoresOtherChannels 测试忽略无关通道与主动关闭
func TestChannelClosed_IgnoresOtherChannels(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.change(types.ActionConnect))
	ch, _ := h.node.Channel()

	h.node.HandleChannelClosed(types.EvtChannelClosed{PeerID: agent.ID, ChannelID: "other", Unsolicited: true})
	h.node.HandleChannelClosed(types.EvtChannelClosed{PeerID: agent.ID, ChannelID: ch.ID()})

	assert.Equal(t, types.StateConnected, h.node.State())
}

// ============================================================================
//                              释放
// ============================================================================

// TestDispose 测试释放节点归还通道
func TestDispose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.change(types.ActionConnect))

	h.node.Dispose()
	assert.Equal(t, types.StateDisconnected, h.node.State())
	require.Eventually(t, func() bool { return h.mgr.ChannelCount() == 0 }, waitFor, time.Millisecond)

	require.ErrorIs(t, h.node.ChangeConnectState(types.ActionConnect, nil), ErrDisposed)
}

// TestEmitter 测试状态变化以事件发出
func TestEmitter(t *testing.T) {
	bus := eventbus.NewBus()
	em, err := bus.Emitter(new(types.EvtConnectStateChanged))
	require.NoError(t, err)
	sub, err := bus.Subscribe(new(types.EvtConnectStateChanged))
	require.NoError(t, err)
	defer sub.Close()

	h := newHarness(t, WithEmitter(em))
	require.NoError(t, h.change(types.ActionConnect))

	var last types.EvtConnectStateChanged
	for i := 0; i < 3; i++ {
		select {
		case e := <-sub.Out():
			last = e.(types.EvtConnectStateChanged)
		case <-time.After(waitFor):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, agent.ID, last.PeerID)
	assert.Equal(t, types.StateConnecting, last.From)
	assert.Equal(t, types.StateConnected, last.To)
}
