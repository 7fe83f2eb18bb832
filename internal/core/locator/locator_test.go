package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-tcflink/internal/core/channelmgr"
	"github.com/dep2p/go-tcflink/internal/core/dispatch"
	"github.com/dep2p/go-tcflink/internal/core/eventbus"
	"github.com/dep2p/go-tcflink/internal/core/storage"
	"github.com/dep2p/go-tcflink/internal/core/storage/engine"
	"github.com/dep2p/go-tcflink/internal/core/storage/kv"
	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
	"github.com/dep2p/go-tcflink/tests/mocks"
)

const waitFor = 2 * time.Second

var (
	staticPeer = types.Peer{ID: "static-1", Host: "10.0.0.1", Port: 1534, Transport: types.TransportTCP}
	dynPeer    = types.Peer{ID: "dyn-1", Host: "10.0.0.2", Port: 1534, Transport: types.TransportQUIC}
)

type harness struct {
	t    *testing.T
	disp *dispatch.Dispatcher
	bus  *eventbus.Bus
	tr   *mocks.MockTransport
	mgr  *channelmgr.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		disp: dispatch.New(),
		bus:  eventbus.NewBus(),
		tr:   mocks.NewMockTransport(types.TransportTCP),
	}
	t.Cleanup(func() { _ = h.disp.Close() })

	quic := mocks.NewMockTransport(types.TransportQUIC)
	h.mgr = channelmgr.New(h.disp, []pkgif.Transport{h.tr, quic}, channelmgr.WithEventBus(h.bus))
	t.Cleanup(func() { _ = h.mgr.Close() })
	return h
}

func (h *harness) locator(opts ...Option) *Locator {
	h.t.Helper()
	l, err := New(h.mgr, h.disp, h.bus, opts...)
	require.NoError(h.t, err)
	require.NoError(h.t, l.Start(context.Background()))
	h.t.Cleanup(func() { _ = l.Close() })
	return l
}

func newStore(t *testing.T) (engine.Engine, *kv.Store) {
	t.Helper()
	eng, err := storage.NewMemory()
	require.NoError(t, err)
	require.NoError(t, eng.Start())
	t.Cleanup(func() { _ = eng.Close() })
	return eng, storage.NewKVStore(eng, StorePrefix)
}

func waitDone(t *testing.T) (pkgif.Done, func() error) {
	out := make(chan error, 1)
	return func(err error) { out <- err }, func() error {
		t.Helper()
		select {
		case err := <-out:
			return err
		case <-time.After(waitFor):
			t.Fatal("done not invoked")
			return nil
		}
	}
}

// ============================================================================
//                              节点管理
// ============================================================================

// TestLocator_StaticPeers 测试加载静态节点
func TestLocator_StaticPeers(t *testing.T) {
	h := newHarness(t)
	l := h.locator(WithStaticPeers([]types.Peer{staticPeer}))

	p, ok := l.Peer(staticPeer.ID)
	require.True(t, ok)
	assert.True(t, p.Equal(staticPeer))
	assert.True(t, l.IsStatic(staticPeer.ID))

	node, ok := l.Node(staticPeer.ID)
	require.True(t, ok)
	assert.Equal(t, types.StateUnknown, node.State())

	assert.ErrorIs(t, l.RemovePeer(staticPeer.ID), ErrStaticPeer)
	assert.ErrorIs(t, l.UpdatePeer(staticPeer), ErrStaticPeer)
}

// TestLocator_AddUpdateRemove 测试节点增删改与事件
func TestLocator_AddUpdateRemove(t *testing.T) {
	h := newHarness(t)
	added, err := h.bus.Subscribe(new(types.EvtPeerAdded))
	require.NoError(t, err)
	changed, err := h.bus.Subscribe(new(types.EvtPeerChanged))
	require.NoError(t, err)
	removed, err := h.bus.Subscribe(new(types.EvtPeerRemoved))
	require.NoError(t, err)

	l := h.locator()

	require.NoError(t, l.AddPeer(dynPeer))
	require.ErrorIs(t, l.AddPeer(dynPeer), ErrPeerExists)
	require.ErrorIs(t, l.AddPeer(types.Peer{ID: "bad"}), types.ErrInvalidPeer)

	updated := dynPeer.Clone()
	updated.Port = 2000
	require.NoError(t, l.UpdatePeer(updated))
	p, _ := l.Peer(dynPeer.ID)
	assert.Equal(t, 2000, p.Port)

	require.NoError(t, l.RemovePeer(dynPeer.ID))
	_, ok := l.Peer(dynPeer.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, l.RemovePeer(dynPeer.ID), types.ErrPeerNotFound)
	assert.ErrorIs(t, l.UpdatePeer(updated), types.ErrPeerNotFound)

	for _, sub := range []pkgif.Subscription{added, changed, removed} {
		select {
		case <-sub.Out():
		case <-time.After(waitFor):
			t.Fatal("missing locator event")
		}
	}
}

// TestLocator_Persistence 测试添加的节点在重启后恢复
func TestLocator_Persistence(t *testing.T) {
	_, store := newStore(t)

	h := newHarness(t)
	l := h.locator(WithStore(store), WithStaticPeers([]types.Peer{staticPeer}))
	require.NoError(t, l.AddPeer(dynPeer))
	require.NoError(t, l.Close())

	has, err := store.Has(string(dynPeer.ID))
	require.NoError(t, err)
	assert.True(t, has)
	has, err = store.Has(string(staticPeer.ID))
	require.NoError(t, err)
	assert.False(t, has, "static peers are not persisted")

	l2 := h.locator(WithStore(store))
	p, ok := l2.Peer(dynPeer.ID)
	require.True(t, ok)
	assert.True(t, p.Equal(dynPeer))
	assert.False(t, l2.IsStatic(dynPeer.ID))

	require.NoError(t, l2.RemovePeer(dynPeer.ID))
	has, err = store.Has(string(dynPeer.ID))
	require.NoError(t, err)
	assert.False(t, has)
}

// TestLocator_ClosedRejectsAdd 测试关闭后拒绝添加
func TestLocator_ClosedRejectsAdd(t *testing.T) {
	h := newHarness(t)
	l := h.locator()
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	assert.ErrorIs(t, l.AddPeer(dynPeer), ErrLocatorClosed)
}

// ============================================================================
//                              连接
// ============================================================================

// TestLocator_ConnectDisconnect 测试通过 Locator 连接与断开
func TestLocator_ConnectDisconnect(t *testing.T) {
	h := newHarness(t)
	l := h.locator(WithStaticPeers([]types.Peer{staticPeer}))

	done, wait := waitDone(t)
	require.NoError(t, l.Connect(staticPeer.ID, done))
	require.NoError(t, wait())
	node, _ := l.Node(staticPeer.ID)
	assert.Equal(t, types.StateConnected, node.State())
	assert.Equal(t, 1, h.mgr.RefCount(staticPeer.ID))

	done, wait = waitDone(t)
	require.NoError(t, l.Disconnect(staticPeer.ID, done))
	require.NoError(t, wait())
	assert.Equal(t, types.StateDisconnected, node.State())
	assert.Equal(t, 0, h.mgr.ChannelCount())

	err := l.Connect("missing", nil)
	assert.ErrorIs(t, err, types.ErrPeerNotFound)
}

// TestLocator_RoutesUnsolicitedClose 测试意外关闭被路由到节点
func TestLocator_RoutesUnsolicitedClose(t *testing.T) {
	h := newHarness(t)
	l := h.locator(WithStaticPeers([]types.Peer{staticPeer}))

	done, wait := waitDone(t)
	require.NoError(t, l.Connect(staticPeer.ID, done))
	require.NoError(t, wait())

	h.tr.Channel(0).Drop(errors.New("agent crashed"))

	node, _ := l.Node(staticPeer.ID)
	require.Eventually(t, func() bool {
		return node.State() == types.StateDisconnected
	}, waitFor, time.Millisecond)
	assert.Empty(t, node.Services())
}

// TestLocator_RemoveDisconnects 测试移除节点时归还通道
func TestLocator_RemoveDisconnects(t *testing.T) {
	h := newHarness(t)
	l := h.locator()
	peer := dynPeer.Clone()
	peer.Transport = types.TransportTCP
	require.NoError(t, l.AddPeer(peer))

	done, wait := waitDone(t)
	require.NoError(t, l.Connect(peer.ID, done))
	require.NoError(t, wait())
	require.Equal(t, 1, h.mgr.ChannelCount())

	require.NoError(t, l.RemovePeer(peer.ID))
	require.Eventually(t, func() bool { return h.mgr.ChannelCount() == 0 }, waitFor, time.Millisecond)
	assert.Equal(t, 1, h.tr.Channel(0).CloseCount())
}
