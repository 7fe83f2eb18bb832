package channelmgr

import (
	"context"
	"sort"
	"time"

	pkgif "github.com/dep2p/go-tcflink/pkg/interfaces"
	"github.com/dep2p/go-tcflink/pkg/types"
)

// 以下查询方法阻塞等待派发协程，不能在派发协程上调用。

// Channel 返回到节点的共享通道
func (m *Manager) Channel(peerID types.PeerID) (pkgif.Channel, bool) {
	var ch pkgif.Channel
	m.query(func() {
		if rec := m.shared[peerID]; rec != nil && !rec.closing {
			ch = rec.ch
		}
	})
	return ch, ch != nil
}

// RefCount 返回到节点的共享通道的引用计数
func (m *Manager) RefCount(peerID types.PeerID) int {
	var refs int
	m.query(func() {
		if rec := m.shared[peerID]; rec != nil {
			refs = rec.refs
		}
	})
	return refs
}

// ForcedChannels 返回到节点的私有通道
func (m *Manager) ForcedChannels(peerID types.PeerID) []pkgif.Channel {
	var chs []pkgif.Channel
	m.query(func() {
		for _, rec := range m.forced[peerID] {
			if !rec.closing {
				chs = append(chs, rec.ch)
			}
		}
	})
	return chs
}

// IsOpening 到节点的共享打开是否在进行中
func (m *Manager) IsOpening(peerID types.PeerID) bool {
	var opening bool
	m.query(func() {
		_, opening = m.pendingOpen[peerID]
	})
	return opening
}

// ChannelCount 返回受管理的通道数量
func (m *Manager) ChannelCount() int {
	var n int
	m.query(func() { n = len(m.records) })
	return n
}

// ChannelInfo 受管理通道的快照
type ChannelInfo struct {
	Peer     types.PeerID       `json:"peer"`
	Channel  types.ChannelID    `json:"channel"`
	Remote   string             `json:"remote"`
	State    types.ChannelState `json:"state"`
	Forced   bool               `json:"forced"`
	Refs     int                `json:"refs"`
	Closing  bool               `json:"closing"`
	OpenedAt time.Time          `json:"opened_at"`
}

// Channels 返回全部受管理通道的快照，按节点排序
func (m *Manager) Channels() []ChannelInfo {
	var out []ChannelInfo
	m.query(func() {
		out = make([]ChannelInfo, 0, len(m.records))
		for _, rec := range m.records {
			out = append(out, ChannelInfo{
				Peer:     rec.peer.ID,
				Channel:  rec.ch.ID(),
				Remote:   rec.ch.RemotePeer().Addr(),
				State:    rec.ch.State(),
				Forced:   rec.forced,
				Refs:     rec.refs,
				Closing:  rec.closing,
				OpenedAt: rec.opened,
			})
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peer != out[j].Peer {
			return out[i].Peer < out[j].Peer
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

func (m *Manager) query(fn func()) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CloseTimeout.Duration())
	defer cancel()
	if err := m.disp.InvokeAndWait(ctx, fn); err != nil {
		logger.Debug("查询失败", "error", err)
	}
}
