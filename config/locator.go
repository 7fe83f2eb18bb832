package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// LocatorConfig 节点模型配置
type LocatorConfig struct {
	// StaticPeers 启动时加载的静态节点
	StaticPeers []types.Peer `json:"static_peers,omitempty"`

	// Persist 是否将通过 API 添加的节点持久化到 Storage.DataDir
	Persist bool `json:"persist"`

	// StateChangeTimeout 单次连接或断开作业的整体超时，0 表示不限制
	StateChangeTimeout Duration `json:"state_change_timeout"`
}

// DefaultLocatorConfig 返回默认节点模型配置
func DefaultLocatorConfig() LocatorConfig {
	return LocatorConfig{
		StateChangeTimeout: Duration(2 * time.Minute),
	}
}

// Validate 验证节点模型配置
func (c LocatorConfig) Validate() error {
	if c.StateChangeTimeout < 0 {
		return errors.New("locator: state change timeout must not be negative")
	}
	seen := make(map[types.PeerID]bool, len(c.StaticPeers))
	for _, p := range c.StaticPeers {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("locator: static peer %q: %w", p.ID, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("locator: duplicate static peer %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
