package config

import (
	"fmt"

	"github.com/dep2p/go-tcflink/pkg/types"
)

// PathMapConfig 路径映射配置
type PathMapConfig struct {
	// Rules 通道打开后下发的规则
	Rules []types.PathMapRule `json:"rules,omitempty"`
}

// DefaultPathMapConfig 返回默认路径映射配置
func DefaultPathMapConfig() PathMapConfig {
	return PathMapConfig{}
}

// Validate 验证路径映射配置
func (c PathMapConfig) Validate() error {
	for i, r := range c.Rules {
		if r.Source == "" || r.Destination == "" {
			return fmt.Errorf("path_map: rule %d needs source and destination", i)
		}
	}
	return nil
}

// RulesFor 返回适用于节点的规则
func (c PathMapConfig) RulesFor(p types.Peer) []types.PathMapRule {
	var rules []types.PathMapRule
	for _, r := range c.Rules {
		if r.AppliesTo(p) {
			rules = append(rules, r)
		}
	}
	return rules
}
