package config

import (
	"errors"
	"fmt"
	"time"
)

// ValueAddConfig 代理进程配置
type ValueAddConfig struct {
	// Entries 可用的 value-add 定义
	Entries []ValueAddEntry `json:"entries,omitempty"`

	// LaunchTimeout 等待进程输出就绪属性的超时
	LaunchTimeout Duration `json:"launch_timeout"`

	// RelaunchInterval 同一节点两次启动之间的最小间隔
	RelaunchInterval Duration `json:"relaunch_interval"`
}

// ValueAddEntry 单个 value-add 定义
type ValueAddEntry struct {
	// ID value-add 标识，与节点属性 ValueAdds 中的值对应
	ID string `json:"id"`

	// Command 可执行文件
	Command string `json:"command"`

	// Args 参数，"{host}" 与 "{port}" 会被替换为目标节点地址
	Args []string `json:"args,omitempty"`

	// Optional 启动失败时跳过而不是让打开失败
	Optional bool `json:"optional,omitempty"`
}

// DefaultValueAddConfig 返回默认 value-add 配置
func DefaultValueAddConfig() ValueAddConfig {
	return ValueAddConfig{
		LaunchTimeout:    Duration(10 * time.Second),
		RelaunchInterval: Duration(2 * time.Second),
	}
}

// Validate 验证 value-add 配置
func (c ValueAddConfig) Validate() error {
	if c.LaunchTimeout <= 0 {
		return errors.New("value_add: launch timeout must be positive")
	}
	if c.RelaunchInterval < 0 {
		return errors.New("value_add: relaunch interval must be non-negative")
	}
	seen := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		if e.ID == "" || e.Command == "" {
			return fmt.Errorf("value_add: entry %q needs id and command", e.ID)
		}
		if seen[e.ID] {
			return fmt.Errorf("value_add: duplicate entry %q", e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}
