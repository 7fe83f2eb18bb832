package config

import (
	"errors"
	"time"
)

// ChannelConfig 通道管理配置
type ChannelConfig struct {
	// OpenTimeout 打开通道（含 value-add 启动与重定向）的超时
	OpenTimeout Duration `json:"open_timeout"`

	// CloseTimeout 等待通道关闭的超时
	CloseTimeout Duration `json:"close_timeout"`

	// ServiceCallTimeout 远端服务调用（订阅流、下发路径映射）的超时
	ServiceCallTimeout Duration `json:"service_call_timeout"`
}

// DefaultChannelConfig 返回默认通道配置
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		OpenTimeout:        Duration(30 * time.Second),
		CloseTimeout:       Duration(10 * time.Second),
		ServiceCallTimeout: Duration(10 * time.Second),
	}
}

// Validate 验证通道配置
func (c ChannelConfig) Validate() error {
	if c.OpenTimeout <= 0 {
		return errors.New("channel: open timeout must be positive")
	}
	if c.CloseTimeout <= 0 {
		return errors.New("channel: close timeout must be positive")
	}
	if c.ServiceCallTimeout <= 0 {
		return errors.New("channel: service call timeout must be positive")
	}
	return nil
}
