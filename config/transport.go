package config

import (
	"errors"
	"time"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// EnableTCP 启用 TCP + yamux
	EnableTCP bool `json:"enable_tcp"`

	// EnableQUIC 启用 QUIC
	EnableQUIC bool `json:"enable_quic"`

	// DialTimeout 拨号超时（含握手）
	DialTimeout Duration `json:"dial_timeout"`

	// KeepAliveInterval 保活间隔
	KeepAliveInterval Duration `json:"keep_alive_interval"`

	// MaxIdleTimeout QUIC 空闲超时
	MaxIdleTimeout Duration `json:"max_idle_timeout"`

	// LocalID 握手时声明的本地标识
	LocalID string `json:"local_id,omitempty"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		EnableTCP:         true,
		EnableQUIC:        true,
		DialTimeout:       Duration(15 * time.Second),
		KeepAliveInterval: Duration(15 * time.Second),
		MaxIdleTimeout:    Duration(30 * time.Second),
		LocalID:           "tcflink",
	}
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if !c.EnableTCP && !c.EnableQUIC {
		return errors.New("transport: at least one transport must be enabled")
	}
	if c.DialTimeout <= 0 {
		return errors.New("transport: dial timeout must be positive")
	}
	if c.EnableQUIC && c.MaxIdleTimeout <= 0 {
		return errors.New("transport: quic max idle timeout must be positive")
	}
	return nil
}
