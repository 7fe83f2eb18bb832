package config

import (
	"errors"
	"net"
)

// DiagnosticsConfig 诊断配置
type DiagnosticsConfig struct {
	// EnableIntrospect 启用本地自省 HTTP 服务
	EnableIntrospect bool `json:"enable_introspect"`

	// IntrospectAddr 自省服务监听地址，默认 127.0.0.1:6060
	IntrospectAddr string `json:"introspect_addr,omitempty"`
}

// DefaultDiagnosticsConfig 返回默认诊断配置
func DefaultDiagnosticsConfig() DiagnosticsConfig {
	return DiagnosticsConfig{
		IntrospectAddr: "127.0.0.1:6060",
	}
}

// Validate 验证诊断配置
func (c DiagnosticsConfig) Validate() error {
	if !c.EnableIntrospect || c.IntrospectAddr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.IntrospectAddr); err != nil {
		return errors.New("diagnostics: introspect_addr must be host:port")
	}
	return nil
}
