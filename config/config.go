// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载和保存。
//
//	cfg := config.NewConfig()
//	cfg.Channel.OpenTimeout = config.Duration(10 * time.Second)
//
//	cfg, err := config.LoadFile("tcflink.json")
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config 是 go-tcflink 的完整配置结构
//
//   - Channel: 通道管理（超时、派发队列）
//   - Transport: TCP / QUIC 传输
//   - ValueAdd: 代理进程
//   - Locator: 静态节点与持久化
//   - PathMap: 路径映射规则
//   - Storage: 数据目录
//   - Metrics: 指标
//   - Diagnostics: 自省服务
type Config struct {
	Channel     ChannelConfig     `json:"channel"`
	Transport   TransportConfig   `json:"transport"`
	ValueAdd    ValueAddConfig    `json:"value_add"`
	Locator     LocatorConfig     `json:"locator"`
	PathMap     PathMapConfig     `json:"path_map"`
	Storage     StorageConfig     `json:"storage"`
	Metrics     MetricsConfig     `json:"metrics"`
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Channel:     DefaultChannelConfig(),
		Transport:   DefaultTransportConfig(),
		ValueAdd:    DefaultValueAddConfig(),
		Locator:     DefaultLocatorConfig(),
		PathMap:     DefaultPathMapConfig(),
		Storage:     DefaultStorageConfig(),
		Metrics:     DefaultMetricsConfig(),
		Diagnostics: DefaultDiagnosticsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Channel.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.ValueAdd.Validate(); err != nil {
		return err
	}
	if err := c.Locator.Validate(); err != nil {
		return err
	}
	if err := c.PathMap.Validate(); err != nil {
		return err
	}
	if err := c.Diagnostics.Validate(); err != nil {
		return err
	}
	if c.Locator.Persist {
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FromJSON 从 JSON 解析配置，缺省字段使用默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFile 从文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}
