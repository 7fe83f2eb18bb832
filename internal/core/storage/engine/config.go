package engine

import (
	"fmt"
	"os"
	"time"
)

// Config 存储引擎配置
type Config struct {
	// Path 数据目录，InMemory 时忽略
	Path string

	// InMemory 纯内存模式，不落盘
	InMemory bool

	// ReadOnly 只读打开
	ReadOnly bool

	// SyncWrites 每次写入都同步到磁盘
	SyncWrites bool

	// GCInterval value log GC 间隔，0 表示不运行
	GCInterval time.Duration

	// GCDiscardRatio GC 回收阈值
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) *Config {
	return &Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	if c.GCInterval > 0 && (c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1) {
		return fmt.Errorf("%w: gc discard ratio must be in (0, 1)", ErrInvalidConfig)
	}
	return nil
}

// EnsureDir 确保数据目录存在
func (c *Config) EnsureDir() error {
	if c.InMemory {
		return nil
	}
	return os.MkdirAll(c.Path, 0o755)
}
