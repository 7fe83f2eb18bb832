package config

import (
	"errors"
	"path/filepath"
	"time"
)

// StorageConfig 本地存储配置
//
// 仅在 Locator.Persist 开启时使用，数据库位于 ${DataDir}/tcflink.db。
type StorageConfig struct {
	DataDir string `json:"data_dir"`

	// InMemory 不落盘，进程退出后数据丢失
	InMemory bool `json:"in_memory,omitempty"`

	// SyncWrites 每次写入后 fsync
	SyncWrites bool `json:"sync_writes"`

	// GCInterval value log 回收周期，0 关闭
	GCInterval Duration `json:"gc_interval"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:    "./data",
		SyncWrites: true,
		GCInterval: Duration(10 * time.Minute),
	}
}

// Validate 验证存储配置的有效性
func (c StorageConfig) Validate() error {
	if c.DataDir == "" && !c.InMemory {
		return errors.New("storage: data_dir cannot be empty")
	}
	if c.GCInterval < 0 {
		return errors.New("storage: gc_interval must not be negative")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c StorageConfig) DBPath() string {
	if c.InMemory {
		return ""
	}
	return filepath.Join(c.DataDir, "tcflink.db")
}
