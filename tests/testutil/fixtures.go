// Package testutil 提供测试辅助工具
package testutil

import "time"

// 测试数据固件
//
// 提供测试中常用的常量值，确保测试一致性。

const (
	// DefaultAgentID 默认测试 Agent 标识
	DefaultAgentID = "test-agent"

	// DefaultTimeout 默认等待超时
	DefaultTimeout = 10 * time.Second

	// LoopbackHost 本地回环地址
	LoopbackHost = "127.0.0.1"
)
