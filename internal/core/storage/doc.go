// Package storage 提供节点信息的持久化存储
//
// 存储分两层：
//
//	engine.Engine  - 键值引擎接口（badger 实现）
//	kv.Store       - 带前缀隔离的 KV 存储，供各组件使用
//
// 键空间约定：
//   - l/p/ - Locator 静态节点
package storage
