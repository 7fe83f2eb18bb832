// Package types 定义 go-tcflink 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go     - PeerID, ChannelID
//   - peer.go    - Peer 节点描述、传输类型
//   - enums.go   - ChannelState, ConnectState, Action
//   - flags.go   - OpenFlags 通道打开标志
//   - stream.go  - 流事件标识
//   - events.go  - 事件总线事件类型
//   - errors.go  - 公共错误定义
package types
