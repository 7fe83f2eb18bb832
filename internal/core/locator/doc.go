// Package locator 维护已知节点及其连接状态机
//
// 节点来源有两类：
//   - 配置中的静态节点，启动时加载，不持久化
//   - 通过 API 添加的节点，开启持久化时写入存储（键前缀 l/p/）并在下次启动时恢复
//
// 每个节点对应一个 peernode.Node。管理器发出的 EvtChannelClosed 事件被路由到
// 对应节点，节点据此处理意外断开。移除节点会释放其状态机并归还通道。
//
// 节点增删改以 EvtPeerAdded / EvtPeerChanged / EvtPeerRemoved 事件发出。
package locator
