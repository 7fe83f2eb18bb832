// Package peernode 实现单个节点的连接状态机
//
// 每个节点在 UNKNOWN / DISCONNECTED / CONNECTED 三个稳定态之间迁移，
// 迁移必须经过 *_SCHEDULED 与 *ING 中间态：
//
//	UNKNOWN              → DISCONNECTED, CONNECT_SCHEDULED, DISCONNECT_SCHEDULED
//	DISCONNECTED         → CONNECT_SCHEDULED
//	CONNECT_SCHEDULED    → CONNECTING, DISCONNECTED
//	CONNECTING           → CONNECTED, DISCONNECTED
//	CONNECTED            → DISCONNECT_SCHEDULED, DISCONNECTED
//	DISCONNECT_SCHEDULED → DISCONNECTING, CONNECTED
//	DISCONNECTING        → DISCONNECTED, CONNECTED
//
// ChangeConnectState 同步进入 *_SCHEDULED，随后在后台协程中以 stepper 作业执行动作的步骤。
// 连接失败时先回滚已完成的步骤再回到 DISCONNECTED；断开失败时若通道仍然存活则回到 CONNECTED。
//
// 状态字段由互斥锁保护，状态变化通知经派发协程按迁移顺序投递。
package peernode
