// Package eventbus 实现类型安全的事件总线
//
// 事件按 Go 类型路由：Subscribe(new(types.EvtChannelClosed)) 只接收该类型事件。
// 订阅者缓冲区满时事件被丢弃并周期性告警，发射者永不阻塞。
// 以 ReplayLast 创建的发射器会把最后一个事件补发给新订阅者。
package eventbus
