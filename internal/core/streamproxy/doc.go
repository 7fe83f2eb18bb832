// Package streamproxy 把多个上层流监听器复用到一个服务级订阅上
//
// 每个 (通道, 流类型) 只有一个 Proxy，它作为 StreamsServiceListener 订阅远端，
// 再把事件分发给上层 StreamListener。
//
// # created 事件的处理
//
//   - context 为空：远端不支持，立即断开该流
//   - 有监听器还没有上下文（HasContext 为 false）：缓存事件，按 (type, id, context) 去重
//   - 所有监听器都有上下文：逐个投递并询问 IsCreatedConsumed，无人消费则断开该流
//
// 缓存的事件由 ProcessDelayedCreatedEvents 按原始顺序重放一次。
//
// # 线程模型
//
// Proxy 与 Registry 的状态只在派发协程上访问。远端回调 Created / Disposed
// 可以在任意协程上到达，它们只负责把事件投递到派发协程。
package streamproxy
