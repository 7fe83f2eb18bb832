// Package dispatch 实现单消费者派发队列
//
// 通道管理器与流代理的全部状态只在派发协程上读写，
// 不使用锁保护。其他协程通过以下方式与之交互：
//
//   - InvokeLater: 投递任务，立即返回
//   - InvokeAndWait: 投递任务并阻塞等待执行完毕
//   - InvokeAfter: 延迟投递，用于超时处理
//
// 同一协程投递的任务按投递顺序执行。
//
// # 注意
//
// InvokeAndWait 不能在派发协程内调用，否则会死锁。
// 派发协程内的代码应直接调用内部方法。
package dispatch
