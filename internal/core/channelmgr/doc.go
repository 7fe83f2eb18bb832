// Package channelmgr 实现共享通道的引用计数管理
//
// # 共享通道与私有通道
//
// OpenChannel 的 flags 为 nil 或全为 false 时走共享路径：到同一节点的请求复用一条通道，
// 每次成功打开引用计数加一，CloseChannel 减一，归零时才真正关闭。
//
// ForceNew、NoValueAdd、NoPathMap 任一为 true 时总是打开新的私有通道，
// 私有通道不参与引用计数，CloseChannel 直接关闭。
//
// # 去重
//
//   - 同一节点同时只有一个共享打开序列，后续请求排队，完成时按注册顺序收到同一结果
//   - 同一通道同时只有一个关闭序列，并发的关闭请求合并
//
// # 打开序列
//
//  1. 启动 value-add 代理进程（NoValueAdd 时跳过）
//  2. 拨号（经过 value-add 时拨号到代理）
//  3. 让代理把通道重定向到真正的目标
//  4. 下发路径映射（NoPathMap 时跳过）
//
// 任一步骤失败都会逆序回滚：关闭半开的通道，停止本次新启动的 value-add。
//
// # 线程模型
//
// 所有簿记只在派发协程（dispatch.Dispatcher）上读写，没有锁。
// 回调（OpenDone / Done）同样在派发协程上执行，回调内不能调用阻塞的查询方法。
package channelmgr
