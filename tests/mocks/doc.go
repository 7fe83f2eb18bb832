// Package mocks 提供统一的测试 Mock 实现
//
// # 通道 Mock
//
//   - MockChannel: 模拟 interfaces.Channel，可模拟远端主动关闭（Drop）
//   - MockTransport: 模拟 interfaces.Transport，支持阻塞拨号（Hold/Release）
//
// # 服务 Mock
//
//   - MockStreamsService: 模拟远端流服务，可向订阅者推送事件
//   - MockPathMapService: 记录下发的路径映射
//   - MockStreamListener: 记录收到的流事件
//
// # 其他 Mock
//
//   - MockValueAdd: 模拟 value-add 代理进程
//
// # 设计原则
//
// 1. 函数式注入: 每个 Mock 都支持通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 关键 Mock 记录调用历史，便于验证测试行为
// 3. 并发安全: Mock 会在传输协程、派发协程和测试协程上被同时访问
//
//	tr := mocks.NewMockTransport(types.TransportTCP)
//	tr.Hold()
//	mgr.OpenChannel(peer, nil, cb1)
//	mgr.OpenChannel(peer, nil, cb2)
//	tr.Release()
//	// tr.DialCount() == 1
package mocks
