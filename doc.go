// Package tcflink 管理到远端调试 Agent 的共享通道
//
// go-tcflink 把若干内部组件装配为一个 Node：
//
//   - Dispatcher: 单协程派发器，通道状态只在其上修改
//   - ChannelManager: 引用计数的共享通道、value-add 重定向、路径映射
//   - Locator: 节点模型，每个节点一个连接状态机
//   - Transports: TCP + yamux、QUIC
//
// # 快速开始
//
//	node, err := tcflink.Start(ctx,
//	    tcflink.WithConfigFile("tcflink.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	ch, err := node.OpenChannel(ctx, peer, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.CloseChannel(ctx, ch)
//
// 回调风格的 API 通过 node.ChannelManager() 获取，全部回调在派发协程上执行。
package tcflink
