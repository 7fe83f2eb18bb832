// Package tcp 实现 TCP 传输
//
// 每个通道独占一条 TCP 连接，连接上运行 yamux 会话；
// 客户端打开的第一条 yamux 流作为控制流，交给 session 包完成握手。
//
// # 使用示例
//
//	t := tcp.New(cfg)
//	ch, err := t.Dial(ctx, peer)
//
//	// 代理端
//	l, err := tcp.Listen("127.0.0.1:0", &session.AgentHandler{ID: "agent"})
//	for a := range l.Agents() { ... }
//
// # 建立流程
//
//  1. 建立 TCP 连接
//  2. yamux 客户端会话
//  3. 打开控制流并握手
package tcp
