// Package transport 组装通道传输
//
// 按配置创建 TCP（yamux）与 QUIC 传输，并以 fx group "transports" 提供给通道管理器。
// 子包：
//
//	wire     控制流消息编解码
//	session  控制流上的通道与代理端实现
//	tcp      TCP + yamux
//	quic     QUIC
package transport
