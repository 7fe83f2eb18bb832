// Package session 在一条控制流上实现通道语义
//
// TCP 与 QUIC 传输在建立连接后各自打开一条双向流，交给本包：
//
//   - Channel：客户端通道，实现 interfaces.Channel，提供 Streams / PathMap 远端服务
//   - Agent：代理端，回应握手、重定向、路径映射与流订阅请求
//
// 握手顺序：客户端先发送 hello（携带本地标识），代理端回送 hello（携带服务列表）。
// 之后客户端发送请求并按序号等待应答；代理端可随时推送流事件。
package session
