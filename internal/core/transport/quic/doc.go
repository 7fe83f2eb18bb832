// Package quic 实现 QUIC 传输
//
// 每个通道对应一条 QUIC 连接，客户端打开的第一条双向流作为控制流。
// QUIC 自带加密与多路复用，不需要 yamux。
//
// 证书为进程内生成的自签名 ECDSA 证书，ALPN 为 "tcf-link"。
// 对端身份不通过证书校验，只校验证书有效期。
package quic
