package types

import "errors"

var (
	// ErrEmptyPeerID 空节点 ID
	ErrEmptyPeerID = errors.New("empty peer ID")

	// ErrInvalidPeer 无效的节点描述
	ErrInvalidPeer = errors.New("invalid peer")

	// ErrUnknownTransport 未知传输类型
	ErrUnknownTransport = errors.New("unknown transport")

	// ErrPeerNotFound 节点不存在
	ErrPeerNotFound = errors.New("peer not found")

	// ErrChannelClosed 通道已关闭
	ErrChannelClosed = errors.New("channel closed")

	// ErrServiceUnavailable 远端未提供所需服务
	ErrServiceUnavailable = errors.New("remote service unavailable")

	// ErrCanceled 操作被取消
	ErrCanceled = errors.New("operation canceled")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("operation timed out")
)
