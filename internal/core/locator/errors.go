package locator

import "errors"

var (
	// ErrPeerExists 节点已存在
	ErrPeerExists = errors.New("peer already exists")

	// ErrStaticPeer 静态节点不能通过 API 修改
	ErrStaticPeer = errors.New("static peer is read-only")

	// ErrLocatorClosed 已关闭
	ErrLocatorClosed = errors.New("locator closed")
)
