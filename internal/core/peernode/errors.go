package peernode

import "errors"

var (
	// ErrIllegalAction 当前状态不允许该动作
	ErrIllegalAction = errors.New("illegal connect action")

	// ErrDisposed 节点已释放
	ErrDisposed = errors.New("peer node disposed")
)
