package session

import "errors"

var (
	// ErrHandshake 握手失败
	ErrHandshake = errors.New("session: handshake failed")

	// ErrRemote 对端返回的错误
	ErrRemote = errors.New("session: remote error")

	// ErrUnexpected 收到意外的消息
	ErrUnexpected = errors.New("session: unexpected message")
)
