package wire

import "errors"

var (
	// ErrMessageTooLarge 消息超过 MaxMessageSize
	ErrMessageTooLarge = errors.New("wire: message too large")

	// ErrMalformed 消息格式错误
	ErrMalformed = errors.New("wire: malformed message")

	// ErrUnknownKind 未知消息类型
	ErrUnknownKind = errors.New("wire: unknown message kind")
)
