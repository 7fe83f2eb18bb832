package dispatch

import "errors"

var (
	// ErrClosed 派发器已关闭
	ErrClosed = errors.New("dispatcher closed")
)
