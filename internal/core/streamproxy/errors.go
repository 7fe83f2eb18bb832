package streamproxy

import "errors"

// ErrNotSubscribed 通道上没有该类型的订阅
var ErrNotSubscribed = errors.New("stream type not subscribed")
