package channelmgr

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-tcflink/pkg/types"
)

var (
	// ErrNoTransport 没有与节点传输类型匹配的传输
	ErrNoTransport = errors.New("no transport for peer")

	// ErrValueAddFailed 必需的 value-add 启动失败
	ErrValueAddFailed = errors.New("value-add launch failed")
)

// OpenError 打开通道失败
//
// 同一次打开的所有等待者收到同一个 *OpenError。
type OpenError struct {
	Peer types.PeerID
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open channel to %s: %v", e.Peer, e.Err)
}

// Unwrap 返回原始错误
func (e *OpenError) Unwrap() error {
	return e.Err
}
