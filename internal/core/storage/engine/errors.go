package engine

import "errors"

var (
	// ErrNotFound 键不存在
	ErrNotFound = errors.New("storage: key not found")
	// ErrEmptyKey 键为空
	ErrEmptyKey = errors.New("storage: empty key")
	// ErrClosed 引擎已关闭
	ErrClosed = errors.New("storage: engine closed")
	// ErrReadOnly 引擎以只读方式打开
	ErrReadOnly = errors.New("storage: read-only")
	// ErrTransactionConflict 并发事务冲突，调用方可重试
	ErrTransactionConflict = errors.New("storage: transaction conflict")
	// ErrInvalidConfig 引擎配置无效
	ErrInvalidConfig = errors.New("storage: invalid configuration")
)

// Retryable 错误是否可通过重试事务解决
func Retryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}
