package valueadd

import "errors"

var (
	// ErrLaunchTimeout 等待就绪超时
	ErrLaunchTimeout = errors.New("value-add launch timed out")

	// ErrExited 进程在就绪前退出
	ErrExited = errors.New("value-add exited before ready")

	// ErrBadReadyLine 就绪行无法解析
	ErrBadReadyLine = errors.New("value-add printed invalid ready line")

	// ErrRelaunchTooSoon 重启过于频繁
	ErrRelaunchTooSoon = errors.New("value-add relaunched too soon")

	// ErrUnknownValueAdd 未配置的 value-add
	ErrUnknownValueAdd = errors.New("unknown value-add")
)
