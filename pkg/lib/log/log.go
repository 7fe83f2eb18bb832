// Package log 提供 go-tcflink 各组件共用的日志入口
//
// 组件在包级声明 logger，实际 handler 在每次调用时从 slog.Default() 读取，
// 因此 CLI 在 main 中安装的按子系统分级 handler 对已初始化的包同样生效。
//
//	var logger = log.Logger("core/channelmgr")
//	logger.Info("通道已打开", "peer", log.TruncateID(id, 8))
package log

import (
	"context"
	"log/slog"
)

// ComponentKey 组件名属性键，internal/util/logger 据此分级
const ComponentKey = "component"

// SetDefault 安装进程级默认 logger
func SetDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// LazyLogger 绑定组件名、延迟解析 handler 的 logger
type LazyLogger struct {
	component string
}

// Logger 返回组件 logger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

func (l *LazyLogger) current() *slog.Logger {
	return slog.Default().With(ComponentKey, l.component)
}

// Enabled 当前 handler 是否输出该级别
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return l.current().Enabled(context.Background(), level)
}

func (l *LazyLogger) Debug(msg string, args ...any) { l.current().Debug(msg, args...) }
func (l *LazyLogger) Info(msg string, args ...any)  { l.current().Info(msg, args...) }
func (l *LazyLogger) Warn(msg string, args ...any)  { l.current().Warn(msg, args...) }
func (l *LazyLogger) Error(msg string, args ...any) { l.current().Error(msg, args...) }

// With 返回附加了属性的 *slog.Logger，handler 在调用时即固定
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.current().With(args...)
}

// TruncateID 截取 ID 前 maxLen 个字节用于日志
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
