package logger

import (
	"context"
	"io"
	"log/slog"

	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

// subsystemHandler 按组件名决定级别的 slog.Handler
//
// LazyLogger 以 With(component, name) 附加组件名，WithAttrs 时记下该值。
// 内层 handler 的级别设为所有配置中的最低值，真正的过滤在 Enabled 中完成。
type subsystemHandler struct {
	cfg       *Config
	component string
	inner     slog.Handler
}

// NewHandler 创建按子系统分级的 Handler
func NewHandler(w io.Writer, cfg *Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.MinLevel(),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var inner slog.Handler
	switch cfg.Format {
	case FormatJSON:
		inner = slog.NewJSONHandler(w, opts)
	case FormatPretty:
		inner = newPrettyHandler(w, opts.Level)
	default:
		inner = slog.NewTextHandler(w, opts)
	}
	return &subsystemHandler{cfg: cfg, inner: inner}
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.LevelForSubsystem(h.component)
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	for _, a := range attrs {
		if a.Key == log.ComponentKey {
			c.component = a.Value.String()
		}
	}
	c.inner = h.inner.WithAttrs(attrs)
	return &c
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.inner = h.inner.WithGroup(name)
	return &c
}
