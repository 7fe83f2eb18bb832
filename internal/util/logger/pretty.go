package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"

	"github.com/dep2p/go-tcflink/pkg/lib/log"
)

// prettyHandler 面向终端的单行彩色输出
//
//	[15:04:05] INFO  core/channelmgr 通道已打开 peer=agent-1 refs=2
//
// 非终端输出时 fatih/color 自动关闭着色。
type prettyHandler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Leveler

	component string
	prefix    string
	attrs     []byte
}

func newPrettyHandler(w io.Writer, level slog.Leveler) *prettyHandler {
	return &prettyHandler{w: w, mu: &sync.Mutex{}, level: level}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(r.Time.Format("[15:04:05] "))
	buf.WriteString(levelColor(r.Level)(fmt.Sprintf("%-5s", r.Level.String())))
	buf.WriteByte(' ')
	if h.component != "" {
		buf.WriteString(color.HiBlackString(h.component))
		buf.WriteByte(' ')
	}
	buf.WriteString(color.HiCyanString(r.Message))
	buf.Write(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	var buf bytes.Buffer
	buf.Write(h.attrs)
	for _, a := range attrs {
		if a.Key == log.ComponentKey && h.prefix == "" {
			c.component = a.Value.String()
			continue
		}
		appendAttr(&buf, h.prefix, a)
	}
	c.attrs = buf.Bytes()
	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}
	fmt.Fprintf(buf, " %s=%v", color.HiBlackString(prefix+a.Key), a.Value.Any())
}

func levelColor(level slog.Level) func(format string, a ...interface{}) string {
	switch {
	case level >= slog.LevelError:
		return color.RedString
	case level >= slog.LevelWarn:
		return color.YellowString
	case level >= slog.LevelInfo:
		return color.BlueString
	default:
		return color.MagentaString
	}
}
